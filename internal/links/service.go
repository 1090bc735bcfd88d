package links

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yazok8/linktree-clone/internal/apperror"
	"github.com/yazok8/linktree-clone/internal/clock"
	"github.com/yazok8/linktree-clone/internal/ids"
	"github.com/yazok8/linktree-clone/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound indicates the link does not exist or belongs to someone else.
	ErrNotFound = errors.New("links: not found")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew   = "links.service.new"
	opListLinks    = "links.list"
	opCountLinks   = "links.count_active"
	opCreateLink   = "links.create"
	opGetLink      = "links.get"
	opUpdateLink   = "links.update"
	opDeleteLink   = "links.delete"
	scopedByOwner  = "id = ? AND owner_id = ?"
	msgRequired    = "This field is required."
	ownerCondition = "owner_id = ?"
)

// ServiceConfig describes the dependencies required by the link service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service implements owner-scoped link operations. Every single-record query is
// keyed by (id, owner_id).
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	validator  *validation.Validator
	logger     *zap.Logger
}

// NewService constructs the link service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperror.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, apperror.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      now,
		idProvider: cfg.IDProvider,
		validator:  validation.New(),
		logger:     logger,
	}, nil
}

// List returns every link owned by owner in default ordering.
func (s *Service) List(ctx context.Context, owner OwnerID) ([]Link, error) {
	return s.list(ctx, owner, false)
}

// ListActive returns the active links owned by owner in default ordering.
func (s *Service) ListActive(ctx context.Context, owner OwnerID) ([]Link, error) {
	return s.list(ctx, owner, true)
}

// CountActive returns how many active links owner has.
func (s *Service) CountActive(ctx context.Context, owner OwnerID) (int64, error) {
	if s.db == nil {
		return 0, apperror.New(opCountLinks, "missing_database", errMissingDatabase)
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Link{}).
		Where(ownerCondition, owner.String()).
		Where("is_active = ?", true).
		Count(&count).Error
	if err != nil {
		s.logError(opCountLinks, "query_failed", err, zap.String("owner_id", owner.String()))
		return 0, apperror.New(opCountLinks, "query_failed", err)
	}
	return count, nil
}

// Create stores a new link owned by owner.
func (s *Service) Create(ctx context.Context, owner OwnerID, input CreateInput) (Link, error) {
	if s.db == nil {
		return Link{}, apperror.New(opCreateLink, "missing_database", errMissingDatabase)
	}

	fields := fieldsFromCreate(input)
	if err := s.validator.Struct(fields); err != nil {
		return Link{}, err
	}

	linkID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateLink, "id_generation_failed", err, zap.String("owner_id", owner.String()))
		return Link{}, apperror.New(opCreateLink, "id_generation_failed", err)
	}

	createdAt := clock.Now(s.clock)
	link := Link{
		ID:          linkID,
		OwnerID:     owner.String(),
		Title:       fields.Title,
		URL:         fields.URL,
		Description: fields.Description,
		IsActive:    fields.IsActive,
		Order:       fields.Order,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&link).Error; err != nil {
		s.logError(opCreateLink, "insert_failed", err, zap.String("owner_id", owner.String()))
		return Link{}, apperror.New(opCreateLink, "insert_failed", err)
	}
	return link, nil
}

// Get returns the link with linkID when owner owns it.
func (s *Service) Get(ctx context.Context, owner OwnerID, linkID string) (Link, error) {
	if s.db == nil {
		return Link{}, apperror.New(opGetLink, "missing_database", errMissingDatabase)
	}
	linkID, ok := normalizeLinkID(linkID)
	if !ok {
		return Link{}, ErrNotFound
	}

	var link Link
	err := s.db.WithContext(ctx).Where(scopedByOwner, linkID, owner.String()).Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Link{}, ErrNotFound
	}
	if err != nil {
		s.logError(opGetLink, "query_failed", err, zap.String("owner_id", owner.String()), zap.String("link_id", linkID))
		return Link{}, apperror.New(opGetLink, "query_failed", err)
	}
	return link, nil
}

// Update applies a partial change; absent fields keep their stored values.
func (s *Service) Update(ctx context.Context, owner OwnerID, linkID string, patch Patch) (Link, error) {
	return s.update(ctx, owner, linkID, patch, true)
}

// Replace applies a full change; title and url must be supplied.
func (s *Service) Replace(ctx context.Context, owner OwnerID, linkID string, patch Patch) (Link, error) {
	return s.update(ctx, owner, linkID, patch, false)
}

// Delete removes the link with linkID when owner owns it.
func (s *Service) Delete(ctx context.Context, owner OwnerID, linkID string) error {
	if s.db == nil {
		return apperror.New(opDeleteLink, "missing_database", errMissingDatabase)
	}
	linkID, ok := normalizeLinkID(linkID)
	if !ok {
		return ErrNotFound
	}

	result := s.db.WithContext(ctx).Where(scopedByOwner, linkID, owner.String()).Delete(&Link{})
	if result.Error != nil {
		s.logError(opDeleteLink, "delete_failed", result.Error, zap.String("owner_id", owner.String()), zap.String("link_id", linkID))
		return apperror.New(opDeleteLink, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) list(ctx context.Context, owner OwnerID, activeOnly bool) ([]Link, error) {
	if s.db == nil {
		return nil, apperror.New(opListLinks, "missing_database", errMissingDatabase)
	}
	query := s.db.WithContext(ctx).Where(ownerCondition, owner.String())
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	links := make([]Link, 0)
	if err := query.Order(DefaultOrdering).Find(&links).Error; err != nil {
		s.logError(opListLinks, "query_failed", err, zap.String("owner_id", owner.String()))
		return nil, apperror.New(opListLinks, "query_failed", err)
	}
	return links, nil
}

func (s *Service) update(ctx context.Context, owner OwnerID, linkID string, patch Patch, partial bool) (Link, error) {
	if s.db == nil {
		return Link{}, apperror.New(opUpdateLink, "missing_database", errMissingDatabase)
	}
	linkID, ok := normalizeLinkID(linkID)
	if !ok {
		return Link{}, ErrNotFound
	}

	var updated Link
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Link
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(scopedByOwner, linkID, owner.String()).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			s.logError(opUpdateLink, "link_select_failed", err, zap.String("owner_id", owner.String()), zap.String("link_id", linkID))
			return apperror.New(opUpdateLink, "link_select_failed", err)
		}

		if !partial {
			if err := requireFullPatch(patch); err != nil {
				return err
			}
		}

		fields := fieldsOf(existing)
		fields.apply(patch)
		if err := s.validator.Struct(fields); err != nil {
			return err
		}

		changes := map[string]interface{}{
			"title":         fields.Title,
			"url":           fields.URL,
			"description":   fields.Description,
			"is_active":     fields.IsActive,
			"display_order": fields.Order,
			"updated_at":    clock.After(s.clock, existing.UpdatedAt),
		}
		result := tx.Model(&Link{}).Where(scopedByOwner, linkID, owner.String()).Updates(changes)
		if result.Error != nil {
			s.logError(opUpdateLink, "link_update_failed", result.Error, zap.String("owner_id", owner.String()), zap.String("link_id", linkID))
			return apperror.New(opUpdateLink, "link_update_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Where(scopedByOwner, linkID, owner.String()).Take(&updated).Error; err != nil {
			s.logError(opUpdateLink, "link_reload_failed", err, zap.String("owner_id", owner.String()), zap.String("link_id", linkID))
			return apperror.New(opUpdateLink, "link_reload_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return Link{}, txErr
	}
	return updated, nil
}

func requireFullPatch(patch Patch) error {
	var missing *validation.Error
	if patch.Title == nil {
		missing = validation.NewError("title", msgRequired)
	}
	if patch.URL == nil {
		if missing == nil {
			missing = validation.NewError("url", msgRequired)
		} else {
			missing.Add("url", msgRequired)
		}
	}
	if missing != nil {
		return missing
	}
	return nil
}

func normalizeLinkID(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxIdentifierLength {
		return "", false
	}
	return trimmed, true
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("links service error", attrs...)
}
