package users

import (
	"context"
	"errors"
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
	// ErrNotFound indicates that no account matches the lookup.
	ErrNotFound = errors.New("users: not found")
	// ErrInvalidCredentials indicates an unknown login or a wrong password.
	ErrInvalidCredentials = errors.New("users: invalid credentials")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingHasher     = errors.New("password hasher is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew     = "users.service.new"
	opRegister       = "users.register"
	opAuthenticate   = "users.authenticate"
	opGetUser        = "users.get"
	opUpdateProfile  = "users.update_profile"
	opDeleteUser     = "users.delete"
	msgUsernameTaken = "A user with that username already exists."
	msgEmailTaken    = "A user is already registered with this e-mail address."
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
}

// ServiceConfig describes the dependencies required by the account service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Hasher     PasswordHasher
	Logger     *zap.Logger
}

// Service manages accounts and their profile attributes.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	hasher     PasswordHasher
	validator  *validation.Validator
	logger     *zap.Logger
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperror.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, apperror.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Hasher == nil {
		return nil, apperror.New(opServiceNew, "missing_hasher", errMissingHasher)
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
		hasher:     cfg.Hasher,
		validator:  validation.New(),
		logger:     logger,
	}, nil
}

// Register validates the sign-up payload and creates the account.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	input.Username = normalize(input.Username)
	input.Email = normalize(input.Email)
	input.FirstName = normalize(input.FirstName)
	input.LastName = normalize(input.LastName)
	if err := s.validator.Struct(input); err != nil {
		return User{}, err
	}

	conflict, err := s.uniquenessConflicts(ctx, s.db, input.Username, input.Email, "")
	if err != nil {
		s.logError(opRegister, "uniqueness_lookup_failed", err, zap.String("username", input.Username))
		return User{}, apperror.New(opRegister, "uniqueness_lookup_failed", err)
	}
	if conflict != nil {
		return User{}, conflict
	}

	passwordHash, err := s.hasher.Hash(input.Password1)
	if err != nil {
		s.logError(opRegister, "password_hash_failed", err)
		return User{}, apperror.New(opRegister, "password_hash_failed", err)
	}
	userID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRegister, "id_generation_failed", err)
		return User{}, apperror.New(opRegister, "id_generation_failed", err)
	}

	createdAt := clock.Now(s.clock)
	user := User{
		ID:              userID,
		Username:        input.Username,
		Email:           input.Email,
		PasswordHash:    passwordHash,
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		BackgroundColor: DefaultBackgroundColor,
		TextColor:       DefaultTextColor,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if conflict, lookupErr := s.uniquenessConflicts(ctx, s.db, input.Username, input.Email, ""); lookupErr == nil && conflict != nil {
				return User{}, conflict
			}
			return User{}, validation.NewError("username", msgUsernameTaken)
		}
		s.logError(opRegister, "insert_failed", err, zap.String("username", input.Username))
		return User{}, apperror.New(opRegister, "insert_failed", err)
	}

	s.logger.Info("account registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Authenticate resolves login (a username or an email address) and checks the password.
// An exact username match is tried before the email match.
func (s *Service) Authenticate(ctx context.Context, login, password string) (User, error) {
	login = normalize(login)
	if login == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	for _, column := range []string{"username", "email"} {
		var user User
		err := s.db.WithContext(ctx).Where(column+" = ?", login).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			s.logError(opAuthenticate, "query_failed", err)
			return User{}, apperror.New(opAuthenticate, "query_failed", err)
		}
		if err := s.hasher.Verify(user.PasswordHash, password); err == nil {
			return user, nil
		}
	}
	return User{}, ErrInvalidCredentials
}

// GetByID loads the account with the provided identifier.
func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	return s.take(ctx, "id = ?", normalize(userID))
}

// GetByUsername loads the account with the provided username. Matching is exact.
func (s *Service) GetByUsername(ctx context.Context, username string) (User, error) {
	return s.take(ctx, "username = ?", normalize(username))
}

// UpdateProfile applies a partial profile change to the account and returns the stored result.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	userID = normalize(userID)
	if userID == "" {
		return User{}, ErrNotFound
	}

	var updated User
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", userID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			s.logError(opUpdateProfile, "user_select_failed", err, zap.String("user_id", userID))
			return apperror.New(opUpdateProfile, "user_select_failed", err)
		}

		fields := profileFieldsOf(existing)
		fields.apply(update)
		if err := s.validator.Struct(fields); err != nil {
			return err
		}
		if fields.Email != existing.Email {
			conflict, err := s.uniquenessConflicts(ctx, tx, "", fields.Email, userID)
			if err != nil {
				s.logError(opUpdateProfile, "uniqueness_lookup_failed", err, zap.String("user_id", userID))
				return apperror.New(opUpdateProfile, "uniqueness_lookup_failed", err)
			}
			if conflict != nil {
				return conflict
			}
		}

		changes := map[string]interface{}{
			"email":            fields.Email,
			"first_name":       fields.FirstName,
			"last_name":        fields.LastName,
			"bio":              fields.Bio,
			"avatar_url":       fields.AvatarURL,
			"background_color": fields.BackgroundColor,
			"text_color":       fields.TextColor,
			"updated_at":       clock.After(s.clock, existing.UpdatedAt),
		}
		result := tx.Model(&User{}).Where("id = ?", userID).Updates(changes)
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return validation.NewError("email", msgEmailTaken)
		}
		if result.Error != nil {
			s.logError(opUpdateProfile, "user_update_failed", result.Error, zap.String("user_id", userID))
			return apperror.New(opUpdateProfile, "user_update_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Where("id = ?", userID).Take(&updated).Error; err != nil {
			s.logError(opUpdateProfile, "user_reload_failed", err, zap.String("user_id", userID))
			return apperror.New(opUpdateProfile, "user_reload_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return User{}, txErr
	}
	return updated, nil
}

// Delete removes the account. The links table cascades on the owner foreign key.
func (s *Service) Delete(ctx context.Context, userID string) error {
	userID = normalize(userID)
	if userID == "" {
		return ErrNotFound
	}
	result := s.db.WithContext(ctx).Where("id = ?", userID).Delete(&User{})
	if result.Error != nil {
		s.logError(opDeleteUser, "delete_failed", result.Error, zap.String("user_id", userID))
		return apperror.New(opDeleteUser, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	s.logger.Info("account deleted", zap.String("user_id", userID))
	return nil
}

func (s *Service) take(ctx context.Context, query string, value string) (User, error) {
	if value == "" {
		return User{}, ErrNotFound
	}
	var user User
	err := s.db.WithContext(ctx).Where(query, value).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		s.logError(opGetUser, "query_failed", err)
		return User{}, apperror.New(opGetUser, "query_failed", err)
	}
	return user, nil
}

// uniquenessConflicts reports a field error when username or email already
// belongs to an account other than exceptID. Empty values are not checked.
func (s *Service) uniquenessConflicts(ctx context.Context, db *gorm.DB, username, email, exceptID string) (*validation.Error, error) {
	var conflict *validation.Error
	checks := []struct {
		field   string
		column  string
		value   string
		message string
	}{
		{field: "username", column: "username", value: username, message: msgUsernameTaken},
		{field: "email", column: "email", value: email, message: msgEmailTaken},
	}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		query := db.WithContext(ctx).Model(&User{}).Where(check.column+" = ?", check.value)
		if exceptID != "" {
			query = query.Where("id <> ?", exceptID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			continue
		}
		if conflict == nil {
			conflict = validation.NewError(check.field, check.message)
		} else {
			conflict.Add(check.field, check.message)
		}
	}
	return conflict, nil
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
	s.logger.Error("users service error", attrs...)
}
