package links

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yazok8/linktree-clone/internal/users"
)

const (
	maxIdentifierLength = 190
	// DefaultOrdering sorts by ascending display order, newest first on ties.
	DefaultOrdering = "display_order ASC, created_at DESC, id DESC"
)

var (
	// ErrInvalidOwnerID indicates that the caller identity is empty or exceeds storage bounds.
	ErrInvalidOwnerID = errors.New("links: invalid owner id")
)

// OwnerID is the validated identity of the caller a link operation is scoped to.
type OwnerID string

// NewOwnerID validates raw input and returns an OwnerID.
func NewOwnerID(rawInput string) (OwnerID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidOwnerID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidOwnerID, maxIdentifierLength)
	}
	return OwnerID(trimmed), nil
}

// String returns the underlying string identifier.
func (id OwnerID) String() string {
	return string(id)
}

// Link is an entry on a user's page.
type Link struct {
	ID          string     `gorm:"column:id;primaryKey;size:36;not null"`
	OwnerID     string     `gorm:"column:owner_id;size:36;not null;index:idx_links_owner_order,priority:1"`
	Owner       users.User `gorm:"foreignKey:OwnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Title       string     `gorm:"column:title;size:200;not null"`
	URL         string     `gorm:"column:url;size:200;not null"`
	Description string     `gorm:"column:description;type:text;not null"`
	IsActive    bool       `gorm:"column:is_active;not null"`
	Order       int        `gorm:"column:display_order;not null;index:idx_links_owner_order,priority:2"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

// TableName provides the explicit table binding for GORM.
func (Link) TableName() string {
	return "links"
}

// CreateInput carries the client-settable fields of a new link. The owner is
// never part of it.
type CreateInput struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
	Order       *int   `json:"order"`
}

// Patch carries the client-settable fields of an update. Nil fields are left untouched.
type Patch struct {
	Title       *string `json:"title"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
	Order       *int    `json:"order"`
}

type linkFields struct {
	Title       string `json:"title" validate:"required,max=200"`
	URL         string `json:"url" validate:"required,weburl,max=200"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
	Order       int    `json:"order"`
}

func fieldsOf(link Link) linkFields {
	return linkFields{
		Title:       link.Title,
		URL:         link.URL,
		Description: link.Description,
		IsActive:    link.IsActive,
		Order:       link.Order,
	}
}

func fieldsFromCreate(input CreateInput) linkFields {
	fields := linkFields{
		Title:       strings.TrimSpace(input.Title),
		URL:         strings.TrimSpace(input.URL),
		Description: input.Description,
		IsActive:    true,
		Order:       0,
	}
	if input.IsActive != nil {
		fields.IsActive = *input.IsActive
	}
	if input.Order != nil {
		fields.Order = *input.Order
	}
	return fields
}

func (f *linkFields) apply(patch Patch) {
	if patch.Title != nil {
		f.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.URL != nil {
		f.URL = strings.TrimSpace(*patch.URL)
	}
	if patch.Description != nil {
		f.Description = *patch.Description
	}
	if patch.IsActive != nil {
		f.IsActive = *patch.IsActive
	}
	if patch.Order != nil {
		f.Order = *patch.Order
	}
}
