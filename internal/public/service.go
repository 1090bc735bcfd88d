package public

import (
	"context"
	"errors"

	"github.com/yazok8/linktree-clone/internal/links"
	"github.com/yazok8/linktree-clone/internal/users"
	"go.uber.org/zap"
)

// ErrNotFound indicates that no account has the requested username.
var ErrNotFound = errors.New("public: profile not found")

var (
	errMissingDirectory = errors.New("public: user directory required")
	errMissingCatalog   = errors.New("public: link catalog required")
)

// UserDirectory resolves accounts by username.
type UserDirectory interface {
	GetByUsername(ctx context.Context, username string) (users.User, error)
}

// LinkCatalog lists an owner's active links in default ordering.
type LinkCatalog interface {
	ListActive(ctx context.Context, owner links.OwnerID) ([]links.Link, error)
}

// ProfileView is the public projection of a profile. Fields not listed here,
// email and id included, are never exposed to anonymous callers.
type ProfileView struct {
	Username        string `json:"username"`
	DisplayName     string `json:"display_name"`
	Bio             string `json:"bio"`
	AvatarURL       string `json:"avatar_url"`
	BackgroundColor string `json:"background_color"`
	TextColor       string `json:"text_color"`
}

// NewProfileView projects user onto the public allowlist.
func NewProfileView(user users.User) ProfileView {
	return ProfileView{
		Username:        user.Username,
		DisplayName:     user.DisplayName(),
		Bio:             user.Bio,
		AvatarURL:       user.AvatarURL,
		BackgroundColor: user.BackgroundColor,
		TextColor:       user.TextColor,
	}
}

// Config describes the dependencies of the public read service.
type Config struct {
	Users  UserDirectory
	Links  LinkCatalog
	Logger *zap.Logger
}

// Service serves read-only projections keyed by username. It needs no caller identity.
type Service struct {
	users  UserDirectory
	links  LinkCatalog
	logger *zap.Logger
}

// NewService constructs the public read service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Users == nil {
		return nil, errMissingDirectory
	}
	if cfg.Links == nil {
		return nil, errMissingCatalog
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: cfg.Users, links: cfg.Links, logger: logger}, nil
}

// Profile returns the public projection of the profile owned by username.
func (s *Service) Profile(ctx context.Context, username string) (ProfileView, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return ProfileView{}, err
	}
	return NewProfileView(user), nil
}

// Links returns the active links of username in default ordering.
func (s *Service) Links(ctx context.Context, username string) ([]links.Link, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	owner, err := links.NewOwnerID(user.ID)
	if err != nil {
		s.logger.Error("stored account has unusable id", zap.String("username", user.Username), zap.Error(err))
		return nil, err
	}
	return s.links.ListActive(ctx, owner)
}

func (s *Service) lookup(ctx context.Context, username string) (users.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, users.ErrNotFound) {
		return users.User{}, ErrNotFound
	}
	if err != nil {
		return users.User{}, err
	}
	return user, nil
}
