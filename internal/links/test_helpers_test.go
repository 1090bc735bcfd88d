package links

import (
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/yazok8/linktree-clone/internal/ids"
	"github.com/yazok8/linktree-clone/internal/users"
	"gorm.io/gorm"
)

type stepClock struct {
	current time.Time
	step    time.Duration
}

func (c *stepClock) Now() time.Time {
	c.current = c.current.Add(c.step)
	return c.current
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "links.db")
	db, err := gorm.Open(sqlite.Open(databasePath+"?_pragma=foreign_keys(1)"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &Link{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, now func() time.Time) (*Service, *gorm.DB) {
	t.Helper()
	db := openTestDatabase(t)
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      now,
		IDProvider: ids.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func seedOwner(t *testing.T, db *gorm.DB, userID, username string) OwnerID {
	t.Helper()
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	user := users.User{
		ID:              userID,
		Username:        username,
		Email:           username + "@example.com",
		PasswordHash:    "unused",
		BackgroundColor: users.DefaultBackgroundColor,
		TextColor:       users.DefaultTextColor,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}
	return mustOwnerID(t, userID)
}

func mustOwnerID(t *testing.T, value string) OwnerID {
	t.Helper()
	id, err := NewOwnerID(value)
	if err != nil {
		t.Fatalf("unexpected owner id error: %v", err)
	}
	return id
}

func boolPointer(value bool) *bool {
	return &value
}

func intPointer(value int) *int {
	return &value
}

func stringPointer(value string) *string {
	return &value
}

func linkTitles(links []Link) []string {
	titles := make([]string, 0, len(links))
	for _, link := range links {
		titles = append(titles, link.Title)
	}
	return titles
}
