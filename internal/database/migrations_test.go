package database

import (
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/yazok8/linktree-clone/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsProfileColors(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&users.User{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	legacy := users.User{ID: "user-1", Username: "legacy", Email: "legacy@example.com", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	styled := users.User{ID: "user-2", Username: "styled", Email: "styled@example.com", PasswordHash: "x", BackgroundColor: "#123456", TextColor: "#abcdef", CreatedAt: now, UpdatedAt: now}
	for _, user := range []users.User{legacy, styled} {
		if err := database.Create(&user).Error; err != nil {
			testContext.Fatalf("failed to insert user: %v", err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var storedLegacy users.User
	if err := database.Where("id = ?", legacy.ID).Take(&storedLegacy).Error; err != nil {
		testContext.Fatalf("failed to reload user: %v", err)
	}
	if storedLegacy.BackgroundColor != users.DefaultBackgroundColor || storedLegacy.TextColor != users.DefaultTextColor {
		testContext.Fatalf("expected default colors, got %s / %s", storedLegacy.BackgroundColor, storedLegacy.TextColor)
	}

	var storedStyled users.User
	if err := database.Where("id = ?", styled.ID).Take(&storedStyled).Error; err != nil {
		testContext.Fatalf("failed to reload user: %v", err)
	}
	if storedStyled.BackgroundColor != "#123456" || storedStyled.TextColor != "#abcdef" {
		testContext.Fatalf("expected custom colors to survive, got %s / %s", storedStyled.BackgroundColor, storedStyled.TextColor)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillProfileColors).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("expected re-run to be a no-op: %v", err)
	}
	var count int64
	database.Model(&migrationRecord{}).Count(&count)
	if count != 1 {
		testContext.Fatalf("expected a single migration record, got %d", count)
	}
}
