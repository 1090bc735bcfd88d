package database

import (
	"errors"
	"time"

	"github.com/yazok8/linktree-clone/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillProfileColors = "2026-03-01_backfill_profile_colors"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillProfileColors, apply: backfillProfileColors},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// backfillProfileColors normalizes accounts stored with empty colors, such as
// rows inserted directly into the table, to the default palette.
func backfillProfileColors(db *gorm.DB) error {
	if err := db.Model(&users.User{}).
		Where("background_color = ''").
		Update("background_color", users.DefaultBackgroundColor).Error; err != nil {
		return err
	}
	return db.Model(&users.User{}).
		Where("text_color = ''").
		Update("text_color", users.DefaultTextColor).Error
}
