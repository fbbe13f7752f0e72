package database

import (
	"errors"
	"time"

	"github.com/newraifootwear/notify-backend/internal/devices"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillDeviceSchemaVersion = "2026-07-15_backfill_device_schema_version"

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
		{name: migrationBackfillDeviceSchemaVersion, apply: backfillDeviceSchemaVersion},
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
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows created while the registry was keyed by push token carry no email; the
// schema_version column default would mislabel them as email-keyed.
func backfillDeviceSchemaVersion(db *gorm.DB) error {
	return db.Model(&devices.Device{}).
		Where("email = '' OR email IS NULL").
		Update("schema_version", devices.SchemaVersionTokenKeyed).Error
}
