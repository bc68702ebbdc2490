package storage

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	platformerrors "vitalsense/internal/platform/errors"
)

// MeasurementRecord is one stored analysis result. The full result is
// kept as a JSON payload; the indexed columns exist for querying.
type MeasurementRecord struct {
	ID         uint      `gorm:"primaryKey"`
	SessionID  string    `gorm:"type:varchar(36);index;not null"`
	Kind       string    `gorm:"index;not null"` // heart or voice
	Quality    string    `gorm:"index"`
	Payload    string    `gorm:"type:text;not null"`
	CapturedAt time.Time `gorm:"index"`
	CreatedAt  time.Time
}

// Open initializes the measurement database at the given path, creating
// the parent directory and migrating the schema as needed.
func Open(dsn string) (*gorm.DB, error) {
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindStorage,
				"store open", "failed to create data directory", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage,
			"store open", "failed to open database", err)
	}

	if err := db.AutoMigrate(&MeasurementRecord{}); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage,
			"store open", "failed to migrate schema", err)
	}
	return db, nil
}
