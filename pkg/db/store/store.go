package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/ephysdb/pkg/db/migrations"
	"github.com/mwantia/ephysdb/pkg/db/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const sortedUnitBatchSize = 250

// GormStore implements MetadataStore on top of a gorm dialector
type GormStore struct {
	db      *gorm.DB
	dialect string
}

// DB returns the underlying GORM database instance
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Config holds the dialect-specific connection settings
type Config struct {
	// Type is either sqlite or mysql
	Type   string
	Path   string
	DSN    string
	Logger logger.Interface
}

// New opens a metadata store for the configured dialect. Opening never
// removes or truncates an existing database.
func New(cfg Config) (*GormStore, error) {
	var dialector gorm.Dialector

	dialect := strings.ToLower(cfg.Type)
	switch dialect {
	case "", "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		dialect = "sqlite"
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	case "mysql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mysql dsn is required")
		}
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported metadata store type '%s'", cfg.Type)
	}

	// Default to silent logging
	if cfg.Logger == nil {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         cfg.Logger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	return &GormStore{
		db:      db,
		dialect: dialect,
	}, nil
}

// sqliteDSN enables foreign key enforcement, which SQLite leaves off per connection.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=foreign_keys") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&_pragma=foreign_keys(1)"
	}
	return path + "?_pragma=foreign_keys(1)"
}

// Connect initializes the database connection
func (s *GormStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if s.dialect == "sqlite" {
		sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
		sqlDB.SetMaxIdleConns(1)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs all pending schema migrations
func (s *GormStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *GormStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) WriteBatch(ctx context.Context, batch *Batch, overwrite bool) error {
	if batch == nil || batch.Session == nil || batch.Recording == nil {
		return fmt.Errorf("batch requires a session and a recording")
	}

	for i := range batch.ProbeRecordings {
		if err := batch.ProbeRecordings[i].Validate(); err != nil {
			return err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		write := func(table string, value any, size int) error {
			query := tx.Omit(clause.Associations)
			if overwrite {
				query = query.Clauses(clause.OnConflict{UpdateAll: true})
			}

			var err error
			if size > 0 {
				err = query.CreateInBatches(value, size).Error
			} else {
				err = query.Create(value).Error
			}
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", table, err)
			}
			return nil
		}

		if err := write("lims_ecephys_sessions", batch.Session, 0); err != nil {
			return err
		}
		if err := write("recordings", batch.Recording, 0); err != nil {
			return err
		}
		if len(batch.Probes) > 0 {
			if err := write("probes", &batch.Probes, 0); err != nil {
				return err
			}
		}
		if len(batch.ProbeRecordings) > 0 {
			if err := write("probe_recordings", &batch.ProbeRecordings, 0); err != nil {
				return err
			}
		}
		if overwrite {
			// A re-sorted probe replaces its units instead of merging into them
			for _, pr := range batch.ProbeRecordings {
				err := tx.Where("settings_xml_md5 = ? AND probe_serial_number = ?", pr.SettingsXMLMD5, pr.ProbeSerialNumber).
					Delete(&models.SortedUnit{}).Error
				if err != nil {
					return fmt.Errorf("failed to clear sorted_units of probe %d: %w", pr.ProbeSerialNumber, err)
				}
			}
		}
		if len(batch.SortedUnits) > 0 {
			if err := write("sorted_units", &batch.SortedUnits, sortedUnitBatchSize); err != nil {
				return err
			}
		}

		return nil
	})

	return translateError(err)
}

// translateError maps unique violations onto ErrDuplicateKey. gorm translates
// them for dialectors that support it; the message checks cover the rest.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicateKey) {
		return err
	}

	msg := err.Error()
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// Session operations

func (s *GormStore) GetSession(ctx context.Context, limsID int64) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).Where("lims_id = ?", limsID).First(&session).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("session %d", limsID))
	}
	return &session, nil
}

func (s *GormStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).Order("lims_id ASC").Find(&sessions).Error
	return sessions, err
}

// Recording operations

func (s *GormStore) GetRecording(ctx context.Context, settingsXMLMD5 string) (*models.Recording, error) {
	var recording models.Recording
	err := s.db.WithContext(ctx).Where("settings_xml_md5 = ?", settingsXMLMD5).First(&recording).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("recording %s", settingsXMLMD5))
	}
	return &recording, nil
}

func (s *GormStore) GetRecordingBySession(ctx context.Context, limsID int64) (*models.Recording, error) {
	var recording models.Recording
	err := s.db.WithContext(ctx).
		Where("lims_session_id = ?", limsID).
		Order("date DESC, start_time DESC").
		First(&recording).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("recording of session %d", limsID))
	}
	return &recording, nil
}

// Probe operations

func (s *GormStore) GetProbe(ctx context.Context, serialNumber int64) (*models.Probe, error) {
	var probe models.Probe
	err := s.db.WithContext(ctx).Where("serial_number = ?", serialNumber).First(&probe).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("probe %d", serialNumber))
	}
	return &probe, nil
}

func (s *GormStore) ListSessionProbes(ctx context.Context, limsID int64) ([]SessionProbe, error) {
	var probes []SessionProbe
	err := s.db.WithContext(ctx).
		Table("probe_recordings AS pr").
		Select(`r.lims_session_id AS lims_session_id,
			pr.settings_xml_md5 AS settings_xml_md5,
			r.rig AS rig,
			r.hostname AS hostname,
			pr.probe_letter AS probe_letter,
			pr.probe_serial_number AS probe_serial_number,
			p.neuropixels_version AS neuropixels_version,
			pr.metrics_csv_md5 AS metrics_csv_md5,
			(SELECT COUNT(*) FROM sorted_units su
				WHERE su.settings_xml_md5 = pr.settings_xml_md5
				AND su.probe_serial_number = pr.probe_serial_number) AS units`).
		Joins("JOIN recordings r ON r.settings_xml_md5 = pr.settings_xml_md5").
		Joins("JOIN probes p ON p.serial_number = pr.probe_serial_number").
		Where("r.lims_session_id = ?", limsID).
		Order("pr.probe_letter ASC").
		Scan(&probes).Error
	return probes, err
}

// Sorted unit operations

func (s *GormStore) ListSortedUnits(ctx context.Context, settingsXMLMD5 string, serialNumber int64) ([]models.SortedUnit, error) {
	var units []models.SortedUnit
	err := s.db.WithContext(ctx).
		Where("settings_xml_md5 = ? AND probe_serial_number = ?", settingsXMLMD5, serialNumber).
		Order("cluster_id ASC").
		Find(&units).Error
	return units, err
}
