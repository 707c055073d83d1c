package migrations

import (
	"context"
	"fmt"

	"github.com/mwantia/ephysdb/pkg/db/models"
	"gorm.io/gorm"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          func(*gorm.DB) error
	Down        func(*gorm.DB) error
}

// migrationHistory tracks applied migrations
type migrationHistory struct {
	ID          uint   `gorm:"primaryKey"`
	Version     int    `gorm:"uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	AppliedAt   int64  `gorm:"autoCreateTime"`
}

func (migrationHistory) TableName() string {
	return "ephysdb_schema_migrations"
}

// Migrator handles database migrations
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: allMigrations(),
	}
}

// Migrate runs all pending migrations
func (m *Migrator) Migrate(ctx context.Context) error {
	// Ensure migration history table exists
	if err := m.db.WithContext(ctx).AutoMigrate(&migrationHistory{}); err != nil {
		return fmt.Errorf("failed to create migration history table: %w", err)
	}

	// Get applied migrations
	var applied []migrationHistory
	if err := m.db.WithContext(ctx).Find(&applied).Error; err != nil {
		return fmt.Errorf("failed to query migration history: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for _, a := range applied {
		appliedVersions[a.Version] = true
	}

	// Run pending migrations
	for _, migration := range m.migrations {
		if appliedVersions[migration.Version] {
			continue
		}

		if err := m.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}
	}

	return nil
}

// Rollback rolls back the last applied migration
func (m *Migrator) Rollback(ctx context.Context) error {
	// Get last applied migration
	var last migrationHistory
	if err := m.db.WithContext(ctx).Order("version DESC").First(&last).Error; err != nil {
		return fmt.Errorf("no migrations to rollback: %w", err)
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last.Version {
			migration = &m.migrations[i]
			break
		}
	}

	if migration == nil {
		return fmt.Errorf("migration %d not found", last.Version)
	}

	// Run down migration
	if err := migration.Down(m.db.WithContext(ctx)); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	// Remove from history
	if err := m.db.WithContext(ctx).Delete(&last).Error; err != nil {
		return fmt.Errorf("failed to update migration history: %w", err)
	}

	return nil
}

// Status returns migration status
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if !m.db.WithContext(ctx).Migrator().HasTable(&migrationHistory{}) {
		return m.statuses(nil), nil
	}

	var applied []migrationHistory
	if err := m.db.WithContext(ctx).Find(&applied).Error; err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}

	return m.statuses(applied), nil
}

func (m *Migrator) statuses(applied []migrationHistory) []MigrationStatus {
	appliedVersions := make(map[int]bool)
	for _, a := range applied {
		appliedVersions[a.Version] = true
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, migration := range m.migrations {
		statuses = append(statuses, MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
			Applied:     appliedVersions[migration.Version],
		})
	}

	return statuses
}

// Pending returns the migrations not yet applied. A database that has never
// been migrated reports all of them.
func (m *Migrator) Pending(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	var pending []MigrationStatus
	for _, status := range statuses {
		if !status.Applied {
			pending = append(pending, status)
		}
	}
	return pending, nil
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
}

func (m *Migrator) runMigration(ctx context.Context, migration Migration) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Run migration
		if err := migration.Up(tx); err != nil {
			return err
		}

		// Record in history
		history := migrationHistory{
			Version:     migration.Version,
			Description: migration.Description,
		}
		return tx.Create(&history).Error
	})
}

// allMigrations returns all migrations in order
func allMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create lims_ecephys_sessions, recordings, probes, probe_recordings and sorted_units",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(
					&models.Session{},
					&models.Recording{},
					&models.Probe{},
					&models.ProbeRecording{},
					&models.SortedUnit{},
				)
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropTable(
					&models.SortedUnit{},
					&models.ProbeRecording{},
					&models.Probe{},
					&models.Recording{},
					&models.Session{},
				)
			},
		},
		{
			Version:     2,
			Description: "Index sorted_units.quality for good/mua/noise unit queries",
			Up: func(db *gorm.DB) error {
				return db.Exec("CREATE INDEX idx_sorted_units_quality ON sorted_units (quality)").Error
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropIndex(&models.SortedUnit{}, "idx_sorted_units_quality")
			},
		},
	}
}
