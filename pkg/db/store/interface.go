package store

import (
	"context"
	"errors"

	"github.com/mwantia/ephysdb/pkg/db/models"
)

var (
	// ErrDuplicateKey is returned by strict inserts that conflict with an existing primary key.
	ErrDuplicateKey = errors.New("duplicate key")

	ErrNotFound = errors.New("record not found")
)

// Batch is every record derived from one session, written in a single transaction.
type Batch struct {
	Session         *models.Session
	Recording       *models.Recording
	Probes          []models.Probe
	ProbeRecordings []models.ProbeRecording
	SortedUnits     []models.SortedUnit
}

// Rows returns the number of records in the batch per table.
func (b *Batch) Rows() map[string]int {
	rows := map[string]int{
		"probes":           len(b.Probes),
		"probe_recordings": len(b.ProbeRecordings),
		"sorted_units":     len(b.SortedUnits),
	}
	if b.Session != nil {
		rows["lims_ecephys_sessions"] = 1
	}
	if b.Recording != nil {
		rows["recordings"] = 1
	}
	return rows
}

// MetadataStore defines the interface for database operations
type MetadataStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// WriteBatch persists all records of a batch in one transaction. With
	// overwrite set every record is merged by primary key and the sorted units
	// of each written probe recording are replaced, otherwise records are
	// strictly inserted and a conflict fails with ErrDuplicateKey.
	WriteBatch(ctx context.Context, batch *Batch, overwrite bool) error

	// Session operations
	GetSession(ctx context.Context, limsID int64) (*models.Session, error)
	ListSessions(ctx context.Context) ([]models.Session, error)

	// Recording operations
	GetRecording(ctx context.Context, settingsXMLMD5 string) (*models.Recording, error)
	GetRecordingBySession(ctx context.Context, limsID int64) (*models.Recording, error)

	// Probe operations
	GetProbe(ctx context.Context, serialNumber int64) (*models.Probe, error)
	ListSessionProbes(ctx context.Context, limsID int64) ([]SessionProbe, error)

	// Sorted unit operations
	ListSortedUnits(ctx context.Context, settingsXMLMD5 string, serialNumber int64) ([]models.SortedUnit, error)
}

// SessionProbe is a probe recording joined with its probe and recording.
type SessionProbe struct {
	LimsSessionID      int64                      `gorm:"column:lims_session_id"`
	SettingsXMLMD5     string                     `gorm:"column:settings_xml_md5"`
	Rig                *string                    `gorm:"column:rig"`
	Hostname           string                     `gorm:"column:hostname"`
	ProbeLetter        models.ProbeLetter         `gorm:"column:probe_letter"`
	ProbeSerialNumber  int64                      `gorm:"column:probe_serial_number"`
	NeuropixelsVersion *models.NeuropixelsVersion `gorm:"column:neuropixels_version"`
	MetricsCSVMD5      *string                    `gorm:"column:metrics_csv_md5"`
	Units              int64                      `gorm:"column:units"`
}
