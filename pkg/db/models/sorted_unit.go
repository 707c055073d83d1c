package models

import (
	"time"

	"gorm.io/datatypes"
)

// SortedUnit is one row of a probe's metrics.csv
type SortedUnit struct {
	SettingsXMLMD5    string `gorm:"column:settings_xml_md5;primaryKey;type:varchar(32)"`
	ProbeSerialNumber int64  `gorm:"primaryKey;autoIncrement:false"`
	ClusterID         int64  `gorm:"primaryKey;autoIncrement:false"`

	PeakChannel       *int64
	Quality           *string `gorm:"type:varchar(32)"`
	EpochName         *string `gorm:"type:varchar(64)"`
	FiringRate        *float64
	PresenceRatio     *float64
	ISIViolations     *float64 `gorm:"column:isi_viol"`
	AmplitudeCutoff   *float64
	IsolationDistance *float64
	LRatio            *float64 `gorm:"column:l_ratio"`
	DPrime            *float64 `gorm:"column:d_prime"`
	NNHitRate         *float64 `gorm:"column:nn_hit_rate"`
	NNMissRate        *float64 `gorm:"column:nn_miss_rate"`
	SilhouetteScore   *float64
	MaxDrift          *float64
	CumulativeDrift   *float64
	Amplitude         *float64
	SNR               *float64 `gorm:"column:snr"`

	// Extra holds any metrics.csv column without a dedicated field
	Extra datatypes.JSONMap

	CreatedAt time.Time
	UpdatedAt time.Time
}
