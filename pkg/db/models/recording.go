package models

import (
	"time"

	"gorm.io/datatypes"
)

// Recording is one Open Ephys acquisition, identified by the MD5 of its settings.xml
type Recording struct {
	SettingsXMLMD5 string `gorm:"column:settings_xml_md5;primaryKey;type:varchar(32)"`
	LimsSessionID  *int64 `gorm:"column:lims_session_id;index"`

	Hostname         string         `gorm:"type:varchar(255);not null"`
	Rig              *string        `gorm:"type:varchar(32)"`
	Date             datatypes.Date `gorm:"not null"`
	StartTime        datatypes.Time `gorm:"not null"`
	DurationSeconds  *float64
	OpenEphysVersion string `gorm:"type:varchar(32);not null"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	ProbeRecordings []ProbeRecording `gorm:"foreignKey:SettingsXMLMD5;references:SettingsXMLMD5;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
