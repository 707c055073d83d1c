package models

import "time"

// Session is an ecephys session as known to LIMS
type Session struct {
	LimsID int64 `gorm:"column:lims_id;primaryKey;autoIncrement:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Recording *Recording `gorm:"foreignKey:LimsSessionID;references:LimsID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (Session) TableName() string {
	return "lims_ecephys_sessions"
}
