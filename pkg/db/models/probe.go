package models

import (
	"strings"
	"time"
)

type NeuropixelsVersion string

const (
	NeuropixelsV1      NeuropixelsVersion = "1.0"
	NeuropixelsUltra   NeuropixelsVersion = "Ultra"
	NeuropixelsUnknown NeuropixelsVersion = "unknown"
)

// NeuropixelsVersions is scanned in order; the first tag contained in a probe
// type string wins.
var NeuropixelsVersions = []NeuropixelsVersion{
	NeuropixelsV1,
	NeuropixelsUltra,
}

// ClassifyNeuropixelsVersion returns the first known version tag that appears
// in probeType, or NeuropixelsUnknown.
func ClassifyNeuropixelsVersion(probeType string) NeuropixelsVersion {
	for _, version := range NeuropixelsVersions {
		if strings.Contains(probeType, string(version)) {
			return version
		}
	}
	return NeuropixelsUnknown
}

// Probe is a physical Neuropixels probe
type Probe struct {
	SerialNumber       int64               `gorm:"primaryKey;autoIncrement:false"`
	NeuropixelsVersion *NeuropixelsVersion `gorm:"type:varchar(16);check:neuropixels_version IN ('1.0','Ultra','unknown')"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	ProbeRecordings []ProbeRecording `gorm:"foreignKey:ProbeSerialNumber;references:SerialNumber;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
