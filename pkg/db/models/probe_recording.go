package models

import (
	"fmt"
	"time"
)

type ProbeLetter string

// ProbeLetters is the fixed alphabet of probe letters, in insertion order.
var ProbeLetters = []ProbeLetter{"A", "B", "C", "D", "E", "F"}

func (l ProbeLetter) Valid() bool {
	for _, letter := range ProbeLetters {
		if l == letter {
			return true
		}
	}
	return false
}

// ParseProbeLetter accepts "A", "a", "probeA" and "ProbeA".
func ParseProbeLetter(s string) (ProbeLetter, error) {
	if len(s) > 5 && (s[:5] == "probe" || s[:5] == "Probe") {
		s = s[5:]
	}
	if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
		s = string(s[0] - 'a' + 'A')
	}
	letter := ProbeLetter(s)
	if !letter.Valid() {
		return "", fmt.Errorf("invalid probe letter '%s'", s)
	}
	return letter, nil
}

// ProbeRecording is the recording of one probe within one Recording
type ProbeRecording struct {
	SettingsXMLMD5    string      `gorm:"column:settings_xml_md5;primaryKey;type:varchar(32)"`
	ProbeSerialNumber int64       `gorm:"primaryKey;autoIncrement:false"`
	ProbeLetter       ProbeLetter `gorm:"type:varchar(1);not null;check:probe_letter IN ('A','B','C','D','E','F')"`
	MetricsCSVMD5     *string     `gorm:"column:metrics_csv_md5;type:varchar(32)"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	SortedUnits []SortedUnit `gorm:"foreignKey:SettingsXMLMD5,ProbeSerialNumber;references:SettingsXMLMD5,ProbeSerialNumber;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (pr *ProbeRecording) Validate() error {
	if pr.SettingsXMLMD5 == "" {
		return fmt.Errorf("probe recording of probe %d has no settings.xml hash", pr.ProbeSerialNumber)
	}
	if !pr.ProbeLetter.Valid() {
		return fmt.Errorf("probe recording of probe %d has invalid letter '%s'", pr.ProbeSerialNumber, pr.ProbeLetter)
	}
	return nil
}
