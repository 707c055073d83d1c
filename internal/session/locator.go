// Package session locates the files belonging to one recording session on the
// lab's file-based session storage.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mwantia/ephysdb/pkg/db/models"
)

const (
	MetricsFileName   = "metrics.csv"
	ProbeInfoFileName = "probe_info.json"
)

var (
	ErrSessionNotFound = errors.New("session folder not found")
	ErrNoMetricsFiles  = errors.New("no metrics files available")
	ErrNoSessionID     = errors.New("folder name does not start with a session id")

	sessionIDPattern = regexp.MustCompile(`^(\d{8,})`)
	probeDirPattern  = regexp.MustCompile(`(?i)probe_?([A-F])(?:[^A-Za-z]|$)`)
)

// Files is everything discovered for one session.
type Files struct {
	ID   int64
	Root string

	// SettingsXML is empty when no settings.xml was found.
	SettingsXML string

	ProbeLetterToMetricsCSV map[models.ProbeLetter]string
	ProbeSerialToMetricsCSV map[int64]string
}

// Locator resolves session identifiers against a set of storage roots.
type Locator struct {
	Roots []string

	// lowercased acquisition hostname to rig identifier
	rigs map[string]string
}

func NewLocator(roots []string, rigs map[string]string) *Locator {
	normalized := make(map[string]string, len(rigs))
	for hostname, rig := range rigs {
		normalized[strings.ToLower(hostname)] = rig
	}
	return &Locator{Roots: roots, rigs: normalized}
}

// RigForHostname returns the configured rig of an acquisition hostname.
func (l *Locator) RigForHostname(hostname string) *string {
	rig, ok := l.rigs[strings.ToLower(strings.TrimSpace(hostname))]
	if !ok || rig == "" {
		return nil
	}
	return &rig
}

// ParseID extracts the LIMS session id from a session folder name or path,
// e.g. 1116941914_366122_20210727 yields 1116941914.
func ParseID(identifier string) (int64, error) {
	base := filepath.Base(filepath.Clean(identifier))
	match := sessionIDPattern.FindStringSubmatch(base)
	if match == nil {
		return 0, fmt.Errorf("'%s': %w", identifier, ErrNoSessionID)
	}
	return strconv.ParseInt(match[1], 10, 64)
}

// Resolve returns the session folder for an identifier, which is either a
// directory path or a folder name (or folder name prefix) below one of the roots.
func (l *Locator) Resolve(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", fmt.Errorf("empty session identifier: %w", ErrSessionNotFound)
	}

	if info, err := os.Stat(identifier); err == nil && info.IsDir() {
		return identifier, nil
	}

	name := filepath.Base(filepath.Clean(identifier))
	for _, root := range l.Roots {
		candidate := filepath.Join(root, name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() && strings.HasPrefix(entry.Name(), name+"_") {
				return filepath.Join(root, entry.Name()), nil
			}
		}
	}

	return "", fmt.Errorf("'%s': %w", identifier, ErrSessionNotFound)
}

// Locate resolves identifier and discovers its settings.xml and metrics files.
// ErrNoMetricsFiles is returned when the session has no metrics.csv at all.
func (l *Locator) Locate(identifier string) (*Files, error) {
	root, err := l.Resolve(identifier)
	if err != nil {
		return nil, err
	}

	id, err := ParseID(root)
	if err != nil {
		return nil, err
	}

	files := &Files{
		ID:                      id,
		Root:                    root,
		ProbeLetterToMetricsCSV: map[models.ProbeLetter]string{},
		ProbeSerialToMetricsCSV: map[int64]string{},
	}

	var settings []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := strings.ToLower(d.Name())
		switch {
		case strings.HasPrefix(name, "settings") && strings.HasSuffix(name, ".xml"):
			settings = append(settings, path)
		case name == MetricsFileName:
			letter, ok := probeLetterFromPath(root, path)
			if !ok {
				return nil
			}
			if _, exists := files.ProbeLetterToMetricsCSV[letter]; !exists {
				files.ProbeLetterToMetricsCSV[letter] = path
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk session folder %s: %w", root, err)
	}

	if len(files.ProbeLetterToMetricsCSV) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoMetricsFiles)
	}

	if len(settings) > 0 {
		sort.Strings(settings)
		files.SettingsXML = settings[0]
	}

	for _, path := range files.ProbeLetterToMetricsCSV {
		serial, ok := probeSerialForMetrics(root, path)
		if ok {
			files.ProbeSerialToMetricsCSV[serial] = path
		}
	}

	return files, nil
}

// probeLetterFromPath finds the innermost probe<L> directory between root and path.
func probeLetterFromPath(root, path string) (models.ProbeLetter, bool) {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return "", false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		match := probeDirPattern.FindStringSubmatch(parts[i])
		if match == nil {
			continue
		}
		letter, err := models.ParseProbeLetter(strings.ToUpper(match[1]))
		if err == nil {
			return letter, true
		}
	}
	return "", false
}

type probeInfo struct {
	SerialNumber json.Number `json:"serial_number"`
}

// probeSerialForMetrics reads the nearest probe_info.json walking upwards from
// the metrics file, without leaving the session folder.
func probeSerialForMetrics(root, path string) (int64, bool) {
	root = filepath.Clean(root)
	for dir := filepath.Dir(path); dir != root && len(dir) > len(root); dir = filepath.Dir(dir) {
		data, err := os.ReadFile(filepath.Join(dir, ProbeInfoFileName))
		if err != nil {
			continue
		}

		var info probeInfo
		if err := json.Unmarshal(data, &info); err != nil || info.SerialNumber == "" {
			return 0, false
		}
		serial, err := info.SerialNumber.Int64()
		if err != nil {
			return 0, false
		}
		return serial, true
	}
	return 0, false
}
