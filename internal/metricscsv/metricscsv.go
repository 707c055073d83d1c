// Package metricscsv parses the per-unit quality metrics Kilosort post-processing
// writes to metrics.csv, one row per sorted unit. Files with one row per
// cluster and epoch are rejected as duplicate cluster ids.
package metricscsv

import (
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const ClusterIDColumn = "cluster_id"

var ErrNoClusterID = errors.New("metrics.csv has no cluster_id column")

// Unit is one row of metrics.csv. Metrics missing from the file or recorded as
// NaN are nil.
type Unit struct {
	ClusterID   int64
	PeakChannel *int64
	Quality     *string
	EpochName   *string

	// Metrics holds every numeric column keyed by its header.
	Metrics map[string]*float64
	// Other holds non-numeric columns that are not otherwise mapped.
	Other map[string]string
}

// Metric returns the named metric, or nil when absent or NaN.
func (u *Unit) Metric(name string) *float64 {
	return u.Metrics[name]
}

// ParseFile parses the metrics.csv at path.
func ParseFile(path string) ([]Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics.csv: %w", err)
	}
	defer f.Close()

	units, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return units, nil
}

// Parse reads metrics.csv content. The header row is required; an unnamed
// leading index column is ignored.
func Parse(r io.Reader) ([]Unit, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty metrics.csv")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	clusterIdx := -1
	for i, name := range header {
		if name == ClusterIDColumn {
			clusterIdx = i
			break
		}
	}
	if clusterIdx < 0 {
		return nil, ErrNoClusterID
	}

	var units []Unit
	seen := map[int64]int{}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		unit, err := parseRecord(header, clusterIdx, record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if prev, ok := seen[unit.ClusterID]; ok {
			return nil, fmt.Errorf("line %d: duplicate cluster_id %d (first on line %d)", line, unit.ClusterID, prev)
		}
		seen[unit.ClusterID] = line

		units = append(units, unit)
	}

	return units, nil
}

func parseRecord(header []string, clusterIdx int, record []string) (Unit, error) {
	if clusterIdx >= len(record) {
		return Unit{}, fmt.Errorf("missing cluster_id")
	}

	clusterID, err := parseInt(record[clusterIdx])
	if err != nil {
		return Unit{}, fmt.Errorf("invalid cluster_id '%s': %w", record[clusterIdx], err)
	}

	unit := Unit{
		ClusterID: clusterID,
		Metrics:   map[string]*float64{},
		Other:     map[string]string{},
	}

	for i, name := range header {
		if i == clusterIdx || name == "" || i >= len(record) {
			continue
		}

		value := strings.TrimSpace(record[i])

		switch name {
		case "peak_channel":
			if isMissing(value) {
				continue
			}
			channel, err := parseInt(value)
			if err != nil {
				return Unit{}, fmt.Errorf("invalid peak_channel '%s': %w", value, err)
			}
			unit.PeakChannel = &channel
		case "quality":
			if value != "" {
				unit.Quality = &value
			}
		case "epoch_name":
			if value != "" {
				unit.EpochName = &value
			}
		default:
			if isMissing(value) {
				unit.Metrics[name] = nil
				continue
			}
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				unit.Other[name] = value
				continue
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				unit.Metrics[name] = nil
				continue
			}
			unit.Metrics[name] = &f
		}
	}

	return unit, nil
}

// parseInt accepts integers written as floats, e.g. "12.0".
func parseInt(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i, nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("not an integer")
	}
	return int64(f), nil
}

func isMissing(value string) bool {
	switch strings.ToLower(value) {
	case "", "nan", "na", "n/a", "none", "null":
		return true
	}
	return false
}

// MD5 returns the hex MD5 digest of the file at path.
func MD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
