package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/mwantia/ephysdb/internal/metricscsv"
	"github.com/mwantia/ephysdb/internal/settingsxml"
	"github.com/mwantia/ephysdb/pkg/db/models"
	"github.com/mwantia/ephysdb/pkg/db/store"
	"github.com/mwantia/ephysdb/pkg/log"
	"gorm.io/datatypes"
)

// SessionInput is everything known about one session before it is written.
type SessionInput struct {
	SessionID int64
	Settings  *settingsxml.Info
	Rig       *string

	// DurationSeconds is optional and left NULL when unknown.
	DurationSeconds *float64

	SerialToLetter     map[int64]models.ProbeLetter
	SerialToMetricsCSV map[int64]string
}

// Writer turns a reconciled session into records and persists them.
type Writer struct {
	store store.MetadataStore
	log   log.LoggerService
}

func NewWriter(st store.MetadataStore, logger log.LoggerService) *Writer {
	return &Writer{
		store: st,
		log:   logger,
	}
}

// Write builds the session's batch and commits it in one transaction.
func (w *Writer) Write(ctx context.Context, in SessionInput, overwrite bool) (*store.Batch, error) {
	batch, err := w.Build(in)
	if err != nil {
		return nil, err
	}

	if err := w.store.WriteBatch(ctx, batch, overwrite); err != nil {
		return nil, fmt.Errorf("failed to write session %d: %w", in.SessionID, err)
	}

	return batch, nil
}

// Build constructs every record of a session without touching the store.
func (w *Writer) Build(in SessionInput) (*store.Batch, error) {
	if in.Settings == nil {
		return nil, fmt.Errorf("%w: no settings.xml available for session %d", ErrMissingMetadata, in.SessionID)
	}

	xml := in.Settings
	if xml.MD5 == "" {
		return nil, fmt.Errorf("%w: settings.xml of session %d has no content hash", ErrMissingMetadata, in.SessionID)
	}

	sessionID := in.SessionID
	started := xml.StartedAt

	batch := &store.Batch{
		Session: &models.Session{LimsID: sessionID},
		Recording: &models.Recording{
			SettingsXMLMD5:   xml.MD5,
			LimsSessionID:    &sessionID,
			Hostname:         xml.Hostname,
			Rig:              in.Rig,
			Date:             datatypes.Date(started),
			StartTime:        datatypes.NewTime(started.Hour(), started.Minute(), started.Second(), 0),
			DurationSeconds:  in.DurationSeconds,
			OpenEphysVersion: xml.OpenEphysVersion,
		},
	}

	known := make(map[int64]bool, len(xml.ProbeSerialNumbers))
	for i, serial := range xml.ProbeSerialNumbers {
		probeType := ""
		if i < len(xml.ProbeTypes) {
			probeType = xml.ProbeTypes[i]
		}

		version := models.ClassifyNeuropixelsVersion(probeType)
		batch.Probes = append(batch.Probes, models.Probe{
			SerialNumber:       serial,
			NeuropixelsVersion: &version,
		})
		known[serial] = true
	}

	serials := make([]int64, 0, len(in.SerialToLetter))
	for serial := range in.SerialToLetter {
		serials = append(serials, serial)
	}
	sort.Slice(serials, func(i, j int) bool { return serials[i] < serials[j] })

	for _, serial := range serials {
		letter := in.SerialToLetter[serial]
		if letter == "" {
			continue
		}

		path, ok := in.SerialToMetricsCSV[serial]
		if !ok {
			w.log.Debug("Probe %s (%d) of session %d has no metrics.csv, skipping", letter, serial, sessionID)
			continue
		}

		if !known[serial] {
			batch.Probes = append(batch.Probes, models.Probe{SerialNumber: serial})
			known[serial] = true
		}

		sum, err := metricscsv.MD5(path)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", path, err)
		}

		batch.ProbeRecordings = append(batch.ProbeRecordings, models.ProbeRecording{
			SettingsXMLMD5:    xml.MD5,
			ProbeSerialNumber: serial,
			ProbeLetter:       letter,
			MetricsCSVMD5:     &sum,
		})

		units, err := metricscsv.ParseFile(path)
		if err != nil {
			return nil, err
		}
		for i := range units {
			batch.SortedUnits = append(batch.SortedUnits, sortedUnit(xml.MD5, serial, &units[i]))
		}
	}

	return batch, nil
}

func sortedUnit(settingsXMLMD5 string, serial int64, unit *metricscsv.Unit) models.SortedUnit {
	record := models.SortedUnit{
		SettingsXMLMD5:    settingsXMLMD5,
		ProbeSerialNumber: serial,
		ClusterID:         unit.ClusterID,
		PeakChannel:       unit.PeakChannel,
		Quality:           unit.Quality,
		EpochName:         unit.EpochName,
	}

	fields := map[string]**float64{
		"firing_rate":        &record.FiringRate,
		"presence_ratio":     &record.PresenceRatio,
		"isi_viol":           &record.ISIViolations,
		"amplitude_cutoff":   &record.AmplitudeCutoff,
		"isolation_distance": &record.IsolationDistance,
		"l_ratio":            &record.LRatio,
		"d_prime":            &record.DPrime,
		"nn_hit_rate":        &record.NNHitRate,
		"nn_miss_rate":       &record.NNMissRate,
		"silhouette_score":   &record.SilhouetteScore,
		"max_drift":          &record.MaxDrift,
		"cumulative_drift":   &record.CumulativeDrift,
		"amplitude":          &record.Amplitude,
		"snr":                &record.SNR,
	}

	extra := datatypes.JSONMap{}
	for name, value := range unit.Metrics {
		if field, ok := fields[name]; ok {
			*field = value
			continue
		}
		if value == nil {
			extra[name] = nil
		} else {
			extra[name] = *value
		}
	}
	for name, value := range unit.Other {
		extra[name] = value
	}

	if len(extra) > 0 {
		record.Extra = extra
	}
	return record
}
