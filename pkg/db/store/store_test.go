package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwantia/ephysdb/internal/config"
	"github.com/mwantia/ephysdb/pkg/db/models"
	"github.com/mwantia/ephysdb/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm/logger"
)

const testMD5 = "0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	st, err := New(Config{Path: filepath.Join(t.TempDir(), "store.sqlite")})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, st.Connect(ctx))
	require.NoError(t, st.Migrate(ctx))

	t.Cleanup(func() { st.Close() })
	return st
}

func ptr[T any](v T) *T {
	return &v
}

func testBatch() *Batch {
	sessionID := int64(1116941914)
	started := time.Date(2021, time.July, 27, 13, 4, 52, 0, time.UTC)

	return &Batch{
		Session: &models.Session{LimsID: sessionID},
		Recording: &models.Recording{
			SettingsXMLMD5:   testMD5,
			LimsSessionID:    &sessionID,
			Hostname:         "W10DT713843",
			Rig:              ptr("NP.1"),
			Date:             datatypes.Date(started),
			StartTime:        datatypes.NewTime(13, 4, 52, 0),
			OpenEphysVersion: "0.6.1",
		},
		Probes: []models.Probe{
			{SerialNumber: 101, NeuropixelsVersion: ptr(models.NeuropixelsV1)},
			{SerialNumber: 102, NeuropixelsVersion: ptr(models.NeuropixelsUltra)},
		},
		ProbeRecordings: []models.ProbeRecording{
			{SettingsXMLMD5: testMD5, ProbeSerialNumber: 101, ProbeLetter: "A", MetricsCSVMD5: ptr("aaaa")},
			{SettingsXMLMD5: testMD5, ProbeSerialNumber: 102, ProbeLetter: "B", MetricsCSVMD5: ptr("bbbb")},
		},
		SortedUnits: []models.SortedUnit{
			{SettingsXMLMD5: testMD5, ProbeSerialNumber: 101, ClusterID: 0, Quality: ptr("good"), FiringRate: ptr(5.5)},
			{SettingsXMLMD5: testMD5, ProbeSerialNumber: 101, ClusterID: 1, Quality: ptr("noise")},
			{SettingsXMLMD5: testMD5, ProbeSerialNumber: 102, ClusterID: 0, Extra: datatypes.JSONMap{"waveform_halfwidth": 0.2}},
		},
	}
}

func TestNew_Config(t *testing.T) {
	_, err := New(Config{Type: "sqlite"})
	assert.Error(t, err)

	_, err = New(Config{Type: "mysql"})
	assert.Error(t, err)

	_, err = New(Config{Type: "postgres", DSN: "host=localhost"})
	assert.Error(t, err)
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "db.sqlite?_pragma=foreign_keys(1)", sqliteDSN("db.sqlite"))
	assert.Equal(t, "db.sqlite?mode=rwc&_pragma=foreign_keys(1)", sqliteDSN("db.sqlite?mode=rwc"))
	assert.Equal(t, "db.sqlite?_pragma=foreign_keys(0)", sqliteDSN("db.sqlite?_pragma=foreign_keys(0)"))
}

func TestGormStore_WriteBatchAndQuery(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Health(ctx))
	require.NoError(t, st.WriteBatch(ctx, testBatch(), false))

	sessions, err := st.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(1116941914), sessions[0].LimsID)

	recording, err := st.GetRecording(ctx, testMD5)
	require.NoError(t, err)
	assert.Equal(t, "W10DT713843", recording.Hostname)
	assert.Equal(t, "0.6.1", recording.OpenEphysVersion)

	bySession, err := st.GetRecordingBySession(ctx, 1116941914)
	require.NoError(t, err)
	assert.Equal(t, testMD5, bySession.SettingsXMLMD5)

	probe, err := st.GetProbe(ctx, 102)
	require.NoError(t, err)
	require.NotNil(t, probe.NeuropixelsVersion)
	assert.Equal(t, models.NeuropixelsUltra, *probe.NeuropixelsVersion)

	probes, err := st.ListSessionProbes(ctx, 1116941914)
	require.NoError(t, err)
	require.Len(t, probes, 2)
	assert.Equal(t, models.ProbeLetter("A"), probes[0].ProbeLetter)
	assert.Equal(t, int64(2), probes[0].Units)
	assert.Equal(t, models.ProbeLetter("B"), probes[1].ProbeLetter)
	assert.Equal(t, int64(1), probes[1].Units)
	require.NotNil(t, probes[1].Rig)
	assert.Equal(t, "NP.1", *probes[1].Rig)

	units, err := st.ListSortedUnits(ctx, testMD5, 101)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "good", *units[0].Quality)
	assert.InDelta(t, 5.5, *units[0].FiringRate, 1e-9)
	assert.Nil(t, units[1].FiringRate)

	units, err = st.ListSortedUnits(ctx, testMD5, 102)
	require.NoError(t, err)
	require.Len(t, units, 1)
	halfwidth, ok := units[0].Extra["waveform_halfwidth"].(json.Number)
	require.True(t, ok, "%T", units[0].Extra["waveform_halfwidth"])
	value, err := halfwidth.Float64()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, value, 1e-9)
}

func TestGormStore_NotFound(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetSession(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetRecording(ctx, testMD5)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetRecordingBySession(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.GetProbe(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	probes, err := st.ListSessionProbes(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, probes)
}

func TestGormStore_StrictInsertConflicts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.WriteBatch(ctx, testBatch(), false))

	err := st.WriteBatch(ctx, testBatch(), false)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestGormStore_OverwriteMerges(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.WriteBatch(ctx, testBatch(), true))

	batch := testBatch()
	batch.Recording.Rig = ptr("NP.3")
	batch.SortedUnits[0].Quality = ptr("mua")
	require.NoError(t, st.WriteBatch(ctx, batch, true))

	var n int64
	require.NoError(t, st.DB().Model(&models.SortedUnit{}).Count(&n).Error)
	assert.Equal(t, int64(3), n)
	require.NoError(t, st.DB().Model(&models.Recording{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	recording, err := st.GetRecording(ctx, testMD5)
	require.NoError(t, err)
	assert.Equal(t, "NP.3", *recording.Rig)

	units, err := st.ListSortedUnits(ctx, testMD5, 101)
	require.NoError(t, err)
	assert.Equal(t, "mua", *units[0].Quality)
}

func TestGormStore_OverwriteReplacesUnitsOfResortedProbe(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.WriteBatch(ctx, testBatch(), true))

	batch := testBatch()
	batch.ProbeRecordings[0].MetricsCSVMD5 = ptr("cccc")
	batch.SortedUnits = []models.SortedUnit{
		{SettingsXMLMD5: testMD5, ProbeSerialNumber: 101, ClusterID: 99, Quality: ptr("good")},
		{SettingsXMLMD5: testMD5, ProbeSerialNumber: 102, ClusterID: 0},
	}
	require.NoError(t, st.WriteBatch(ctx, batch, true))

	units, err := st.ListSortedUnits(ctx, testMD5, 101)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, int64(99), units[0].ClusterID)

	units, err = st.ListSortedUnits(ctx, testMD5, 102)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Nil(t, units[0].Extra)

	probes, err := st.ListSessionProbes(ctx, 1116941914)
	require.NoError(t, err)
	require.Len(t, probes, 2)
	assert.Equal(t, "cccc", *probes[0].MetricsCSVMD5)
	assert.Equal(t, int64(1), probes[0].Units)
}

func TestGormStore_WriteBatchIsAtomic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	batch := testBatch()
	// Unit referencing a probe recording that is not part of the batch.
	batch.SortedUnits = append(batch.SortedUnits, models.SortedUnit{
		SettingsXMLMD5:    testMD5,
		ProbeSerialNumber: 999,
		ClusterID:         0,
	})

	require.Error(t, st.WriteBatch(ctx, batch, true))

	_, err := st.GetSession(ctx, 1116941914)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_WriteBatchValidates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, st.WriteBatch(ctx, &Batch{}, true))

	batch := testBatch()
	batch.ProbeRecordings[0].ProbeLetter = "G"
	assert.Error(t, st.WriteBatch(ctx, batch, true))
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(errors.New("UNIQUE constraint failed: probes.serial_number")), ErrDuplicateKey)
	assert.ErrorIs(t, translateError(errors.New("Error 1062: Duplicate entry '1' for key 'PRIMARY'")), ErrDuplicateKey)

	other := errors.New("disk I/O error")
	assert.Equal(t, other, translateError(other))
}

func TestParseGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, ParseGormLogLevel(""))
	assert.Equal(t, logger.Silent, ParseGormLogLevel("silent"))
	assert.Equal(t, logger.Error, ParseGormLogLevel("ERROR"))
	assert.Equal(t, logger.Warn, ParseGormLogLevel("warning"))
	assert.Equal(t, logger.Info, ParseGormLogLevel("debug"))
}

func TestNewGormLogger(t *testing.T) {
	var buf bytes.Buffer
	l := log.NewLoggerServiceWithWriter("db", config.LogConfig{Level: "DEBUG"}, &buf)

	st, err := New(Config{
		Path:   filepath.Join(t.TempDir(), "trace.sqlite"),
		Logger: NewGormLogger(l, logger.Info),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Connect(ctx))
	require.NoError(t, st.Migrate(ctx))

	assert.Contains(t, buf.String(), "CREATE TABLE")
}
