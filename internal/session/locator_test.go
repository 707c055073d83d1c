package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mwantia/ephysdb/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newSessionTree(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, "1116941914_366122_20210727")

	writeFile(t, filepath.Join(dir, "1116941914_366122_20210727_probeABC", "Record Node 101", "settings.xml"), "<SETTINGS/>")
	writeFile(t, filepath.Join(dir, "1116941914_366122_20210727_probeA_sorted", "continuous", "Neuropix-PXI-100.0", "metrics.csv"), "cluster_id\n")
	writeFile(t, filepath.Join(dir, "1116941914_366122_20210727_probeA_sorted", "probe_info.json"), `{"serial_number": 18005117142}`)
	writeFile(t, filepath.Join(dir, "1116941914_366122_20210727_probeB_sorted", "continuous", "Neuropix-PXI-100.0", "metrics.csv"), "cluster_id\n")
	writeFile(t, filepath.Join(dir, "1116941914_366122_20210727_probeB_sorted", "continuous", "probe_info.json"), `{"serial_number": "18005117143"}`)
	writeFile(t, filepath.Join(dir, "1116941914_366122_20210727_probeC_sorted", "metrics.csv"), "cluster_id\n")
	writeFile(t, filepath.Join(dir, "notes", "metrics.csv"), "cluster_id\n")

	return root, dir
}

func TestParseID(t *testing.T) {
	id, err := ParseID("/data/1116941914_366122_20210727")
	require.NoError(t, err)
	assert.Equal(t, int64(1116941914), id)

	id, err = ParseID("1116941914")
	require.NoError(t, err)
	assert.Equal(t, int64(1116941914), id)

	_, err = ParseID("DRpilot_644864_20230201")
	assert.ErrorIs(t, err, ErrNoSessionID)
}

func TestLocator_LocateByPath(t *testing.T) {
	_, dir := newSessionTree(t)

	files, err := NewLocator(nil, nil).Locate(dir)
	require.NoError(t, err)

	assert.Equal(t, int64(1116941914), files.ID)
	assert.Equal(t, filepath.Join(dir, "1116941914_366122_20210727_probeABC", "Record Node 101", "settings.xml"), files.SettingsXML)

	require.Len(t, files.ProbeLetterToMetricsCSV, 3)
	assert.Contains(t, files.ProbeLetterToMetricsCSV[models.ProbeLetter("A")], "probeA_sorted")
	assert.Contains(t, files.ProbeLetterToMetricsCSV[models.ProbeLetter("B")], "probeB_sorted")
	assert.Contains(t, files.ProbeLetterToMetricsCSV[models.ProbeLetter("C")], "probeC_sorted")

	assert.Equal(t, map[int64]string{
		18005117142: files.ProbeLetterToMetricsCSV["A"],
		18005117143: files.ProbeLetterToMetricsCSV["B"],
	}, files.ProbeSerialToMetricsCSV)
}

func TestLocator_ResolveAgainstRoots(t *testing.T) {
	root, dir := newSessionTree(t)
	locator := NewLocator([]string{filepath.Join(root, "missing"), root}, nil)

	resolved, err := locator.Resolve("1116941914_366122_20210727")
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)

	resolved, err = locator.Resolve("1116941914")
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)

	_, err = locator.Resolve("1234567890")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLocator_NoMetricsFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "1116941914_366122_20210727")
	writeFile(t, filepath.Join(dir, "settings.xml"), "<SETTINGS/>")

	_, err := NewLocator(nil, nil).Locate(dir)
	assert.ErrorIs(t, err, ErrNoMetricsFiles)
}

func TestLocator_RigForHostname(t *testing.T) {
	locator := NewLocator(nil, map[string]string{"W10DT713843": "NP.1", "empty": ""})

	rig := locator.RigForHostname("w10dt713843")
	require.NotNil(t, rig)
	assert.Equal(t, "NP.1", *rig)

	assert.Nil(t, locator.RigForHostname("unknown-host"))
	assert.Nil(t, locator.RigForHostname("empty"))
}
