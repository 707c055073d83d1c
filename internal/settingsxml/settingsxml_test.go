package settingsxml

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mwantia/ephysdb/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<SETTINGS>
  <INFO>
    <VERSION>0.6.1</VERSION>
    <PLUGIN_API_VERSION>8</PLUGIN_API_VERSION>
    <DATE>27 Jul 2021 13:04:52</DATE>
    <OS>Windows 10</OS>
    <MACHINE name="W10DT713843" cpu_model="Intel" cpu_num_cores="12"/>
  </INFO>
  <SIGNALCHAIN>
    <PROCESSOR name="Neuropix-PXI" nodeId="100">
      <EDITOR>
        <NP_PROBE slot="3" port="1" probe_serial_number="18005117143" probe_name="Neuropixels Ultra"/>
        <NP_PROBE slot="2" port="2" probe_serial_number="18005117142" probe_name="Neuropixels 1.0"/>
        <NP_PROBE slot="2" port="1" probe_serial_number="18005117141" probe_part_number="PRB_1_4_0480_1 (Neuropixels 1.0)"/>
      </EDITOR>
    </PROCESSOR>
    <PROCESSOR name="Record Node" nodeId="101">
      <NP_PROBE slot="2" port="1" probe_serial_number="18005117141" probe_name="ignored duplicate"/>
    </PROCESSOR>
  </SIGNALCHAIN>
</SETTINGS>
`

func TestParse(t *testing.T) {
	info, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "W10DT713843", info.Hostname)
	assert.Equal(t, "0.6.1", info.OpenEphysVersion)
	assert.Equal(t, time.Date(2021, time.July, 27, 13, 4, 52, 0, time.UTC), info.StartedAt)

	assert.Equal(t, []int64{18005117141, 18005117142, 18005117143}, info.ProbeSerialNumbers)
	assert.Equal(t, []models.ProbeLetter{"A", "B", "C"}, info.ProbeLetters)
	assert.Equal(t, []string{"PRB_1_4_0480_1 (Neuropixels 1.0)", "Neuropixels 1.0", "Neuropixels Ultra"}, info.ProbeTypes)
	assert.Empty(t, info.MD5)
}

func TestParse_MachineAsText(t *testing.T) {
	doc := `<SETTINGS><INFO><VERSION>0.4.4</VERSION><DATE>01 Jan 2020 09:00:00</DATE><MACHINE>NP1-ACQ</MACHINE></INFO>
<PROBE probe_serial_number="101"/></SETTINGS>`

	info, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "NP1-ACQ", info.Hostname)
	assert.Equal(t, []int64{101}, info.ProbeSerialNumbers)
	assert.Equal(t, []string{""}, info.ProbeTypes)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"missing version": `<SETTINGS><INFO><DATE>01 Jan 2020 09:00:00</DATE><MACHINE name="a"/></INFO><PROBE probe_serial_number="1"/></SETTINGS>`,
		"missing date":    `<SETTINGS><INFO><VERSION>1</VERSION><MACHINE name="a"/></INFO><PROBE probe_serial_number="1"/></SETTINGS>`,
		"bad date":        `<SETTINGS><INFO><VERSION>1</VERSION><DATE>yesterday</DATE><MACHINE name="a"/></INFO><PROBE probe_serial_number="1"/></SETTINGS>`,
		"bad serial":      `<SETTINGS><INFO><VERSION>1</VERSION><DATE>01 Jan 2020 09:00:00</DATE><MACHINE name="a"/></INFO><PROBE probe_serial_number="x"/></SETTINGS>`,
		"no probes":       `<SETTINGS><INFO><VERSION>1</VERSION><DATE>01 Jan 2020 09:00:00</DATE><MACHINE name="a"/></INFO></SETTINGS>`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_MissingFields(t *testing.T) {
	tests := map[string]string{
		"version":   `<SETTINGS><INFO><DATE>01 Jan 2020 09:00:00</DATE><MACHINE name="a"/></INFO><PROBE probe_serial_number="1"/></SETTINGS>`,
		"machine":   `<SETTINGS><INFO><VERSION>1</VERSION><DATE>01 Jan 2020 09:00:00</DATE></INFO><PROBE probe_serial_number="1"/></SETTINGS>`,
		"date":      `<SETTINGS><INFO><VERSION>1</VERSION><MACHINE name="a"/></INFO><PROBE probe_serial_number="1"/></SETTINGS>`,
		"probes":    `<SETTINGS><INFO><VERSION>1</VERSION><DATE>01 Jan 2020 09:00:00</DATE><MACHINE name="a"/></INFO></SETTINGS>`,
		"no serial": `<SETTINGS><INFO><VERSION>1</VERSION><DATE>01 Jan 2020 09:00:00</DATE><MACHINE name="a"/></INFO><PROBE slot="1"/></SETTINGS>`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}

	_, err := Parse(strings.NewReader(`<SETTINGS><INFO><VERSION>1</VERSION><DATE>yesterday</DATE><MACHINE name="a"/></INFO><PROBE probe_serial_number="1"/></SETTINGS>`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingField)
}

func TestParse_TooManyProbes(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<SETTINGS><INFO><VERSION>1</VERSION><DATE>01 Jan 2020 09:00:00</DATE><MACHINE name="a"/></INFO>`)
	for i := 1; i <= 7; i++ {
		b.WriteString(`<PROBE probe_serial_number="` + string(rune('0'+i)) + `"/>`)
	}
	b.WriteString(`</SETTINGS>`)

	_, err := Parse(strings.NewReader(b.String()))
	assert.ErrorContains(t, err, "at most 6")
}

func TestParseFile_SetsMD5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.xml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	info, err := ParseFile(path)
	require.NoError(t, err)

	sum := md5.Sum([]byte(sample))
	assert.Equal(t, hex.EncodeToString(sum[:]), info.MD5)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "settings.xml"))
	assert.Error(t, err)
}
