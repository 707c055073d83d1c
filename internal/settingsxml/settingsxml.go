// Package settingsxml reads the acquisition metadata Open Ephys writes to
// settings.xml at the start of every recording.
package settingsxml

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mwantia/ephysdb/pkg/db/models"
)

// DateLayout is the layout of INFO/DATE, e.g. "27 Jul 2021 13:04:52".
const DateLayout = "02 Jan 2006 15:04:05"

var (
	// ErrMissingField is wrapped by every error about a required element that
	// is absent from the document.
	ErrMissingField = errors.New("settings.xml is missing a required field")

	ErrNoProbes = fmt.Errorf("%w: no probes listed", ErrMissingField)
)

// Info is the metadata extracted from one settings.xml. The probe slices are
// parallel: index i of each describes the same probe.
type Info struct {
	MD5              string
	Hostname         string
	OpenEphysVersion string
	StartedAt        time.Time

	ProbeSerialNumbers []int64
	ProbeTypes         []string
	ProbeLetters       []models.ProbeLetter
}

type probe struct {
	serial int64
	kind   string
	slot   int
	port   int
	order  int
}

// ParseFile parses the settings.xml at path.
func ParseFile(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings.xml: %w", err)
	}

	info, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	sum := md5.Sum(data)
	info.MD5 = hex.EncodeToString(sum[:])
	return info, nil
}

// Parse reads settings.xml content from r. The MD5 field is left empty.
func Parse(r io.Reader) (*Info, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false

	info := &Info{}
	probes := map[int64]*probe{}

	var date string
	var path []string

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			path = append(path, strings.ToUpper(t.Name.Local))

			switch path[len(path)-1] {
			case "MACHINE":
				if name := attr(t, "name"); name != "" && info.Hostname == "" {
					info.Hostname = name
				}
			case "NP_PROBE", "PROBE":
				p, err := parseProbe(t, len(probes))
				if err != nil {
					return nil, err
				}
				if p != nil {
					if _, ok := probes[p.serial]; !ok {
						probes[p.serial] = p
					}
				}
			}
		case xml.EndElement:
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
		case xml.CharData:
			if len(path) < 2 || path[len(path)-2] != "INFO" {
				continue
			}
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}

			switch path[len(path)-1] {
			case "VERSION":
				info.OpenEphysVersion = text
			case "DATE":
				date = text
			case "MACHINE":
				// Older releases write the hostname as element text
				if info.Hostname == "" {
					info.Hostname = text
				}
			}
		}
	}

	if info.OpenEphysVersion == "" {
		return nil, fmt.Errorf("%w: INFO/VERSION", ErrMissingField)
	}
	if info.Hostname == "" {
		return nil, fmt.Errorf("%w: INFO/MACHINE", ErrMissingField)
	}
	if date == "" {
		return nil, fmt.Errorf("%w: INFO/DATE", ErrMissingField)
	}

	startedAt, err := time.Parse(DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid INFO/DATE '%s': %w", date, err)
	}
	info.StartedAt = startedAt

	if err := info.setProbes(probes); err != nil {
		return nil, err
	}
	return info, nil
}

func parseProbe(t xml.StartElement, order int) (*probe, error) {
	raw := attr(t, "probe_serial_number")
	if raw == "" {
		return nil, nil
	}

	serial, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid probe_serial_number '%s': %w", raw, err)
	}

	kind := attr(t, "probe_name")
	if kind == "" {
		kind = attr(t, "probe_part_number")
	}

	slot, _ := strconv.Atoi(attr(t, "slot"))
	port, _ := strconv.Atoi(attr(t, "port"))

	return &probe{serial: serial, kind: kind, slot: slot, port: port, order: order}, nil
}

// setProbes orders probes by (slot, port), falling back to document order,
// and letters them A-F.
func (info *Info) setProbes(probes map[int64]*probe) error {
	if len(probes) == 0 {
		return ErrNoProbes
	}
	if len(probes) > len(models.ProbeLetters) {
		return fmt.Errorf("settings.xml lists %d probes, at most %d are supported", len(probes), len(models.ProbeLetters))
	}

	sorted := make([]*probe, 0, len(probes))
	for _, p := range probes {
		sorted = append(sorted, p)
	}
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.slot != b.slot {
			return a.slot < b.slot
		}
		if a.port != b.port {
			return a.port < b.port
		}
		return a.order < b.order
	})

	for i, p := range sorted {
		info.ProbeSerialNumbers = append(info.ProbeSerialNumbers, p.serial)
		info.ProbeTypes = append(info.ProbeTypes, p.kind)
		info.ProbeLetters = append(info.ProbeLetters, models.ProbeLetters[i])
	}
	return nil
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}
