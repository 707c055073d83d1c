package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadSessionList reads a JSON array of session identifiers. Entries may be
// folder names, paths or bare numeric session ids.
func LoadSessionList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session list: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var entries []any
	if err := decoder.Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to parse session list %s: %w", path, err)
	}

	ids := make([]string, 0, len(entries))
	for i, entry := range entries {
		switch v := entry.(type) {
		case string:
			if id := strings.TrimSpace(v); id != "" {
				ids = append(ids, id)
			}
		case json.Number:
			ids = append(ids, v.String())
		default:
			return nil, fmt.Errorf("session list %s: entry %d has unsupported type %T", path, i, entry)
		}
	}

	return ids, nil
}
