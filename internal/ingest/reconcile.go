package ingest

import (
	"fmt"

	"github.com/mwantia/ephysdb/internal/settingsxml"
	"github.com/mwantia/ephysdb/pkg/db/models"
)

// Reconcile maps probe serial numbers onto probe letters.
//
// With settings.xml available its parallel serial/letter lists are zipped
// positionally and the metrics files are not consulted. Without it the
// letter→metrics.csv map is inverted and composed with serial→metrics.csv;
// entries without a counterpart on the other side are dropped.
func Reconcile(info *settingsxml.Info, letterToPath map[models.ProbeLetter]string, serialToPath map[int64]string, requireSettings bool) (map[int64]models.ProbeLetter, error) {
	if info != nil {
		n := min(len(info.ProbeSerialNumbers), len(info.ProbeLetters))

		serialToLetter := make(map[int64]models.ProbeLetter, n)
		for i := 0; i < n; i++ {
			serialToLetter[info.ProbeSerialNumbers[i]] = info.ProbeLetters[i]
		}
		return serialToLetter, nil
	}

	if requireSettings {
		return nil, fmt.Errorf("%w: no settings.xml available", ErrMissingMetadata)
	}
	if len(letterToPath) == 0 {
		return nil, fmt.Errorf("%w: no metrics files available", ErrMissingMetadata)
	}

	pathToLetter := make(map[string]models.ProbeLetter, len(letterToPath))
	for letter, path := range letterToPath {
		pathToLetter[path] = letter
	}

	serialToLetter := make(map[int64]models.ProbeLetter, len(serialToPath))
	for serial, path := range serialToPath {
		if letter, ok := pathToLetter[path]; ok {
			serialToLetter[serial] = letter
		}
	}
	return serialToLetter, nil
}

// MetricsBySerial resolves the metrics.csv of every reconciled probe through
// its letter. Probes without a letter or without a metrics file are left out.
func MetricsBySerial(serialToLetter map[int64]models.ProbeLetter, letterToPath map[models.ProbeLetter]string) map[int64]string {
	serialToPath := make(map[int64]string, len(serialToLetter))
	for serial, letter := range serialToLetter {
		if letter == "" {
			continue
		}
		if path, ok := letterToPath[letter]; ok {
			serialToPath[serial] = path
		}
	}
	return serialToPath
}
