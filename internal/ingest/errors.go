package ingest

import "errors"

// ErrMissingMetadata marks a session whose required files or fields are absent.
// The runner logs and skips such sessions.
var ErrMissingMetadata = errors.New("missing metadata")
