package edits

import "time"

// BuildRecord is the persisted provenance of one kind within a build.
type BuildRecord struct {
	BuildID     string    `json:"build_id"`
	Kind        Kind      `json:"kind"`
	SourceURL   string    `json:"source_url,omitempty"`
	SourceFiles []string  `json:"source_files"`
	RowCount    int       `json:"row_count"`
	Digest      string    `json:"digest"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
