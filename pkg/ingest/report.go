package ingest

import (
	"time"

	"claimforge/compliance/pkg/edits"
)

// Report describes one build: what was staged for each kind and whether
// the snapshot was committed.
type Report struct {
	BuildID    string        `json:"build_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Committed  bool          `json:"committed"`
	Kinds      []*KindReport `json:"kinds"`
}

// KindReport is the staging outcome of one edit kind.
type KindReport struct {
	Kind      edits.Kind `json:"kind"`
	SourceURL string     `json:"source_url,omitempty"`

	// Files are the local distributions that were extracted.
	Files []string `json:"files"`

	Entries    int `json:"entries"`
	Tables     int `json:"tables"`
	RowsRead   int `json:"rows_read"`
	Rows       int `json:"rows"`
	Dropped    int `json:"dropped"`
	Duplicates int `json:"duplicates"`

	// DecodeFailures lists archive entries skipped as undecodable.
	DecodeFailures []string `json:"decode_failures,omitempty"`

	Digest   string        `json:"digest,omitempty"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Kind returns the report for k, or nil if k was not part of the build.
func (r *Report) Kind(k edits.Kind) *KindReport {
	for _, kr := range r.Kinds {
		if kr.Kind == k {
			return kr
		}
	}
	return nil
}

// Rows returns the total number of staged rows.
func (r *Report) Rows() int {
	n := 0
	for _, kr := range r.Kinds {
		n += kr.Rows
	}
	return n
}
