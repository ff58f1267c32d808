// Package catalogsync sequences one account's provider scan across its
// enabled content-type phases, driving internal/ingest's pipeline and
// committer per phase and reporting progress as a stream of Status
// values (spec.md §4.8).
package catalogsync

import "github.com/karlokarate/nxcatalog/internal/provider"

// StatusKind tags a Status value's populated fields.
type StatusKind int

const (
	Started StatusKind = iota
	InProgress
	Completed
	Cancelled
	Error
)

// Status is one emission on a sync's status stream.
type Status struct {
	Kind StatusKind

	Phase     provider.Phase
	Processed int
	Total     int // 0 means unknown

	// Completed
	Totals         provider.ScanCounts
	DurationMs     int64
	WasIncremental bool

	// Cancelled
	Reason    string
	CanResume bool

	// Error
	ErrorType string
	Message   string
	CanRetry  bool
}
