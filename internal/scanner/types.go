package scanner

import (
	"encoding/json"
	"time"

	"github.com/h4x3rotab/repoview/internal/routes"
)

// Reason explains why a link is broken.
type Reason string

const (
	ReasonEscape        Reason = "escape"
	ReasonMissing       Reason = "missing"
	ReasonBadEncoding   Reason = "bad_encoding"
	ReasonUnknownRoute  Reason = "unknown_route"
	ReasonNotAFile      Reason = "not_a_file"
	ReasonNotADirectory Reason = "not_a_directory"
	ReasonInvalidURL    Reason = "invalid_url"
)

// KindURL marks entries that failed before a route kind could be determined.
const KindURL = "url"

// BrokenLinkEntry is one link that does not resolve.
type BrokenLinkEntry struct {
	// Source is the document containing the link, relative to the root
	Source string `json:"source" yaml:"source"`
	// URL is the link as it appears in the rendered document
	URL    string `json:"url" yaml:"url"`
	Kind   string `json:"kind" yaml:"kind"`
	Reason Reason `json:"reason" yaml:"reason"`
	// Target is the decoded repository path the link points at, when known
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
}

// Timestamp is a wall-clock instant encoded as Unix milliseconds in JSON.
// The zero value encodes as null.
type Timestamp struct {
	time.Time
}

// Stamp wraps t.
func Stamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}

	return json.Marshal(t.UnixMilli())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	t.Time = time.UnixMilli(ms)

	return nil
}

// MarshalYAML encodes the instant the same way as JSON.
func (t Timestamp) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}

	return t.UnixMilli(), nil
}

// ScanResult is an immutable snapshot produced by one scan.
type ScanResult struct {
	StartedAt    Timestamp         `json:"startedAt" yaml:"startedAt"`
	FinishedAt   Timestamp         `json:"finishedAt" yaml:"finishedAt"`
	DurationMs   int64             `json:"durationMs" yaml:"durationMs"`
	FilesScanned int               `json:"filesScanned" yaml:"filesScanned"`
	URLsChecked  int               `json:"urlsChecked" yaml:"urlsChecked"`
	Broken       []BrokenLinkEntry `json:"broken" yaml:"broken"`
}

// Status is the scanner's run state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
)

// State is a point-in-time copy of the scanner state.
type State struct {
	Status         Status      `json:"status" yaml:"status"`
	LastResult     *ScanResult `json:"lastResult" yaml:"lastResult"`
	LastError      *string     `json:"lastError" yaml:"lastError"`
	LastStartedAt  Timestamp   `json:"lastStartedAt" yaml:"lastStartedAt"`
	LastFinishedAt Timestamp   `json:"lastFinishedAt" yaml:"lastFinishedAt"`
}

// ScanOptions bounds a single scan. Zero fields take the package defaults.
type ScanOptions struct {
	MaxFiles        int
	MaxBytesPerFile int64
	Concurrency     int
}

const (
	DefaultMaxFiles        = 5000
	DefaultMaxBytesPerFile = 2 * 1024 * 1024
	DefaultConcurrency     = 16
)

func (o ScanOptions) withDefaults() ScanOptions {
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}
	if o.MaxBytesPerFile <= 0 {
		o.MaxBytesPerFile = DefaultMaxBytesPerFile
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}

	return o
}

func brokenEntry(source, url string, kind routes.Kind, reason Reason, target string) BrokenLinkEntry {
	k := string(kind)
	if k == "" {
		k = KindURL
	}

	return BrokenLinkEntry{Source: source, URL: url, Kind: k, Reason: reason, Target: target}
}
