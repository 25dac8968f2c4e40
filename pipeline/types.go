package pipeline

import (
	"time"

	heatmap "github.com/lucasjlepore/fit-heatmap"
)

// Options configures a directory load.
type Options struct {
	// Workers bounds the number of files decoded at once. Zero or less
	// means runtime.GOMAXPROCS(0).
	Workers int
}

// Result describes one directory load.
type Result struct {
	Export     heatmap.Export `json:"-"`
	Files      int            `json:"files"`
	Activities int            `json:"activities"`
	Years      []int          `json:"years"`
	Skipped    []SkippedFile  `json:"skipped,omitempty"`
	Elapsed    time.Duration  `json:"elapsed_ns"`
}

// SkippedFile is a directory entry that produced no activity.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}
