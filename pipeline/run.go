// Package pipeline loads a directory of activity files into a year-bucketed
// export and exposes the loaded exports through string handles.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	heatmap "github.com/lucasjlepore/fit-heatmap"
	"github.com/lucasjlepore/fit-heatmap/trackfit"
	"github.com/lucasjlepore/fit-heatmap/trackgpx"
)

type fileOutcome struct {
	activity heatmap.Activity
	ok       bool
	reason   string
}

// Run decodes every regular file directly inside dir and groups the
// resulting activities by year. Files that cannot be decoded are skipped
// and listed in Result.Skipped. Only a failure to list dir, or ctx being
// done before all files have started, fails the run.
func Run(ctx context.Context, dir string, opts Options, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = discardLogger()
	}
	started := time.Now()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read directory %s: %w", heatmap.ErrIO, dir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]fileOutcome, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = loadFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load directory %s: %w", dir, err)
	}

	result := &Result{Files: len(paths)}
	activities := make([]heatmap.Activity, 0, len(paths))
	for i, outcome := range outcomes {
		if !outcome.ok {
			logger.Debug("skipped file", "path", paths[i], "reason", outcome.reason)
			result.Skipped = append(result.Skipped, SkippedFile{Path: paths[i], Reason: outcome.reason})
			continue
		}
		activities = append(activities, outcome.activity)
	}

	result.Export = heatmap.GroupByYear(activities)
	result.Activities = len(activities)
	result.Years = result.Export.Years()
	result.Elapsed = time.Since(started)

	logger.Info("directory loaded",
		"dir", dir,
		"files", result.Files,
		"activities", result.Activities,
		"skipped", len(result.Skipped),
		"years", len(result.Years),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func loadFile(path string) fileOutcome {
	info, err := os.Stat(path)
	if err != nil {
		return fileOutcome{reason: fmt.Sprintf("stat: %v", err)}
	}
	if !info.Mode().IsRegular() {
		return fileOutcome{reason: "not a regular file"}
	}

	samples, err := Decode(path)
	if err != nil {
		return fileOutcome{reason: err.Error()}
	}
	activity, ok := heatmap.NewActivity(samples)
	if !ok {
		return fileOutcome{reason: "no samples"}
	}
	return fileOutcome{activity: activity, ok: true}
}

// Decode reads the samples of one file, choosing the decoder from the
// file name.
func Decode(path string) ([]heatmap.Sample, error) {
	switch format := heatmap.Classify(path); format {
	case heatmap.FormatBinaryCompressed:
		return trackfit.DecodeFile(path, true)
	case heatmap.FormatBinary:
		return trackfit.DecodeFile(path, false)
	case heatmap.FormatXML:
		return trackgpx.DecodeFile(path)
	default:
		return nil, fmt.Errorf("%w: %s", heatmap.ErrUnrecognizedFormat, filepath.Base(path))
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
