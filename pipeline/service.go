package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	heatmap "github.com/lucasjlepore/fit-heatmap"
	"github.com/lucasjlepore/fit-heatmap/store"
)

// Service is the caller-facing surface: it loads directories and snapshots
// into a store and answers queries by handle string.
type Service struct {
	store  *store.Store
	opts   Options
	logger *slog.Logger
}

// NewService returns a Service backed by st. A nil logger discards output.
func NewService(st *store.Store, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = discardLogger()
	}
	return &Service{store: st, opts: opts, logger: logger}
}

// Ingest loads dir and stores the export under a new handle.
func (s *Service) Ingest(ctx context.Context, dir string) (string, *Result, error) {
	result, err := Run(ctx, dir, s.opts, s.logger)
	if err != nil {
		return "", nil, err
	}
	h := s.store.Insert(result.Export)
	s.logger.Info("export stored", "handle", h.String(), "activities", result.Activities)
	return h.String(), result, nil
}

// LoadSnapshot reads a snapshot file and stores it under a new handle.
func (s *Service) LoadSnapshot(path string) (string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read snapshot %s: %w", heatmap.ErrIO, path, err)
	}
	h, err := s.store.Deserialize(payload)
	if err != nil {
		return "", fmt.Errorf("load snapshot %s: %w", path, err)
	}
	s.logger.Debug("snapshot loaded", "path", path, "handle", h.String())
	return h.String(), nil
}

// SaveSnapshot writes the export under handle to <dir>/<handle>.heatmap and
// returns the path. The file appears atomically.
func (s *Service) SaveSnapshot(handle, dir string) (string, error) {
	h, err := parseHandle(handle)
	if err != nil {
		return "", err
	}
	payload, err := s.store.Serialize(h)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, h.String()+"."+store.SnapshotExtension)
	if err := writeFileAtomic(path, payload); err != nil {
		return "", fmt.Errorf("%w: save snapshot: %w", heatmap.ErrIO, err)
	}
	s.logger.Debug("snapshot saved", "path", path, "bytes", len(payload))
	return path, nil
}

// Years returns the years present under handle, ascending.
func (s *Service) Years(handle string) ([]int, error) {
	h, err := parseHandle(handle)
	if err != nil {
		return nil, err
	}
	return s.store.Years(h)
}

// Points returns the samples filed under year.
func (s *Service) Points(handle string, year int) ([]heatmap.Sample, error) {
	h, err := parseHandle(handle)
	if err != nil {
		return nil, err
	}
	return s.store.PointsForYear(h, year)
}

// AllPoints returns every sample under handle.
func (s *Service) AllPoints(handle string) ([]heatmap.Sample, error) {
	h, err := parseHandle(handle)
	if err != nil {
		return nil, err
	}
	return s.store.Points(h)
}

// ExportParquet writes the samples under handle to a Parquet file at path.
func (s *Service) ExportParquet(handle, path string) error {
	h, err := parseHandle(handle)
	if err != nil {
		return err
	}
	return s.store.WriteParquetFile(h, path)
}

func parseHandle(handle string) (uuid.UUID, error) {
	h, err := uuid.Parse(handle)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: handle %q", heatmap.ErrNotFound, handle)
	}
	return h, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
