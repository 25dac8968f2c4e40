// Package store keeps ingested exports in memory under opaque handles and
// converts them to and from portable snapshots.
package store

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"

	heatmap "github.com/lucasjlepore/fit-heatmap"
)

// Store maps handles to exports. Stored exports are never mutated, so
// readers copy data out after the lock is released.
type Store struct {
	mu      sync.Mutex
	exports map[uuid.UUID]heatmap.Export

	compression CompressionTag
	newHandle   func() uuid.UUID
}

// Option configures a Store.
type Option func(*Store)

// WithCompression sets the compression used by Serialize.
func WithCompression(tag CompressionTag) Option {
	return func(s *Store) {
		s.compression = tag
	}
}

// New returns an empty store. Snapshots are zstd-compressed unless
// WithCompression says otherwise.
func New(opts ...Option) *Store {
	s := &Store{
		exports:     make(map[uuid.UUID]heatmap.Export),
		compression: CompressionZstd,
		newHandle:   uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert stores export under a fresh handle.
func (s *Store) Insert(export heatmap.Export) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		h := s.newHandle()
		if _, taken := s.exports[h]; taken {
			continue
		}
		s.exports[h] = export
		return h
	}
}

// Export returns the export stored under h.
func (s *Store) Export(h uuid.UUID) (heatmap.Export, error) {
	s.mu.Lock()
	export, ok := s.exports[h]
	s.mu.Unlock()

	if !ok {
		return heatmap.Export{}, fmt.Errorf("%w: handle %s", heatmap.ErrNotFound, h)
	}
	return export, nil
}

// Years returns the years present under h, ascending.
func (s *Store) Years(h uuid.UUID) ([]int, error) {
	export, err := s.Export(h)
	if err != nil {
		return nil, err
	}
	return export.Years(), nil
}

// PointsForYear returns every sample filed under year. A year with no
// activities yields an empty slice.
func (s *Store) PointsForYear(h uuid.UUID, year int) ([]heatmap.Sample, error) {
	export, err := s.Export(h)
	if err != nil {
		return nil, err
	}
	return export.Points(year), nil
}

// Points returns every sample under h, years ascending.
func (s *Store) Points(h uuid.UUID) ([]heatmap.Sample, error) {
	export, err := s.Export(h)
	if err != nil {
		return nil, err
	}
	return export.AllPoints(), nil
}

// Serialize encodes the export under h as a snapshot.
func (s *Store) Serialize(h uuid.UUID) ([]byte, error) {
	export, err := s.Export(h)
	if err != nil {
		return nil, err
	}
	payload, err := encodeSnapshot(export, s.compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", heatmap.ErrSerialization, err)
	}
	return payload, nil
}

// Deserialize decodes a snapshot and stores it under a new handle.
func (s *Store) Deserialize(payload []byte) (uuid.UUID, error) {
	export, err := decodeSnapshot(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", heatmap.ErrSerialization, err)
	}
	return s.Insert(export), nil
}

// Len returns the number of stored exports.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exports)
}

// WriteParquet writes the samples under h to w as a Parquet file.
func (s *Store) WriteParquet(h uuid.UUID, w io.Writer) error {
	export, err := s.Export(h)
	if err != nil {
		return err
	}
	fw := parquetbuffer.NewBufferFile()
	if err := writePointsParquet(fw, export); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	if _, err := w.Write(fw.Bytes()); err != nil {
		return fmt.Errorf("%w: write parquet: %w", heatmap.ErrIO, err)
	}
	return nil
}

// WriteParquetFile writes the samples under h to a Parquet file at path.
func (s *Store) WriteParquetFile(h uuid.UUID, path string) error {
	export, err := s.Export(h)
	if err != nil {
		return err
	}
	if err := writePointsParquetFile(path, export); err != nil {
		return fmt.Errorf("%w: write parquet %s: %w", heatmap.ErrIO, path, err)
	}
	return nil
}
