package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	heatmap "github.com/lucasjlepore/fit-heatmap"
	"github.com/lucasjlepore/fit-heatmap/internal/fittest"
)

var (
	ride2021 = time.Date(2021, 5, 9, 7, 15, 0, 0, time.UTC)
	ride2023 = time.Date(2023, 8, 20, 17, 40, 0, 0, time.UTC)
)

const runGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <trkseg>
      <trkpt lat="51.5007" lon="-0.1246"><time>2023-02-11T09:00:00Z</time></trkpt>
      <trkpt lat="51.5010" lon="-0.1250"><time>2023-02-11T09:00:04Z</time></trkpt>
    </trkseg>
  </trk>
</gpx>`

func writeFixture(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunSkipsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "good.fit", fittest.RecordFile(ride2021, [2]float64{45.5, -73.6}, [2]float64{45.51, -73.61}))
	corrupt := writeFixture(t, dir, "bad.fit", []byte("definitely not a fit file"))

	result, err := Run(context.Background(), dir, Options{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 1, result.Activities)
	assert.Equal(t, []int{2021}, result.Years)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, corrupt, result.Skipped[0].Path)

	points := result.Export.Points(2021)
	require.Len(t, points, 2)
	assert.InDelta(t, 45.5, points[0].Lat, 1e-6)
	assert.Equal(t, ride2021.Unix(), points[0].Timestamp)
}

func TestRunEmptyDirectory(t *testing.T) {
	result, err := Run(context.Background(), t.TempDir(), Options{}, nil)
	require.NoError(t, err)
	assert.Zero(t, result.Files)
	assert.Empty(t, result.Export.Years())
	assert.Empty(t, result.Skipped)
}

func TestRunUnreadableDirectory(t *testing.T) {
	dir := t.TempDir()

	_, err := Run(context.Background(), filepath.Join(dir, "missing"), Options{}, nil)
	assert.ErrorIs(t, err, heatmap.ErrIO)

	file := writeFixture(t, dir, "plain.fit", fittest.RecordFile(ride2021, [2]float64{1, 1}))
	_, err = Run(context.Background(), file, Options{}, nil)
	assert.ErrorIs(t, err, heatmap.ErrIO)
}

func TestRunMixedDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.fit", fittest.RecordFile(ride2021, [2]float64{45.5, -73.6}))
	writeFixture(t, dir, "b.fit.gz", fittest.Gzip(fittest.RecordFile(ride2023, [2]float64{-33.86, 151.21}, [2]float64{-33.87, 151.22})))
	writeFixture(t, dir, "c.gpx", []byte(runGPX))
	writeFixture(t, dir, "notes.txt", []byte("hello"))
	// Records without a position yield no samples.
	writeFixture(t, dir, "indoor.fit", fittest.New().
		Define(0, fittest.MesgRecord,
			fittest.FieldDef{Num: fittest.FieldTimestamp, Base: fittest.BaseUint32},
			fittest.FieldDef{Num: fittest.FieldHeartRate, Base: fittest.BaseUint8},
		).
		Data(0, fittest.Timestamp(ride2021), 140).
		Bytes())
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.fit"), 0o755))

	result, err := Run(context.Background(), dir, Options{Workers: 2}, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, result.Files)
	assert.Equal(t, 3, result.Activities)
	assert.Equal(t, []int{2021, 2023}, result.Years)
	assert.Len(t, result.Export.Points(2023), 4)
	assert.Len(t, result.Export.Points(2021), 1)

	reasons := make(map[string]string, len(result.Skipped))
	for _, skipped := range result.Skipped {
		reasons[filepath.Base(skipped.Path)] = skipped.Reason
	}
	assert.Len(t, reasons, 3)
	assert.Contains(t, reasons["notes.txt"], heatmap.ErrUnrecognizedFormat.Error())
	assert.Equal(t, "no samples", reasons["indoor.fit"])
	assert.Equal(t, "not a regular file", reasons["nested.fit"])
}

func TestRunWorkerCountDoesNotChangeResult(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 12; i++ {
		start := ride2021.AddDate(0, i, 0)
		if i%3 == 0 {
			start = ride2023.AddDate(0, 0, i)
		}
		writeFixture(t, dir, start.Format("20060102")+".fit",
			fittest.RecordFile(start, [2]float64{float64(i), float64(-i)}, [2]float64{float64(i) + 0.1, float64(-i)}))
	}

	serial, err := Run(context.Background(), dir, Options{Workers: 1}, nil)
	require.NoError(t, err)
	parallel, err := Run(context.Background(), dir, Options{Workers: 8}, nil)
	require.NoError(t, err)

	assert.Equal(t, serial.Years, parallel.Years)
	for _, year := range serial.Years {
		assert.Equal(t, serial.Export.Activities(year), parallel.Export.Activities(year))
	}
}

func TestRunCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.fit", fittest.RecordFile(ride2021, [2]float64{1, 1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, dir, Options{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeUnrecognized(t *testing.T) {
	_, err := Decode(filepath.Join(t.TempDir(), "ride.tcx"))
	assert.ErrorIs(t, err, heatmap.ErrUnrecognizedFormat)
}
