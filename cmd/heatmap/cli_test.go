package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fit-heatmap/internal/fittest"
	"github.com/lucasjlepore/fit-heatmap/store"
)

func executeCLI(t *testing.T, workdir string, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(workdir)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeActivities(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ride := time.Date(2022, 6, 18, 6, 30, 0, 0, time.UTC)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ride.fit"),
		fittest.RecordFile(ride, [2]float64{46.2044, 6.1432}, [2]float64{46.2050, 6.1440}), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.fit.gz"),
		fittest.Gzip(fittest.RecordFile(ride.AddDate(-2, 0, 0), [2]float64{46.0, 6.0})), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("notes"), 0o644))
	return dir
}

func TestVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", stdout)
}

func TestIngestText(t *testing.T) {
	dir := writeActivities(t)

	stdout, _, err := executeCLI(t, t.TempDir(), "ingest", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "activities:  2")
	assert.Contains(t, stdout, "years:       2020, 2022")
	assert.Contains(t, stdout, "readme.md")
}

func TestIngestSaveThenQuery(t *testing.T) {
	dir := writeActivities(t)
	workdir := t.TempDir()
	snapshots := filepath.Join(workdir, "snapshots")
	require.NoError(t, os.Mkdir(snapshots, 0o755))
	parquetPath := filepath.Join(workdir, "points.parquet")

	stdout, _, err := executeCLI(t, workdir, "ingest", dir, "--save", "--snapshot-dir", snapshots, "--parquet", parquetPath, "--json")
	require.NoError(t, err)

	var out struct {
		Handle   string `json:"handle"`
		Snapshot string `json:"snapshot"`
		Parquet  string `json:"parquet"`
		Result   struct {
			Activities int   `json:"activities"`
			Years      []int `json:"years"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 2, out.Result.Activities)
	assert.Equal(t, []int{2020, 2022}, out.Result.Years)
	assert.Equal(t, filepath.Join(snapshots, out.Handle+".heatmap"), out.Snapshot)
	assert.FileExists(t, out.Snapshot)
	assert.FileExists(t, parquetPath)

	stdout, _, err = executeCLI(t, workdir, "years", out.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, "2020\n2022\n", stdout)

	stdout, _, err = executeCLI(t, workdir, "points", out.Snapshot, "--year", "2022")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "lat,lng,timestamp_s,count", lines[0])
	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, 4)
	lat, err := strconv.ParseFloat(fields[0], 64)
	require.NoError(t, err)
	assert.InDelta(t, 46.2044, lat, 1e-6)
	assert.Equal(t, "1", fields[3])

	stdout, _, err = executeCLI(t, workdir, "points", out.Snapshot, "--year", "1999", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", stdout)

	stdout, _, err = executeCLI(t, workdir, "points", out.Snapshot, "--json")
	require.NoError(t, err)
	var all []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &all))
	assert.Len(t, all, 3)

	second := filepath.Join(workdir, "again.parquet")
	_, _, err = executeCLI(t, workdir, "parquet", out.Snapshot, second)
	require.NoError(t, err)
	assert.FileExists(t, second)
}

func TestIngestMissingDirectory(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "ingest", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read directory")
}

func TestConfigFileFromWorkingDirectory(t *testing.T) {
	workdir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "heatmap.toml"), []byte(`
[snapshot]
compression = "brotli"
`), 0o644))

	_, _, err := executeCLI(t, workdir, "ingest", writeActivities(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot.compression")
}

func writeLongRide(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	points := make([][2]float64, 0, 300)
	for i := 0; i < 300; i++ {
		points = append(points, [2]float64{46.2 + float64(i)*1e-5, 6.14 + float64(i)*1e-5})
	}
	ride := time.Date(2022, 6, 18, 6, 30, 0, 0, time.UTC)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "long.fit"), fittest.RecordFile(ride, points...), 0o644))
	return dir
}

func savedSnapshotInfo(t *testing.T, dir string, args ...string) store.SnapshotInfo {
	t.Helper()
	workdir := t.TempDir()

	_, _, err := executeCLI(t, workdir, append([]string{"ingest", dir, "--save", "--snapshot-dir", workdir}, args...)...)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(workdir, "*.heatmap"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	stdout, _, err := executeCLI(t, workdir, "years", matches[0])
	require.NoError(t, err)
	assert.Equal(t, "2022\n", stdout)

	payload, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	info, err := store.ReadSnapshotInfo(payload)
	require.NoError(t, err)
	return info
}

func TestDefaultCompressionIsZstd(t *testing.T) {
	info := savedSnapshotInfo(t, writeLongRide(t))
	assert.Equal(t, store.CompressionZstd, info.Compression)
}

func TestEnvironmentOverridesCompression(t *testing.T) {
	dir := writeLongRide(t)

	t.Setenv("HEATMAP_SNAPSHOT_COMPRESSION", "lz4")
	info := savedSnapshotInfo(t, dir)
	assert.Equal(t, store.CompressionLZ4, info.Compression)
	assert.Less(t, info.CompressedSize, info.Size)

	t.Setenv("HEATMAP_SNAPSHOT_COMPRESSION", "none")
	info = savedSnapshotInfo(t, dir)
	assert.Equal(t, store.CompressionNone, info.Compression)
	assert.Equal(t, info.Size, info.CompressedSize)
}

func TestInvalidLogFormat(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "--log-format", "xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}
