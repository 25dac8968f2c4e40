package store

import (
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	heatmap "github.com/lucasjlepore/fit-heatmap"
)

type pointParquetRow struct {
	Year              int32   `parquet:"name=year, type=INT32"`
	ActivityIndex     int64   `parquet:"name=activity_index, type=INT64"`
	ActivityTimestamp int64   `parquet:"name=activity_timestamp_s, type=INT64"`
	Lat               float64 `parquet:"name=lat, type=DOUBLE"`
	Lng               float64 `parquet:"name=lng, type=DOUBLE"`
	TimestampS        int64   `parquet:"name=timestamp_s, type=INT64"`
	Count             int32   `parquet:"name=count, type=INT32"`
}

// writePointsParquet writes one row per sample to fw and closes it.
// activity_index counts activities across the whole export, years ascending.
func writePointsParquet(fw source.ParquetFile, export heatmap.Export) error {
	pw, err := writer.NewParquetWriter(fw, new(pointParquetRow), 4)
	if err != nil {
		_ = fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	var (
		writeErr      error
		activityIndex int64
	)
	export.Each(func(year, _ int, activity heatmap.Activity) {
		if writeErr != nil {
			return
		}
		for _, s := range activity.Samples {
			row := pointParquetRow{
				Year:              int32(year),
				ActivityIndex:     activityIndex,
				ActivityTimestamp: activity.Timestamp,
				Lat:               s.Lat,
				Lng:               s.Lng,
				TimestampS:        s.Timestamp,
				Count:             int32(s.Count),
			}
			if err := pw.Write(row); err != nil {
				writeErr = err
				return
			}
		}
		activityIndex++
	})
	if writeErr != nil {
		_ = pw.WriteStop()
		_ = fw.Close()
		return writeErr
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

// writePointsParquetFile writes next to path and renames into place, so a
// failed write never leaves a truncated file at path.
func writePointsParquetFile(path string, export heatmap.Export) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".points-*.parquet")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	fw, err := local.NewLocalFileWriter(tmpName)
	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := writePointsParquet(fw, export); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
