package store

import (
	"bytes"
	"fmt"

	"github.com/zeebo/blake3"

	heatmap "github.com/lucasjlepore/fit-heatmap"
)

const (
	// SnapshotFormatVersion identifies the snapshot schema.
	SnapshotFormatVersion = "heatmap_snapshot_v1"

	// SnapshotExtension is the file extension used for saved snapshots.
	SnapshotExtension = "heatmap"

	maxBodySize = 1 << 30
)

// envelope is the outer CBOR document. Digest is the blake3-256 of the
// uncompressed body.
type envelope struct {
	FormatVersion string         `cbor:"format_version"`
	Compression   CompressionTag `cbor:"compression"`
	Size          int            `cbor:"size"`
	Digest        []byte         `cbor:"digest"`
	Body          []byte         `cbor:"body"`
}

type snapshotBody struct {
	Years []yearSchema `cbor:"years"`
}

type yearSchema struct {
	Year       int              `cbor:"year"`
	Activities []activitySchema `cbor:"activities"`
}

type activitySchema struct {
	Timestamp int64          `cbor:"date_timestamp_s"`
	Samples   []sampleSchema `cbor:"samples"`
}

type sampleSchema struct {
	_         struct{} `cbor:",toarray"`
	Lat       float64
	Lng       float64
	Timestamp int64
	Count     uint8
}

// SnapshotInfo describes a snapshot envelope without decoding its body.
type SnapshotInfo struct {
	FormatVersion  string         `json:"format_version"`
	Compression    CompressionTag `json:"compression"`
	Size           int            `json:"size"`
	CompressedSize int            `json:"compressed_size"`
}

// ReadSnapshotInfo decodes only the envelope of payload. The body is
// neither decompressed nor verified.
func ReadSnapshotInfo(payload []byte) (SnapshotInfo, error) {
	var env envelope
	if err := unmarshalCBOR(payload, &env); err != nil {
		return SnapshotInfo{}, fmt.Errorf("%w: decode snapshot envelope: %w", heatmap.ErrSerialization, err)
	}
	return SnapshotInfo{
		FormatVersion:  env.FormatVersion,
		Compression:    env.Compression,
		Size:           env.Size,
		CompressedSize: len(env.Body),
	}, nil
}

func encodeSnapshot(export heatmap.Export, tag CompressionTag) ([]byte, error) {
	body, err := marshalCBOR(toSchema(export))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot body: %w", err)
	}

	compressed, used, err := compress(body, tag)
	if err != nil {
		return nil, fmt.Errorf("compress snapshot body: %w", err)
	}

	digest := blake3.Sum256(body)
	out, err := marshalCBOR(envelope{
		FormatVersion: SnapshotFormatVersion,
		Compression:   used,
		Size:          len(body),
		Digest:        digest[:],
		Body:          compressed,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot envelope: %w", err)
	}
	return out, nil
}

func decodeSnapshot(payload []byte) (heatmap.Export, error) {
	var env envelope
	if err := unmarshalCBOR(payload, &env); err != nil {
		return heatmap.Export{}, fmt.Errorf("decode snapshot envelope: %w", err)
	}
	if env.FormatVersion != SnapshotFormatVersion {
		return heatmap.Export{}, fmt.Errorf("unsupported snapshot format %q", env.FormatVersion)
	}
	if env.Size < 0 || env.Size > maxBodySize {
		return heatmap.Export{}, fmt.Errorf("snapshot body size %d out of range", env.Size)
	}

	body, err := decompress(env.Body, env.Compression, env.Size)
	if err != nil {
		return heatmap.Export{}, err
	}
	digest := blake3.Sum256(body)
	if !bytes.Equal(digest[:], env.Digest) {
		return heatmap.Export{}, fmt.Errorf("snapshot digest mismatch")
	}

	var decoded snapshotBody
	if err := unmarshalCBOR(body, &decoded); err != nil {
		return heatmap.Export{}, fmt.Errorf("decode snapshot body: %w", err)
	}

	export := fromSchema(decoded)
	if err := export.Validate(); err != nil {
		return heatmap.Export{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	return export, nil
}

func toSchema(export heatmap.Export) snapshotBody {
	years := export.Years()
	body := snapshotBody{Years: make([]yearSchema, 0, len(years))}
	for _, year := range years {
		activities := export.Activities(year)
		ys := yearSchema{Year: year, Activities: make([]activitySchema, 0, len(activities))}
		for _, activity := range activities {
			as := activitySchema{
				Timestamp: activity.Timestamp,
				Samples:   make([]sampleSchema, 0, len(activity.Samples)),
			}
			for _, s := range activity.Samples {
				as.Samples = append(as.Samples, sampleSchema{
					Lat:       s.Lat,
					Lng:       s.Lng,
					Timestamp: s.Timestamp,
					Count:     s.Count,
				})
			}
			ys.Activities = append(ys.Activities, as)
		}
		body.Years = append(body.Years, ys)
	}
	return body
}

func fromSchema(body snapshotBody) heatmap.Export {
	years := make(map[int][]heatmap.Activity, len(body.Years))
	for _, ys := range body.Years {
		for _, as := range ys.Activities {
			activity := heatmap.Activity{
				Timestamp: as.Timestamp,
				Samples:   make([]heatmap.Sample, 0, len(as.Samples)),
			}
			for _, s := range as.Samples {
				activity.Samples = append(activity.Samples, heatmap.Sample{
					Lat:       s.Lat,
					Lng:       s.Lng,
					Timestamp: s.Timestamp,
					Count:     s.Count,
				})
			}
			years[ys.Year] = append(years[ys.Year], activity)
		}
	}
	return heatmap.NewExport(years)
}
