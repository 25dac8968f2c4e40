// Package trackfit extracts position samples from FIT activity files,
// plain or gzip-compressed.
package trackfit

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/tormoder/fit"

	heatmap "github.com/lucasjlepore/fit-heatmap"
)

// fitEpochOffset is the FIT epoch (1989-12-31T00:00:00Z) in Unix seconds.
const fitEpochOffset = 631065600

var semicircleScale = 180 / math.Exp2(31)

// SemicirclesToDegrees converts a FIT semicircle angle to degrees.
func SemicirclesToDegrees(semicircles int64) float64 {
	return float64(semicircles) * semicircleScale
}

// ReadFile reads a FIT file into memory, inflating it first when compressed.
func ReadFile(path string, compressed bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read fit file: %w", heatmap.ErrIO, err)
	}
	if !compressed {
		return data, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open gzip stream: %w", heatmap.ErrDecode, err)
	}
	defer zr.Close()

	inflated, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: inflate fit file: %w", heatmap.ErrDecode, err)
	}
	return inflated, nil
}

// DecodeFile returns the samples of every record message in path, in
// file order. A file that fails to read, inflate or parse yields an error
// and no samples.
func DecodeFile(path string, compressed bool) ([]heatmap.Sample, error) {
	data, err := ReadFile(path, compressed)
	if err != nil {
		return nil, err
	}
	messages, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse fit file: %w", heatmap.ErrDecode, err)
	}
	return Samples(messages), nil
}

// Samples converts record messages to samples. Records without a usable
// latitude or longitude are dropped. A record without a usable timestamp
// keeps timestamp 0; otherwise the FIT timestamp is shifted to Unix seconds.
func Samples(messages []Message) []heatmap.Sample {
	samples := make([]heatmap.Sample, 0, len(messages))
	for _, msg := range messages {
		if msg.Num != fit.MesgNumRecord {
			continue
		}
		if sample, ok := recordSample(msg); ok {
			samples = append(samples, sample)
		}
	}
	return samples
}

func recordSample(msg Message) (heatmap.Sample, bool) {
	lat, err := msg.Int64("position_lat")
	if err != nil {
		return heatmap.Sample{}, false
	}
	lng, err := msg.Int64("position_long")
	if err != nil {
		return heatmap.Sample{}, false
	}

	var timestamp int64
	if raw, err := msg.Int64("timestamp"); err == nil {
		timestamp = raw + fitEpochOffset
	}

	return heatmap.NewSample(SemicirclesToDegrees(lat), SemicirclesToDegrees(lng), timestamp), true
}
