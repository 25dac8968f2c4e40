// Package trackgpx extracts position samples from GPX track files.
//
// Only the first segment of the first track is read. GPX allows several
// tracks and segments per file; recorders write one track with one
// segment per activity, so the remaining ones are ignored.
package trackgpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	heatmap "github.com/lucasjlepore/fit-heatmap"
)

// ErrNoTracks is returned for documents without a usable track segment.
var ErrNoTracks = errors.New("gpx has no tracks")

// Coordinates stay strings so a missing attribute is distinguishable
// from 0.
type gpxPoint struct {
	Lat  string `xml:"lat,attr"`
	Lon  string `xml:"lon,attr"`
	Time string `xml:"time"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxTrack struct {
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxDocument struct {
	XMLName xml.Name   `xml:"gpx"`
	Tracks  []gpxTrack `xml:"trk"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

// DecodeFile reads the GPX file at path.
func DecodeFile(path string) ([]heatmap.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open gpx file: %w", heatmap.ErrIO, err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses a GPX document and returns the samples of the first
// segment of the first track in document order. Points without a
// parsable time are dropped. A point without a valid lat or lon fails the
// whole document.
func Decode(r io.Reader) ([]heatmap.Sample, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var doc gpxDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: parse gpx: %w", heatmap.ErrDecode, err)
	}
	if len(doc.Tracks) == 0 || len(doc.Tracks[0].Segments) == 0 {
		return nil, fmt.Errorf("%w: %w", heatmap.ErrDecode, ErrNoTracks)
	}

	points := doc.Tracks[0].Segments[0].Points
	samples := make([]heatmap.Sample, 0, len(points))
	for i, p := range points {
		lat, err := parseCoordinate(p.Lat, 90)
		if err != nil {
			return nil, fmt.Errorf("%w: trkpt %d lat: %w", heatmap.ErrDecode, i, err)
		}
		lon, err := parseCoordinate(p.Lon, 180)
		if err != nil {
			return nil, fmt.Errorf("%w: trkpt %d lon: %w", heatmap.ErrDecode, i, err)
		}
		ts, ok := parseTime(p.Time)
		if !ok {
			continue
		}
		samples = append(samples, heatmap.NewSample(lat, lon, ts.Unix()))
	}
	return samples, nil
}

func parseCoordinate(s string, limit float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return 0, fmt.Errorf("%s out of range", s)
	}
	return v, nil
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
