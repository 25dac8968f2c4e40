package heatmap

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Format identifies which decoder handles a path.
type Format uint8

const (
	FormatUnrecognized Format = iota
	FormatBinaryCompressed
	FormatBinary
	FormatXML
)

func (f Format) String() string {
	switch f {
	case FormatBinaryCompressed:
		return "fit.gz"
	case FormatBinary:
		return "fit"
	case FormatXML:
		return "gpx"
	case FormatUnrecognized:
		return "unrecognized"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// Classify picks a format by case-sensitive substring match on the path.
// The match is not anchored to the end: "a.fit.gz.bak" is still
// FormatBinaryCompressed. Paths that are not valid UTF-8 are unrecognized.
func Classify(path string) Format {
	if !utf8.ValidString(path) {
		return FormatUnrecognized
	}
	switch {
	case strings.Contains(path, ".fit.gz"):
		return FormatBinaryCompressed
	case strings.Contains(path, ".fit"):
		return FormatBinary
	case strings.Contains(path, "gpx"):
		return FormatXML
	default:
		return FormatUnrecognized
	}
}
