package heatmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		path string
		want Format
	}{
		{path: "/data/ride.fit", want: FormatBinary},
		{path: "/data/ride.fit.gz", want: FormatBinaryCompressed},
		{path: "/data/ride.fit.gz.bak", want: FormatBinaryCompressed},
		{path: "/data/ride.fitness.txt", want: FormatBinary},
		{path: "/data/run.gpx", want: FormatXML},
		{path: "/data/gpx-exports/run.xml", want: FormatXML},
		{path: "/data/ride.FIT", want: FormatUnrecognized},
		{path: "/data/run.GPX", want: FormatUnrecognized},
		{path: "/data/notes.txt", want: FormatUnrecognized},
		{path: "", want: FormatUnrecognized},
		{path: "/data/\xff\xfe.fit", want: FormatUnrecognized},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, Classify(tc.path), "path=%q", tc.path)
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "fit.gz", FormatBinaryCompressed.String())
	assert.Equal(t, "fit", FormatBinary.String())
	assert.Equal(t, "gpx", FormatXML.String())
	assert.Equal(t, "unrecognized", FormatUnrecognized.String())
	assert.Equal(t, "unknown(9)", Format(9).String())
}
