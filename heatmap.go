package heatmap

import (
	"sort"
	"time"
)

// Sample is one timestamped coordinate extracted from a track file.
type Sample struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp_s"`
	Count     uint8   `json:"count"`
}

// NewSample returns a sample with a multiplicity of one.
func NewSample(lat, lng float64, timestamp int64) Sample {
	return Sample{Lat: lat, Lng: lng, Timestamp: timestamp, Count: 1}
}

// Activity is the ordered sample sequence of one source file.
// Timestamp is the timestamp of the first sample.
type Activity struct {
	Timestamp int64    `json:"date_timestamp_s"`
	Samples   []Sample `json:"samples"`
}

// NewActivity wraps samples into an Activity. It reports false for an
// empty sequence so the caller can discard the file. Samples are kept in
// the order given; the decoders emit them in file order.
func NewActivity(samples []Sample) (Activity, bool) {
	if len(samples) == 0 {
		return Activity{}, false
	}
	owned := make([]Sample, len(samples))
	copy(owned, samples)
	return Activity{Timestamp: owned[0].Timestamp, Samples: owned}, true
}

// Year returns the UTC calendar year of the activity's representative timestamp.
func (a Activity) Year() int {
	return YearOf(a.Timestamp)
}

// YearOf returns the UTC calendar year of a Unix timestamp in seconds.
func YearOf(timestamp int64) int {
	return time.Unix(timestamp, 0).UTC().Year()
}

func (a Activity) clone() Activity {
	samples := make([]Sample, len(a.Samples))
	copy(samples, a.Samples)
	return Activity{Timestamp: a.Timestamp, Samples: samples}
}

// Export partitions activities by UTC calendar year. It is built once by
// GroupByYear or NewExport and never mutated afterwards; accessors hand
// out copies.
type Export struct {
	years map[int][]Activity
}

// GroupByYear partitions activities by the year of their representative timestamp.
func GroupByYear(activities []Activity) Export {
	years := make(map[int][]Activity)
	for _, activity := range activities {
		year := activity.Year()
		years[year] = append(years[year], activity.clone())
	}
	return Export{years: years}
}

// NewExport builds an Export from an explicit year mapping, as read back
// from a snapshot. Activities filed under the wrong year are rejected by
// the caller through Validate.
func NewExport(years map[int][]Activity) Export {
	owned := make(map[int][]Activity, len(years))
	for year, activities := range years {
		list := make([]Activity, 0, len(activities))
		for _, activity := range activities {
			list = append(list, activity.clone())
		}
		owned[year] = list
	}
	return Export{years: owned}
}

// Validate checks that every activity sits under its own year and is non-empty.
func (e Export) Validate() error {
	for year, activities := range e.years {
		for i, activity := range activities {
			if len(activity.Samples) == 0 {
				return &InvariantError{Year: year, Index: i, Reason: "activity has no samples"}
			}
			if activity.Year() != year {
				return &InvariantError{Year: year, Index: i, Reason: "activity timestamp outside year"}
			}
		}
	}
	return nil
}

// Years returns the year keys in ascending order.
func (e Export) Years() []int {
	years := make([]int, 0, len(e.years))
	for year := range e.years {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

// Activities returns a copy of the activities filed under year.
func (e Export) Activities(year int) []Activity {
	activities := e.years[year]
	out := make([]Activity, 0, len(activities))
	for _, activity := range activities {
		out = append(out, activity.clone())
	}
	return out
}

// Len is the number of activities across all years.
func (e Export) Len() int {
	n := 0
	for _, activities := range e.years {
		n += len(activities)
	}
	return n
}

// Points flattens the samples of every activity under year. Each
// activity's internal order is preserved.
func (e Export) Points(year int) []Sample {
	return flatten(e.years[year])
}

// AllPoints flattens every sample in the export, years ascending.
func (e Export) AllPoints() []Sample {
	var out []Sample
	for _, year := range e.Years() {
		out = append(out, flatten(e.years[year])...)
	}
	if out == nil {
		out = []Sample{}
	}
	return out
}

// Each calls fn for every activity, years ascending. The activity passed
// to fn must not be retained past the call.
func (e Export) Each(fn func(year int, index int, activity Activity)) {
	for _, year := range e.Years() {
		for i, activity := range e.years[year] {
			fn(year, i, activity)
		}
	}
}

func flatten(activities []Activity) []Sample {
	n := 0
	for _, activity := range activities {
		n += len(activity.Samples)
	}
	out := make([]Sample, 0, n)
	for _, activity := range activities {
		out = append(out, activity.Samples...)
	}
	return out
}
