package trackfit

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tormoder/fit"
)

var (
	// ErrFieldMissing is returned when a message does not carry a valid value for a field.
	ErrFieldMissing = errors.New("field missing")
	// ErrFieldType is returned when a field's value cannot be narrowed to the requested type.
	ErrFieldType = errors.New("field type mismatch")
)

// Field is one decoded field of a data message. Value holds the base-type
// Go value (int8..uint64, float64, string, []byte) or []any for arrays.
type Field struct {
	Number uint8
	Name   string
	Value  any
}

// Message is one FIT data message with its fields keyed by profile name.
// Field order inside a message carries no meaning.
type Message struct {
	Num    fit.MesgNum
	fields map[string]Field
}

func (m *Message) set(number uint8, value any) {
	name := fieldName(m.Num, number)
	m.fields[name] = Field{Number: number, Name: name, Value: value}
}

// Field looks up a field by profile name.
func (m Message) Field(name string) (Field, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// Names returns the field names present in the message, sorted.
func (m Message) Names() []string {
	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Int64 returns an integral field widened to int64. Floats, strings,
// arrays and unsigned values above math.MaxInt64 fail with ErrFieldType.
func (m Message) Int64(name string) (int64, error) {
	f, ok := m.fields[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrFieldMissing)
	}
	v, ok := toInt64(f.Value)
	if !ok {
		return 0, fmt.Errorf("%s (%T): %w", name, f.Value, ErrFieldType)
	}
	return v, nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	default:
		return 0, false
	}
}

// profile maps field numbers to names for the messages this package reads.
// Field 253 is the timestamp in every message.
var profile = map[fit.MesgNum]map[uint8]string{
	fit.MesgNumFileId: {
		0: "type",
		1: "manufacturer",
		2: "product",
		3: "serial_number",
		4: "time_created",
	},
	fit.MesgNumRecord: {
		0:  "position_lat",
		1:  "position_long",
		2:  "altitude",
		3:  "heart_rate",
		4:  "cadence",
		5:  "distance",
		6:  "speed",
		7:  "power",
		13: "temperature",
		73: "enhanced_speed",
		78: "enhanced_altitude",
	},
	fit.MesgNumLap: {
		2: "start_time",
		3: "start_position_lat",
		4: "start_position_long",
		5: "end_position_lat",
		6: "end_position_long",
	},
	fit.MesgNumSession: {
		2: "start_time",
		3: "start_position_lat",
		4: "start_position_long",
	},
}

func fieldName(num fit.MesgNum, number uint8) string {
	if number == fieldNumTimestamp {
		return "timestamp"
	}
	if name, ok := profile[num][number]; ok {
		return name
	}
	return fmt.Sprintf("unknown_field_%d", number)
}
