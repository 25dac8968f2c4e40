// Package fittest writes small FIT byte streams field by field for tests
// that need exact control over which fields a message carries.
package fittest

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/tormoder/fit/dyncrc16"
)

// Base type bytes as written in definition messages.
const (
	BaseUint8   byte = 0x02
	BaseUint16  byte = 0x84
	BaseSint32  byte = 0x85
	BaseUint32  byte = 0x86
	BaseFloat32 byte = 0x88
)

// Global message numbers used by the tests.
const (
	MesgFileID uint16 = 0
	MesgRecord uint16 = 20
	MesgEvent  uint16 = 21
)

// Record field numbers.
const (
	FieldPositionLat  uint8 = 0
	FieldPositionLong uint8 = 1
	FieldHeartRate    uint8 = 3
	FieldTimestamp    uint8 = 253
)

// FieldDef is one field of a definition message.
type FieldDef struct {
	Num  uint8
	Base byte
}

func (f FieldDef) size() int {
	switch f.Base {
	case BaseUint16:
		return 2
	case BaseSint32, BaseUint32, BaseFloat32:
		return 4
	default:
		return 1
	}
}

// Builder accumulates definition and data messages, little endian.
type Builder struct {
	records bytes.Buffer
	defs    map[uint8][]FieldDef
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{defs: make(map[uint8][]FieldDef)}
}

// Define writes a definition message binding local to global.
func (b *Builder) Define(local uint8, global uint16, fields ...FieldDef) *Builder {
	b.records.WriteByte(0x40 | (local & 0x0F))
	b.records.WriteByte(0)
	b.records.WriteByte(0)
	_ = binary.Write(&b.records, binary.LittleEndian, global)
	b.records.WriteByte(byte(len(fields)))
	for _, f := range fields {
		b.records.Write([]byte{f.Num, byte(f.size()), f.Base})
	}
	b.defs[local] = fields
	return b
}

// Data writes a normal-header data message. values follow the field
// order of the local definition.
func (b *Builder) Data(local uint8, values ...int64) *Builder {
	b.records.WriteByte(local & 0x0F)
	b.writeValues(local, values)
	return b
}

// CompressedData writes a compressed-timestamp data message carrying the
// 5-bit time offset.
func (b *Builder) CompressedData(local uint8, offset uint8, values ...int64) *Builder {
	b.records.WriteByte(0x80 | (local&0x03)<<5 | offset&0x1F)
	b.writeValues(local, values)
	return b
}

func (b *Builder) writeValues(local uint8, values []int64) {
	for i, f := range b.defs[local] {
		var v int64
		if i < len(values) {
			v = values[i]
		}
		switch f.size() {
		case 1:
			b.records.WriteByte(byte(v))
		case 2:
			_ = binary.Write(&b.records, binary.LittleEndian, uint16(v))
		default:
			_ = binary.Write(&b.records, binary.LittleEndian, uint32(v))
		}
	}
}

// Bytes returns the complete file: 14-byte header with CRC, records and file CRC.
func (b *Builder) Bytes() []byte {
	var out bytes.Buffer
	header := make([]byte, 12, 14)
	header[0] = 14
	header[1] = 0x20
	binary.LittleEndian.PutUint16(header[2:4], 2132)
	binary.LittleEndian.PutUint32(header[4:8], uint32(b.records.Len()))
	copy(header[8:12], ".FIT")
	header = binary.LittleEndian.AppendUint16(header, dyncrc16.Checksum(header))
	out.Write(header)
	out.Write(b.records.Bytes())
	crc := dyncrc16.Checksum(out.Bytes())
	_ = binary.Write(&out, binary.LittleEndian, crc)
	return out.Bytes()
}

// Semicircles converts degrees to FIT semicircles.
func Semicircles(degrees float64) int64 {
	return int64(math.Round(degrees * math.Exp2(31) / 180))
}

// Timestamp converts t to FIT epoch seconds.
func Timestamp(t time.Time) int64 {
	return t.Unix() - 631065600
}

// Gzip compresses data into a single gzip member.
func Gzip(data []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

// RecordFile builds a FIT file with one record per point, each carrying
// timestamp, latitude and longitude.
func RecordFile(start time.Time, points ...[2]float64) []byte {
	b := New().Define(0, MesgRecord,
		FieldDef{Num: FieldTimestamp, Base: BaseUint32},
		FieldDef{Num: FieldPositionLat, Base: BaseSint32},
		FieldDef{Num: FieldPositionLong, Base: BaseSint32},
	)
	for i, p := range points {
		ts := Timestamp(start.Add(time.Duration(i) * time.Second))
		b.Data(0, ts, Semicircles(p[0]), Semicircles(p[1]))
	}
	return b.Bytes()
}
