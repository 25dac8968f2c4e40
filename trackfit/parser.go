package trackfit

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tormoder/fit"
	"github.com/tormoder/fit/dyncrc16"
)

const (
	compressedHeaderMask       = 0x80
	compressedLocalMesgNumMask = 0x60
	compressedTimeMask         = 0x1F
	mesgDefinitionMask         = 0x40
	devDataMask                = 0x20
	localMesgNumMask           = 0x0F

	headerSizeNoCRC = 12
	headerSizeCRC   = 14

	fieldNumTimestamp = 253
)

type baseType uint8

const (
	baseEnum    baseType = 0x00
	baseSint8   baseType = 0x01
	baseUint8   baseType = 0x02
	baseSint16  baseType = 0x83
	baseUint16  baseType = 0x84
	baseSint32  baseType = 0x85
	baseUint32  baseType = 0x86
	baseString  baseType = 0x07
	baseFloat32 baseType = 0x88
	baseFloat64 baseType = 0x89
	baseUint8z  baseType = 0x0A
	baseUint16z baseType = 0x8B
	baseUint32z baseType = 0x8C
	baseByte    baseType = 0x0D
	baseSint64  baseType = 0x8E
	baseUint64  baseType = 0x8F
	baseUint64z baseType = 0x90
)

var baseSizes = map[baseType]int{
	baseEnum:    1,
	baseSint8:   1,
	baseUint8:   1,
	baseSint16:  2,
	baseUint16:  2,
	baseSint32:  4,
	baseUint32:  4,
	baseString:  1,
	baseFloat32: 4,
	baseFloat64: 8,
	baseUint8z:  1,
	baseUint16z: 2,
	baseUint32z: 4,
	baseByte:    1,
	baseSint64:  8,
	baseUint64:  8,
	baseUint64z: 8,
}

type fieldDef struct {
	number uint8
	size   uint8
	base   baseType
}

type localDefinition struct {
	globalMessageNum fit.MesgNum
	arch             binary.ByteOrder
	fields           []fieldDef
	devDataSize      int
}

type parseState struct {
	data           []byte
	pos            int
	definitions    map[uint8]localDefinition
	lastTimestamp  uint32
	lastTimeOffset int32
	messages       []Message
}

// Parse decodes every data message of a FIT stream in file order. Chained
// FIT files concatenated back to back are decoded one after the other.
// Any structural or CRC error fails the whole stream.
func Parse(data []byte) ([]Message, error) {
	if len(data) < headerSizeNoCRC+2 {
		return nil, fmt.Errorf("fit file too short: %d bytes", len(data))
	}

	var messages []Message
	for offset := 0; offset < len(data); {
		parsed, consumed, err := parseFile(data[offset:])
		if err != nil {
			if offset > 0 {
				return nil, fmt.Errorf("chained fit file at byte %d: %w", offset, err)
			}
			return nil, err
		}
		messages = append(messages, parsed...)
		offset += consumed
	}
	return messages, nil
}

func parseFile(data []byte) ([]Message, int, error) {
	if len(data) < headerSizeNoCRC+2 {
		return nil, 0, fmt.Errorf("fit file too short: %d bytes", len(data))
	}

	headerSize, dataSize, err := parseHeader(data)
	if err != nil {
		return nil, 0, err
	}

	end := headerSize + dataSize
	required := end + 2
	if len(data) < required {
		return nil, 0, fmt.Errorf("fit file truncated: have %d bytes, need at least %d", len(data), required)
	}

	stored := binary.LittleEndian.Uint16(data[end:required])
	if computed := dyncrc16.Checksum(data[:end]); computed != stored {
		return nil, 0, fmt.Errorf("fit file crc mismatch: stored 0x%04X computed 0x%04X", stored, computed)
	}

	ps := &parseState{
		data:        data[headerSize:end],
		definitions: make(map[uint8]localDefinition),
	}
	if err := ps.parseRecords(); err != nil {
		return nil, 0, err
	}
	return ps.messages, required, nil
}

func parseHeader(data []byte) (int, int, error) {
	size := int(data[0])
	if size != headerSizeNoCRC && size != headerSizeCRC {
		return 0, 0, fmt.Errorf("invalid fit header size: %d", size)
	}
	if len(data) < size {
		return 0, 0, fmt.Errorf("truncated fit header: need %d bytes", size)
	}
	if dataType := string(data[8:12]); dataType != ".FIT" {
		return 0, 0, fmt.Errorf("invalid fit data type in header: %q", dataType)
	}
	if size == headerSizeCRC {
		stored := binary.LittleEndian.Uint16(data[12:14])
		if stored != 0 {
			if computed := dyncrc16.Checksum(data[:12]); computed != stored {
				return 0, 0, fmt.Errorf("fit header crc mismatch: stored 0x%04X computed 0x%04X", stored, computed)
			}
		}
	}
	return size, int(binary.LittleEndian.Uint32(data[4:8])), nil
}

func (ps *parseState) read(n int) ([]byte, error) {
	if ps.pos+n > len(ps.data) {
		return nil, fmt.Errorf("record truncated at data byte %d", ps.pos)
	}
	out := ps.data[ps.pos : ps.pos+n]
	ps.pos += n
	return out, nil
}

func (ps *parseState) parseRecords() error {
	for recordIndex := 1; ps.pos < len(ps.data); recordIndex++ {
		headerByte := ps.data[ps.pos]
		ps.pos++

		switch {
		case headerByte&compressedHeaderMask == compressedHeaderMask:
			local := (headerByte & compressedLocalMesgNumMask) >> 5
			def, ok := ps.definitions[local]
			if !ok {
				return fmt.Errorf("missing definition for compressed data message local=%d record=%d", local, recordIndex)
			}
			if err := ps.parseData(headerByte, def, true); err != nil {
				return fmt.Errorf("record %d: %w", recordIndex, err)
			}
		case headerByte&mesgDefinitionMask == mesgDefinitionMask:
			if err := ps.parseDefinition(headerByte); err != nil {
				return fmt.Errorf("record %d: %w", recordIndex, err)
			}
		default:
			local := headerByte & localMesgNumMask
			def, ok := ps.definitions[local]
			if !ok {
				return fmt.Errorf("missing definition for data message local=%d record=%d", local, recordIndex)
			}
			if err := ps.parseData(headerByte, def, false); err != nil {
				return fmt.Errorf("record %d: %w", recordIndex, err)
			}
		}
	}
	return nil
}

func (ps *parseState) parseDefinition(headerByte uint8) error {
	// reserved, architecture, global message number (2), field count
	fixed, err := ps.read(5)
	if err != nil {
		return err
	}

	var arch binary.ByteOrder
	switch fixed[1] {
	case 0:
		arch = binary.LittleEndian
	case 1:
		arch = binary.BigEndian
	default:
		return fmt.Errorf("invalid architecture byte %d", fixed[1])
	}

	def := localDefinition{
		globalMessageNum: fit.MesgNum(arch.Uint16(fixed[2:4])),
		arch:             arch,
	}

	numFields := int(fixed[4])
	raw, err := ps.read(numFields * 3)
	if err != nil {
		return err
	}
	def.fields = make([]fieldDef, 0, numFields)
	for i := 0; i < numFields; i++ {
		fd := raw[i*3 : i*3+3]
		def.fields = append(def.fields, fieldDef{
			number: fd[0],
			size:   fd[1],
			base:   decompressBaseType(fd[2]),
		})
	}

	if headerByte&devDataMask == devDataMask {
		countRaw, err := ps.read(1)
		if err != nil {
			return err
		}
		devRaw, err := ps.read(int(countRaw[0]) * 3)
		if err != nil {
			return err
		}
		for i := 0; i < int(countRaw[0]); i++ {
			def.devDataSize += int(devRaw[i*3+1])
		}
	}

	ps.definitions[headerByte&localMesgNumMask] = def
	return nil
}

func (ps *parseState) parseData(headerByte uint8, def localDefinition, compressed bool) error {
	msg := Message{
		Num:    def.globalMessageNum,
		fields: make(map[string]Field, len(def.fields)+1),
	}

	if compressed && ps.lastTimestamp != 0 {
		offset := int32(headerByte & compressedTimeMask)
		ps.lastTimestamp += uint32((offset - ps.lastTimeOffset) & compressedTimeMask)
		ps.lastTimeOffset = offset
		msg.set(fieldNumTimestamp, ps.lastTimestamp)
	}

	for _, fd := range def.fields {
		raw, err := ps.read(int(fd.size))
		if err != nil {
			return err
		}
		value, valid := decodeField(raw, fd.base, def.arch)
		if !valid {
			continue
		}
		if fd.number == fieldNumTimestamp {
			if ts, ok := value.(uint32); ok {
				ps.lastTimestamp = ts
				ps.lastTimeOffset = int32(ts & compressedTimeMask)
			}
		}
		msg.set(fd.number, value)
	}

	// Developer fields carry no position data.
	if def.devDataSize > 0 {
		if _, err := ps.read(def.devDataSize); err != nil {
			return err
		}
	}

	ps.messages = append(ps.messages, msg)
	return nil
}

// decodeField returns the decoded value and whether it is valid. Values
// equal to the base type's invalid sentinel are reported invalid.
func decodeField(raw []byte, bt baseType, arch binary.ByteOrder) (any, bool) {
	size, ok := baseSizes[bt]
	if !ok {
		return append([]byte(nil), raw...), true
	}

	switch bt {
	case baseString:
		s := decodeNullTerminatedString(raw)
		return s, s != ""
	case baseByte:
		return append([]byte(nil), raw...), !allBytes(raw, 0xFF)
	}

	if len(raw) == 0 || len(raw)%size != 0 {
		return append([]byte(nil), raw...), true
	}

	count := len(raw) / size
	if count == 1 {
		v, invalid := decodeSingleValue(raw, bt, arch)
		return v, !invalid
	}

	values := make([]any, 0, count)
	invalidCount := 0
	for i := 0; i < count; i++ {
		v, invalid := decodeSingleValue(raw[i*size:(i+1)*size], bt, arch)
		values = append(values, v)
		if invalid {
			invalidCount++
		}
	}
	return values, invalidCount < count
}

func decodeSingleValue(raw []byte, bt baseType, arch binary.ByteOrder) (any, bool) {
	switch bt {
	case baseEnum:
		v := raw[0]
		return v, v == 0xFF
	case baseSint8:
		v := int8(raw[0])
		return v, v == int8(0x7F)
	case baseUint8:
		v := raw[0]
		return v, v == 0xFF
	case baseSint16:
		v := int16(arch.Uint16(raw))
		return v, v == int16(0x7FFF)
	case baseUint16:
		v := arch.Uint16(raw)
		return v, v == 0xFFFF
	case baseSint32:
		v := int32(arch.Uint32(raw))
		return v, v == int32(0x7FFFFFFF)
	case baseUint32:
		v := arch.Uint32(raw)
		return v, v == 0xFFFFFFFF
	case baseFloat32:
		bits := arch.Uint32(raw)
		return float64(math.Float32frombits(bits)), bits == 0xFFFFFFFF
	case baseFloat64:
		bits := arch.Uint64(raw)
		return math.Float64frombits(bits), bits == 0xFFFFFFFFFFFFFFFF
	case baseUint8z:
		v := raw[0]
		return v, v == 0x00
	case baseUint16z:
		v := arch.Uint16(raw)
		return v, v == 0x0000
	case baseUint32z:
		v := arch.Uint32(raw)
		return v, v == 0x00000000
	case baseSint64:
		v := int64(arch.Uint64(raw))
		return v, v == int64(0x7FFFFFFFFFFFFFFF)
	case baseUint64:
		v := arch.Uint64(raw)
		return v, v == 0xFFFFFFFFFFFFFFFF
	case baseUint64z:
		v := arch.Uint64(raw)
		return v, v == 0x0000000000000000
	default:
		return append([]byte(nil), raw...), false
	}
}

func decompressBaseType(b byte) baseType {
	switch b & 0x1F {
	case 0x03:
		return baseSint16
	case 0x04:
		return baseUint16
	case 0x05:
		return baseSint32
	case 0x06:
		return baseUint32
	case 0x08:
		return baseFloat32
	case 0x09:
		return baseFloat64
	case 0x0B:
		return baseUint16z
	case 0x0C:
		return baseUint32z
	case 0x0E:
		return baseSint64
	case 0x0F:
		return baseUint64
	case 0x10:
		return baseUint64z
	default:
		return baseType(b & 0x1F)
	}
}

func decodeNullTerminatedString(raw []byte) string {
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0x00 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

func allBytes(raw []byte, value byte) bool {
	if len(raw) == 0 {
		return false
	}
	for _, b := range raw {
		if b != value {
			return false
		}
	}
	return true
}
