package pattern

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Persisted record framing. Every record carries a magic, a schema
// version, a payload length, and a trailing CRC32 so a corrupt or
// never-written region is detected on load instead of propagating into
// runtime state. Future schema versions may only add payload fields.
const (
	MagicByte0 byte = 'I'
	MagicByte1 byte = 'W'

	SchemaVersion byte = 1

	recordHeaderSize = 5 // magic(2) + version(1) + payload length(2)
	recordCRCSize    = 4

	patternPayloadSize = 48 + 3 + MaxPhases*5
	targetPayloadSize  = 32 + 1

	// PatternRecordSize and TargetRecordSize are the exact on-media sizes
	// of the two records. The configuration store sizes its regions from
	// these.
	PatternRecordSize = recordHeaderSize + patternPayloadSize + recordCRCSize
	TargetRecordSize  = recordHeaderSize + targetPayloadSize + recordCRCSize
)

var (
	ErrBadMagic   = fmt.Errorf("pattern: record magic mismatch")
	ErrBadVersion = fmt.Errorf("pattern: unsupported record version")
	ErrBadCRC     = fmt.Errorf("pattern: record checksum mismatch")
	ErrShortData  = fmt.Errorf("pattern: record truncated")
)

func frameRecord(payload []byte) []byte {
	buf := make([]byte, recordHeaderSize+len(payload)+recordCRCSize)
	buf[0] = MagicByte0
	buf[1] = MagicByte1
	buf[2] = SchemaVersion
	binary.LittleEndian.PutUint16(buf[3:5], uint16(len(payload)))
	copy(buf[recordHeaderSize:], payload)
	sum := crc32.ChecksumIEEE(buf[2 : recordHeaderSize+len(payload)])
	binary.LittleEndian.PutUint32(buf[recordHeaderSize+len(payload):], sum)
	return buf
}

func unframeRecord(data []byte) ([]byte, error) {
	if len(data) < recordHeaderSize+recordCRCSize {
		return nil, ErrShortData
	}
	if data[0] != MagicByte0 || data[1] != MagicByte1 {
		return nil, ErrBadMagic
	}
	if data[2] != SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, data[2])
	}
	plen := int(binary.LittleEndian.Uint16(data[3:5]))
	if len(data) < recordHeaderSize+plen+recordCRCSize {
		return nil, ErrShortData
	}
	want := binary.LittleEndian.Uint32(data[recordHeaderSize+plen : recordHeaderSize+plen+recordCRCSize])
	got := crc32.ChecksumIEEE(data[2 : recordHeaderSize+plen])
	if got != want {
		return nil, ErrBadCRC
	}
	return data[recordHeaderSize : recordHeaderSize+plen], nil
}

// EncodePattern serializes a pattern into its fixed-size persisted record.
// The phase table always occupies all 20 slots so the record size is
// stable across patterns.
func (p Pattern) EncodePattern() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	payload := make([]byte, patternPayloadSize)
	copy(payload[0:48], p.Name)
	payload[48] = uint8(len(p.Phases))
	payload[49] = p.RepeatCount
	if p.Enabled {
		payload[50] = 1
	}
	for i, ph := range p.Phases {
		off := 51 + i*5
		payload[off] = uint8(ph.Zone)
		binary.LittleEndian.PutUint16(payload[off+1:off+3], ph.DurationMs)
		payload[off+3] = ph.Intensity
		payload[off+4] = ph.JitterPercent
	}
	return frameRecord(payload), nil
}

// DecodePattern parses a persisted pattern record. The pattern invariant
// is enforced here: a record claiming 0 or more than 20 phases fails.
func DecodePattern(data []byte) (Pattern, error) {
	payload, err := unframeRecord(data)
	if err != nil {
		return Pattern{}, err
	}
	if len(payload) < patternPayloadSize {
		return Pattern{}, ErrShortData
	}
	count := int(payload[48])
	if count < 1 || count > MaxPhases {
		return Pattern{}, fmt.Errorf("%w: persisted count %d", ErrNoPhases, count)
	}
	p := Pattern{
		Name:        cString(payload[0:48]),
		RepeatCount: payload[49],
		Enabled:     payload[50] != 0,
		Phases:      make([]Phase, count),
	}
	for i := 0; i < count; i++ {
		off := 51 + i*5
		p.Phases[i] = Phase{
			Zone:          ZoneSelector(payload[off]),
			DurationMs:    binary.LittleEndian.Uint16(payload[off+1 : off+3]),
			Intensity:     payload[off+3],
			JitterPercent: payload[off+4],
		}
	}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// EncodeTarget serializes a target profile into its persisted record.
func (t TargetProfile) EncodeTarget() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	payload := make([]byte, targetPayloadSize)
	copy(payload[0:32], t.Name)
	payload[32] = uint8(t.Flags)
	return frameRecord(payload), nil
}

// DecodeTarget parses a persisted target record.
func DecodeTarget(data []byte) (TargetProfile, error) {
	payload, err := unframeRecord(data)
	if err != nil {
		return TargetProfile{}, err
	}
	if len(payload) < targetPayloadSize {
		return TargetProfile{}, ErrShortData
	}
	t := TargetProfile{
		Name:  cString(payload[0:32]),
		Flags: TargetFlags(payload[32]),
	}
	if err := t.Validate(); err != nil {
		return TargetProfile{}, err
	}
	return t, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
