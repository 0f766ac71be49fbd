package configstore

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/LeonardoBeccarini/feeder/internal/model"
)

// Persisted layout, all ASCII after the marker:
//
//	[0]      schema marker
//	[1:6]    feeding time "HH:MM"
//	[6]      quantity '1'-'9'
//	[7:11]   unit dispense duration, ms, 4 zero-padded digits
//
// Any change to this layout must bump SchemaVersion.
const (
	SchemaVersion byte = 0x01
	BlankByte     byte = 0xFF

	RecordSize = 11

	offMarker   = 0
	offTime     = 1
	offQuantity = 6
	offDuration = 7
)

var (
	ErrSchemaMismatch = errors.New("schema marker mismatch")
	ErrCorruptRecord  = errors.New("corrupt record")
)

// Encode serializes s into a full record including the current marker.
func Encode(s model.FeedingSchedule) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	b := make([]byte, RecordSize)
	b[offMarker] = SchemaVersion
	copy(b[offTime:offQuantity], s.FeedingTime.String())
	b[offQuantity] = byte('0' + s.Quantity)
	copy(b[offDuration:RecordSize], fmt.Sprintf("%04d", s.UnitDurationMs()))
	return b, nil
}

// Decode parses a record. A wrong marker yields ErrSchemaMismatch, a right
// marker with unparsable fields yields ErrCorruptRecord.
func Decode(b []byte) (model.FeedingSchedule, error) {
	if len(b) < RecordSize {
		return model.FeedingSchedule{}, fmt.Errorf("%w: %d bytes", ErrSchemaMismatch, len(b))
	}
	if b[offMarker] != SchemaVersion {
		return model.FeedingSchedule{}, fmt.Errorf("%w: got 0x%02X want 0x%02X", ErrSchemaMismatch, b[offMarker], SchemaVersion)
	}

	ft, err := model.ParseClockTime(string(b[offTime:offQuantity]))
	if err != nil {
		return model.FeedingSchedule{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	q := int(b[offQuantity]) - '0'
	if q < model.MinQuantity || q > model.MaxQuantity {
		return model.FeedingSchedule{}, fmt.Errorf("%w: quantity byte 0x%02X", ErrCorruptRecord, b[offQuantity])
	}
	raw := string(b[offDuration:RecordSize])
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return model.FeedingSchedule{}, fmt.Errorf("%w: duration %q", ErrCorruptRecord, raw)
		}
	}
	ms, _ := strconv.Atoi(raw)
	if ms < model.MinUnitDurationMs {
		return model.FeedingSchedule{}, fmt.Errorf("%w: duration %q", ErrCorruptRecord, raw)
	}

	return model.FeedingSchedule{
		FeedingTime:          ft,
		Quantity:             q,
		UnitDispenseDuration: time.Duration(ms) * time.Millisecond,
	}, nil
}

// Blank returns an erased record image, as found on fresh storage.
func Blank() []byte {
	b := make([]byte, RecordSize)
	for i := range b {
		b[i] = BlankByte
	}
	return b
}
