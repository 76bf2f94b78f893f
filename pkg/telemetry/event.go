package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Reserved keys of the inbound message contract.
const (
	KeyDeviceID  = "device_id"
	KeyFieldA    = "field_a"
	KeyTimestamp = "timestamp"
)

// ErrDecode is returned (wrapped) for any message body that does not satisfy
// the inbound contract. Callers drop such messages.
var ErrDecode = errors.New("telemetry: decode")

// Event is one telemetry reading from a device.
// Events are treated as immutable once decoded.
type Event struct {
	DeviceID int64
	FieldA   float64

	// Timestamp is seconds since the Unix epoch. When the message carries no
	// timestamp, Decode fills in the receive time.
	Timestamp float64

	// Extra holds every key other than the reserved ones, undecoded.
	Extra map[string]json.RawMessage
}

// Decode parses a message body into an Event. received stamps events that
// carry no timestamp of their own.
//
// device_id must be an integral JSON number and field_a a JSON number;
// anything else yields an error wrapping ErrDecode.
func Decode(data []byte, received time.Time) (Event, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if raw == nil {
		return Event{}, fmt.Errorf("%w: body is not an object", ErrDecode)
	}

	devRaw, ok := raw[KeyDeviceID]
	if !ok {
		return Event{}, fmt.Errorf("%w: missing %s", ErrDecode, KeyDeviceID)
	}
	id, err := integer(devRaw)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s: %v", ErrDecode, KeyDeviceID, err)
	}

	aRaw, ok := raw[KeyFieldA]
	if !ok {
		return Event{}, fmt.Errorf("%w: missing %s", ErrDecode, KeyFieldA)
	}
	a, err := number(aRaw)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s: %v", ErrDecode, KeyFieldA, err)
	}

	ev := Event{
		DeviceID:  id,
		FieldA:    a,
		Timestamp: unixSeconds(received),
	}
	if tsRaw, ok := raw[KeyTimestamp]; ok && !isNull(tsRaw) {
		ts, err := number(tsRaw)
		if err != nil {
			return Event{}, fmt.Errorf("%w: %s: %v", ErrDecode, KeyTimestamp, err)
		}
		ev.Timestamp = ts
	}

	for k, v := range raw {
		switch k {
		case KeyDeviceID, KeyFieldA, KeyTimestamp:
			continue
		}
		if ev.Extra == nil {
			ev.Extra = make(map[string]json.RawMessage, len(raw)-2)
		}
		ev.Extra[k] = v
	}
	return ev, nil
}

// Field returns the numeric value of a named field. Reserved keys map to the
// typed fields; other names are looked up in Extra. The boolean is false when
// the field is absent or not a number.
func (e Event) Field(name string) (float64, bool) {
	switch name {
	case KeyFieldA:
		return e.FieldA, true
	case KeyDeviceID:
		return float64(e.DeviceID), true
	case KeyTimestamp:
		return e.Timestamp, true
	}
	raw, ok := e.Extra[name]
	if !ok {
		return 0, false
	}
	v, err := number(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MarshalJSON encodes the event back into the inbound message shape,
// including pass-through keys.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+3)
	for k, v := range e.Extra {
		out[k] = v
	}
	out[KeyDeviceID] = e.DeviceID
	out[KeyFieldA] = e.FieldA
	out[KeyTimestamp] = e.Timestamp
	return json.Marshal(out)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// number accepts only JSON numbers; strings, booleans and null are rejected.
func number(raw json.RawMessage) (float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isNull(trimmed) {
		return 0, errors.New("null value")
	}
	if c := trimmed[0]; c != '-' && (c < '0' || c > '9') {
		return 0, fmt.Errorf("not a number: %s", trimmed)
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// integer accepts integral JSON numbers, including forms like 42.0.
// Plain integer literals are parsed exactly so ids above 2^53 keep every digit.
func integer(raw json.RawMessage) (int64, error) {
	v, err := number(raw)
	if err != nil {
		return 0, err
	}
	if n, err := json.Number(bytes.TrimSpace(raw)).Int64(); err == nil {
		return n, nil
	}
	if v != math.Trunc(v) || v < -(1<<63) || v >= 1<<63 {
		return 0, fmt.Errorf("not an integer: %v", v)
	}
	return int64(v), nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}
