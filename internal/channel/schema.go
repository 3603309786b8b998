package channel

import (
	"encoding/binary"
	"fmt"

	"github.com/Hirshol/equill-core-apps-sub000/internal/wire"
)

// EventID is the leading word of every inbound datagram.
type EventID uint32

// Inbound event ids.
const (
	EventStroke          EventID = 1
	EventPageStop        EventID = 2
	EventSubmit          EventID = 3
	EventReadComplete    EventID = 4
	EventRenderComplete  EventID = 5
	EventError           EventID = 6
	EventStrokeFileReady EventID = 7
	EventOrientation     EventID = 8
	EventSleep           EventID = 9
	EventDoze            EventID = 10
	EventWake            EventID = 11
	EventShutdown        EventID = 12
	EventFuelGauge       EventID = 13
	EventViewport        EventID = 14
	EventSleepAck        EventID = 15
)

// String returns the event's schema name.
func (id EventID) String() string {
	if s, ok := schemas[id]; ok {
		return s.Name
	}
	return fmt.Sprintf("event(%d)", uint32(id))
}

// IsCompletion reports whether id resolves a pending request. Completion
// events bypass the queue and run inline on the receiving goroutine.
func (id EventID) IsCompletion() bool {
	switch id {
	case EventReadComplete, EventRenderComplete, EventError:
		return true
	}
	return false
}

// FieldKind is the wire shape of one payload field.
type FieldKind int

const (
	// FieldU32 is a 32-bit unsigned integer.
	FieldU32 FieldKind = iota
	// FieldString is a 32-bit length followed by that many bytes.
	FieldString
	// FieldAlignedString is a FieldString padded with zero bytes so the
	// next field starts on a 4-byte boundary.
	FieldAlignedString
)

// Field names one positional payload field.
type Field struct {
	Name string
	Kind FieldKind
}

// Schema is the payload shape of one event id.
type Schema struct {
	ID     EventID
	Name   string
	Fields []Field
}

func u32(name string) Field     { return Field{Name: name, Kind: FieldU32} }
func str(name string) Field     { return Field{Name: name, Kind: FieldString} }
func aligned(name string) Field { return Field{Name: name, Kind: FieldAlignedString} }

// schemas is the static table of inbound payload shapes.
var schemas = map[EventID]Schema{
	EventStroke:          {EventStroke, "stroke", []Field{u32("page"), u32("region"), u32("x"), u32("y"), aligned("doc")}},
	EventPageStop:        {EventPageStop, "page_stop", []Field{u32("page"), u32("prev_page"), aligned("doc")}},
	EventSubmit:          {EventSubmit, "submit", []Field{u32("page"), u32("overlay"), str("form")}},
	EventReadComplete:    {EventReadComplete, "read_complete", []Field{u32("request_id")}},
	EventRenderComplete:  {EventRenderComplete, "render_complete", []Field{u32("request_id")}},
	EventError:           {EventError, "error", []Field{u32("request_id"), u32("code"), str("message")}},
	EventStrokeFileReady: {EventStrokeFileReady, "stroke_file_ready", []Field{u32("page"), aligned("doc"), aligned("path")}},
	EventOrientation:     {EventOrientation, "orientation", []Field{u32("degrees")}},
	EventSleep:           {EventSleep, "sleep", []Field{u32("reason")}},
	EventDoze:            {EventDoze, "doze", nil},
	EventWake:            {EventWake, "wake", []Field{u32("reason")}},
	EventShutdown:        {EventShutdown, "shutdown", nil},
	EventFuelGauge:       {EventFuelGauge, "fuel_gauge", []Field{u32("percent"), u32("charging")}},
	EventViewport:        {EventViewport, "viewport", []Field{u32("page"), u32("x"), u32("y"), u32("width"), u32("height")}},
	EventSleepAck:        {EventSleepAck, "sleep_ack", nil},
}

// LookupSchema returns the schema for id.
func LookupSchema(id EventID) (Schema, bool) {
	s, ok := schemas[id]
	return s, ok
}

// Event is one decoded inbound datagram. Ints and Strings hold the
// payload's integer and string fields in schema order.
type Event struct {
	ID      EventID
	Ints    []uint32
	Strings []string
}

// Name returns the event's schema name.
func (e Event) Name() string {
	return e.ID.String()
}

// Int returns the i-th integer field or 0 if absent.
func (e Event) Int(i int) uint32 {
	if i < 0 || i >= len(e.Ints) {
		return 0
	}
	return e.Ints[i]
}

// Text returns the i-th string field or "" if absent.
func (e Event) Text(i int) string {
	if i < 0 || i >= len(e.Strings) {
		return ""
	}
	return e.Strings[i]
}

const eventFamily = "event"

// DecodeEvent parses a datagram according to the schema table. Unknown
// ids return ErrUnknownEvent; malformed payloads return a *wire.ProtocolError.
func DecodeEvent(order binary.ByteOrder, b []byte) (Event, error) {
	if len(b) < 4 {
		return Event{}, wire.NewProtocolError(eventFamily, wire.KindTruncated, "%d bytes, need 4 for event id", len(b))
	}
	id := EventID(order.Uint32(b))
	s, ok := schemas[id]
	if !ok {
		return Event{ID: id}, fmt.Errorf("%w: %d", ErrUnknownEvent, uint32(id))
	}

	ev := Event{ID: id}
	off := 4
	for _, f := range s.Fields {
		if len(b)-off < 4 {
			return Event{}, wire.NewProtocolError(eventFamily, wire.KindTruncated, "%s.%s: need 4 bytes at offset %d, have %d", s.Name, f.Name, off, len(b)-off)
		}
		v := order.Uint32(b[off:])
		off += 4

		if f.Kind == FieldU32 {
			ev.Ints = append(ev.Ints, v)
			continue
		}

		n := int(v)
		if n < 0 || n > len(b)-off {
			return Event{}, wire.NewProtocolError(eventFamily, wire.KindTruncated, "%s.%s: string of %d bytes, have %d", s.Name, f.Name, v, len(b)-off)
		}
		ev.Strings = append(ev.Strings, string(b[off:off+n]))
		off += n

		if f.Kind == FieldAlignedString {
			pad := (4 - n%4) % 4
			if pad > len(b)-off {
				return Event{}, wire.NewProtocolError(eventFamily, wire.KindTruncated, "%s.%s: missing %d padding bytes", s.Name, f.Name, pad)
			}
			off += pad
		}
	}

	if off != len(b) {
		return Event{}, wire.NewProtocolError(eventFamily, wire.KindTrailingBytes, "%s: %d bytes after payload", s.Name, len(b)-off)
	}
	return ev, nil
}

// EncodeEvent lays out an event per its schema. The display server is the
// real producer of these datagrams; this exists for tests and tooling.
func EncodeEvent(order binary.ByteOrder, ev Event) ([]byte, error) {
	s, ok := schemas[ev.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, uint32(ev.ID))
	}

	b := appendU32(order, nil, uint32(ev.ID))
	ints, strs := 0, 0
	for _, f := range s.Fields {
		if f.Kind == FieldU32 {
			if ints >= len(ev.Ints) {
				return nil, fmt.Errorf("%s: missing int field %s", s.Name, f.Name)
			}
			b = appendU32(order, b, ev.Ints[ints])
			ints++
			continue
		}
		if strs >= len(ev.Strings) {
			return nil, fmt.Errorf("%s: missing string field %s", s.Name, f.Name)
		}
		v := ev.Strings[strs]
		strs++
		b = appendU32(order, b, uint32(len(v)))
		b = append(b, v...)
		if f.Kind == FieldAlignedString {
			for i := 0; i < (4-len(v)%4)%4; i++ {
				b = append(b, 0)
			}
		}
	}
	return b, nil
}

func appendU32(order binary.ByteOrder, b []byte, v uint32) []byte {
	var w [4]byte
	order.PutUint32(w[:], v)
	return append(b, w[:]...)
}
