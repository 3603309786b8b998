package wire

import (
	"fmt"
	"math/bits"
	"strings"
)

// Options is the bitflag word carried in every frame. The meaning of each bit
// is defined by the Family the frame belongs to.
type Options uint32

// Has returns true if every bit of f is set.
func (o Options) Has(f Options) bool {
	return o&f == f
}

// With returns o with the bits of f set.
func (o Options) With(f Options) Options {
	return o | f
}

// Without returns o with the bits of f cleared.
func (o Options) Without(f Options) Options {
	return o &^ f
}

// Flag names a single option bit.
type Flag struct {
	Name string
	Bit  Options
}

// Vocabulary is the fixed set of option names for one family.
type Vocabulary struct {
	flags []Flag
	mask  Options
}

// NewVocabulary builds a vocabulary from single-bit flags. It panics if a
// flag has zero or several bits set, or if a bit or name is reused, since
// vocabularies are static tables defined at package init.
func NewVocabulary(flags ...Flag) Vocabulary {
	v := Vocabulary{flags: make([]Flag, 0, len(flags))}
	names := make(map[string]bool, len(flags))
	for _, f := range flags {
		if bits.OnesCount32(uint32(f.Bit)) != 1 {
			panic(fmt.Sprintf("wire: flag %q must have exactly one bit set", f.Name))
		}
		if v.mask&f.Bit != 0 || names[f.Name] {
			panic(fmt.Sprintf("wire: duplicate flag %q", f.Name))
		}
		names[f.Name] = true
		v.mask |= f.Bit
		v.flags = append(v.flags, f)
	}
	return v
}

// Mask returns the union of every defined bit.
func (v Vocabulary) Mask() Options {
	return v.mask
}

// Flags returns a copy of the vocabulary's flags.
func (v Vocabulary) Flags() []Flag {
	out := make([]Flag, len(v.flags))
	copy(out, v.flags)
	return out
}

// Parse converts flag names to an Options word.
func (v Vocabulary) Parse(names ...string) (Options, error) {
	var o Options
	for _, name := range names {
		found := false
		for _, f := range v.flags {
			if f.Name == name {
				o |= f.Bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownOptions, name)
		}
	}
	return o, nil
}

// Format renders an Options word as "name|name". Undefined bits are shown in hex.
func (v Vocabulary) Format(o Options) string {
	if o == 0 {
		return "none"
	}
	var parts []string
	for _, f := range v.flags {
		if o.Has(f.Bit) {
			parts = append(parts, f.Name)
		}
	}
	if rest := o &^ v.mask; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Family describes one op-code family sharing the frame format.
type Family struct {
	// Name is used in logs and errors.
	Name string

	// Magic is the first word of every frame in this family.
	Magic uint32

	// Options names the option bits.
	Options Vocabulary

	// OpNames maps every op-code of the family to its name.
	OpNames map[uint32]string
}

// OpName returns the name of an op-code, or its number if unknown.
func (f Family) OpName(op uint32) string {
	if name, ok := f.OpNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", op)
}

// WithMagic returns a copy of the family using a different magic number.
func (f Family) WithMagic(magic uint32) Family {
	f.Magic = magic
	return f
}

// Message is one decoded or to-be-encoded frame.
type Message struct {
	// Magic and TotalLength are filled in by the codec.
	Magic       uint32
	TotalLength uint32

	OpCode    uint32
	Options   Options
	RequestID uint32

	Ints    []uint32
	Strings []string
}

// NewMessage creates a message for encoding.
func NewMessage(op uint32, opts Options, requestID uint32, ints []uint32, strs ...string) Message {
	return Message{
		OpCode:    op,
		Options:   opts,
		RequestID: requestID,
		Ints:      ints,
		Strings:   strs,
	}
}

// EncodedLength returns the size of the encoded frame.
func (m Message) EncodedLength() uint64 {
	n := uint64(HeaderSize) + 4*uint64(len(m.Ints)) + 4*uint64(len(m.Strings))
	for _, s := range m.Strings {
		n += uint64(len(s))
	}
	return n
}
