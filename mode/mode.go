// Package mode defines the interned value-mode descriptors shared by
// every node in an IR graph: integer width/sign, floating-point kind,
// the memory token, tuples, control-flow blocks and the X control
// token.
//
// Modes are process-wide and never torn down once initialized, mirroring
// the way the source library interns its mode and opcode tables at
// startup (spec.md §5, "Process-wide state").
package mode

import (
	"fmt"
	"sync"
)

// Kind classifies the broad family a Mode belongs to.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindReference
	KindMemory
	KindTuple
	KindBlock
	KindControl // the "X" control-flow token
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindReference:
		return "ref"
	case KindMemory:
		return "mem"
	case KindTuple:
		return "tuple"
	case KindBlock:
		return "block"
	case KindControl:
		return "X"
	default:
		return "unknown"
	}
}

// Mode is an interned, immutable descriptor of the semantic type of a
// value flowing along an edge of the graph. Two Modes describing the
// same (Kind, Width, Signed) triple are always the same *Mode pointer,
// so Modes may be compared with ==.
type Mode struct {
	name   string
	kind   Kind
	width  int // bit width, meaningful for KindInt and KindFloat
	signed bool
}

func (m *Mode) String() string { return m.name }

// Kind reports the broad family of the mode.
func (m *Mode) Kind() Kind { return m.kind }

// Width reports the bit width of an integer or floating-point mode.
// It is meaningless for other kinds.
func (m *Mode) Width() int { return m.width }

// Signed reports whether an integer mode is signed. It is meaningless
// for other kinds.
func (m *Mode) Signed() bool { return m.signed }

// IsData reports whether values of this mode are ordinary data values
// that occupy registers (as opposed to memory, control or structural
// tokens).
func (m *Mode) IsData() bool {
	switch m.kind {
	case KindInt, KindFloat, KindReference:
		return true
	default:
		return false
	}
}

var (
	registry   = map[string]*Mode{}
	registryMu sync.Mutex
	initOnce   sync.Once
)

func intern(name string, k Kind, width int, signed bool) *Mode {
	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := registry[name]; ok {
		return existing
	}
	m := &Mode{name: name, kind: k, width: width, signed: signed}
	registry[name] = m
	return m
}

// The process-wide interned modes. These are populated once by init()
// below and never mutated afterwards, matching the source library's
// one-shot mode-table initializer.
var (
	Mem     *Mode
	Tuple   *Mode
	Block   *Mode
	X       *Mode
	Ref     *Mode
	Int8    *Mode
	Int16   *Mode
	Int32   *Mode
	Int64   *Mode
	UInt8   *Mode
	UInt16  *Mode
	UInt32  *Mode
	UInt64  *Mode
	Float32 *Mode
	Float64 *Mode
)

func init() {
	initOnce.Do(func() {
		Mem = intern("mem", KindMemory, 0, false)
		Tuple = intern("T", KindTuple, 0, false)
		Block = intern("block", KindBlock, 0, false)
		X = intern("X", KindControl, 0, false)
		Ref = intern("ref", KindReference, 64, false)
		Int8 = intern("i8", KindInt, 8, true)
		Int16 = intern("i16", KindInt, 16, true)
		Int32 = intern("i32", KindInt, 32, true)
		Int64 = intern("i64", KindInt, 64, true)
		UInt8 = intern("u8", KindInt, 8, false)
		UInt16 = intern("u16", KindInt, 16, false)
		UInt32 = intern("u32", KindInt, 32, false)
		UInt64 = intern("u64", KindInt, 64, false)
		Float32 = intern("f32", KindFloat, 32, false)
		Float64 = intern("f64", KindFloat, 64, false)
	})
}

// Custom interns an arbitrary integer mode of the given width and
// signedness, for targets whose registers don't match the fixed set
// above (e.g. a 24-bit DSP accumulator). Repeated calls with the same
// parameters return the same *Mode.
func Custom(width int, signed bool) *Mode {
	sign := "u"
	if signed {
		sign = "i"
	}
	return intern(fmt.Sprintf("%s%d", sign, width), KindInt, width, signed)
}
