package ir

// FrameEntityKind distinguishes the frame members the layout component
// must place.
type FrameEntityKind int

const (
	// KindRegular is an ordinary local variable or parameter frame slot.
	KindRegular FrameEntityKind = iota
	// KindSpillSlot is a frame member materializing a spilled SSA
	// value (spec.md glossary, "Spill slot").
	KindSpillSlot
)

// InvalidOffset is the sentinel offset a frame entity carries before
// the layout pass assigns it a real one (spec.md §3, "Frame type").
const InvalidOffset = int(^uint(0) >> 1) // math.MaxInt, avoiding an import

// Entity is one member of a frame type: a stable number, a kind, a
// size and alignment, and an offset that starts Invalid and is
// assigned by the frame-layout pass (spec.md §3 "Frame type").
type Entity struct {
	Nr        int
	Kind      FrameEntityKind
	Size      int
	Alignment int
	Offset    int // InvalidOffset until layout runs
}

// HasOffset reports whether the layout pass (or the front-end) has
// already assigned this entity a concrete offset.
func (e *Entity) HasOffset() bool { return e.Offset != InvalidOffset }

// FrameType is the ordered list of members of one procedure's frame
// (spec.md §3 "Frame type").
type FrameType struct {
	Members []*Entity
	Size    int  // valid once Fixed is true
	Fixed   bool // set by the layout pass on completion
}

// NewFrameType returns an empty, unfixed frame type.
func NewFrameType() *FrameType {
	return &FrameType{}
}

// AddMember appends a new member with InvalidOffset and returns it.
func (ft *FrameType) AddMember(nr int, kind FrameEntityKind, size, alignment int) *Entity {
	e := &Entity{Nr: nr, Kind: kind, Size: size, Alignment: alignment, Offset: InvalidOffset}
	ft.Members = append(ft.Members, e)
	return e
}
