// Package frame lays out a procedure's frame type and repairs/simulates
// the stack pointer across it (spec.md §4.5), grounded on libFirm's
// bestack.c.
package frame

import "github.com/ssagraph/firmcore/ir"

// SortSpillSlotsFirst reorders ft's members so every spill-slot entity
// precedes every regular entity, each group ordered by ascending Nr
// (spec.md §4.5, "Sort step"). Use SortSpillSlotsLast for the opposite
// convention.
func SortSpillSlotsFirst(ft *ir.FrameType) { sortMembers(ft, true) }

// SortSpillSlotsLast reorders ft's members so every regular entity
// precedes every spill-slot entity, each group ordered by ascending Nr.
func SortSpillSlotsLast(ft *ir.FrameType) { sortMembers(ft, false) }

func sortMembers(ft *ir.FrameType, spillSlotsFirst bool) {
	members := ft.Members
	less := func(i, j int) bool {
		a, b := members[i], members[j]
		aSlot := a.Kind == ir.KindSpillSlot
		bSlot := b.Kind == ir.KindSpillSlot
		if aSlot != bSlot {
			if spillSlotsFirst {
				return aSlot
			}
			return bSlot
		}
		return a.Nr < b.Nr
	}
	// Insertion sort: the member list is small and this keeps the
	// ordering stable without pulling in sort.Slice for a handful of
	// comparisons per frame.
	for i := 1; i < len(members); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			members[j], members[j-1] = members[j-1], members[j]
		}
	}
}

// roundUpMisaligned implements round_up_misaligned(x, a, m) =
// round_up(x + m, a) - m (spec.md §4.5, "Layout step").
func roundUpMisaligned(x, alignment, misalign int) int {
	return roundUp(x+misalign, alignment) - misalign
}

func roundUp(x, alignment int) int {
	if alignment <= 1 {
		return x
	}
	r := x % alignment
	if r == 0 {
		return x
	}
	return x + (alignment - r)
}

// Layout assigns offsets to every member of ft that doesn't already
// have one, walking in current member order and advancing a downward
// offset cursor from begin (spec.md §4.5, "Layout step"). Members with
// a pre-assigned offset are left untouched but must not lie below
// begin; ft.Size and ft.Fixed are set on completion.
func Layout(ft *ir.FrameType, begin int, misalign int) {
	offset := begin
	for _, m := range ft.Members {
		if m.HasOffset() {
			if m.Offset < begin {
				panic("frame layout: pre-assigned member offset lies below begin")
			}
			continue
		}
		alignment := m.Alignment
		size := m.Size
		offset -= size
		offset = -roundUpMisaligned(-offset, alignment, misalign)
		m.Offset = offset
	}
	ft.Size = -offset
	ft.Fixed = true
}
