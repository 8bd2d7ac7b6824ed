package frame_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssagraph/firmcore/frame"
	"github.com/ssagraph/firmcore/ir"
)

// TestSimulateStackPointerAligns is the scenario E6: entry offset 0, an
// IncSP of delta -12 requiring 16-byte alignment (align=4), misalign=0.
// The node's delta is expected to slide to -16 (4 bytes of slack folded
// in before the decrement actually takes effect).
func TestSimulateStackPointerAligns(t *testing.T) {
	g := ir.NewGraph("f")
	entry := g.StartBlock()
	inc := ir.NewIncSP(entry, entry, -12, 4)

	var simCalls int
	frame.SimulateStackPointer(g, 0, 0, func(n *ir.Node, offsetBefore int) int {
		simCalls++
		return offsetBefore
	})

	assert.Equal(t, -16, inc.IncSPDelta())
	assert.Equal(t, 0, simCalls)
}

// TestSimulateStackPointerNoAlignmentNeeded checks an IncSP whose delta
// already satisfies the requested alignment is left untouched.
func TestSimulateStackPointerNoAlignmentNeeded(t *testing.T) {
	g := ir.NewGraph("f")
	entry := g.StartBlock()
	inc := ir.NewIncSP(entry, entry, -16, 4)

	frame.SimulateStackPointer(g, 0, 0, func(n *ir.Node, offsetBefore int) int { return offsetBefore })

	assert.Equal(t, -16, inc.IncSPDelta())
}

// TestSimulateStackPointerRestoresBias checks the align==0 "restore to
// wanted bias" branch: after an aligning IncSP leaves offset ahead of
// wantedBias by some slack, a later unaligned IncSP must absorb exactly
// that slack back out so the two stay in lockstep again.
func TestSimulateStackPointerRestoresBias(t *testing.T) {
	g := ir.NewGraph("f")
	entry := g.StartBlock()
	grow := ir.NewIncSP(entry, entry, -12, 4)  // slides to -16, offset=16 wantedBias=12
	shrink := ir.NewIncSP(entry, grow, 12, 0) // should slide to 16 to cancel the slack

	frame.SimulateStackPointer(g, 0, 0, func(n *ir.Node, offsetBefore int) int { return offsetBefore })

	assert.Equal(t, -16, grow.IncSPDelta())
	assert.Equal(t, 16, shrink.IncSPDelta())
}
