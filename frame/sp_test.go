package frame_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssagraph/firmcore/frame"
	"github.com/ssagraph/firmcore/ir"
	"github.com/ssagraph/firmcore/mode"
	"github.com/ssagraph/firmcore/regalloc"
)

var spClass = &regalloc.Class{Name: "sp", N: 1}
var spReq = &regalloc.Request{Class: spClass, Flags: regalloc.ProducesSP}

func sp(block *ir.Node, pred *ir.Node, delta int) *ir.Node {
	n := ir.NewIncSP(block, pred, delta, 0)
	n.OutReqs = []*regalloc.Request{spReq}
	return n
}

// TestCollectSPProducersFindsFlaggedNodes checks the walk only picks up
// nodes whose OutReqs carry the ProducesSP flag.
func TestCollectSPProducersFindsFlaggedNodes(t *testing.T) {
	g := ir.NewGraph("f")
	entry := g.StartBlock()
	inc := sp(entry, entry, -16)
	other := ir.NewConst(entry, mode.Int32, 1)
	_ = other

	producers := frame.CollectSPProducers([]*ir.Node{entry})

	assert.Len(t, producers, 1)
	assert.Equal(t, inc, producers[0])
}

// TestRepairSPInsertsPhiAtJoin builds a diamond where each arm produces
// its own SP value (e.g. from two independently-allocated IncSPs), and
// checks RepairSP places exactly one Phi at the join block, rewires the
// join's user to read it, and leaves the originals live (not killed,
// since each still has the Phi as a user).
func TestRepairSPInsertsPhiAtJoin(t *testing.T) {
	g := ir.NewGraph("f")
	entry := g.StartBlock()
	left := ir.NewBlock(g, []*ir.Node{entry})
	right := ir.NewBlock(g, []*ir.Node{entry})
	join := ir.NewBlock(g, []*ir.Node{left, right})

	incLeft := sp(left, entry, -16)
	incRight := sp(right, entry, -16)

	// A user in join that reads "the current SP", modeled as reading
	// whichever producer happened to be built first; RepairSP must
	// rewrite this to read the new Phi instead.
	user := ir.NewNode(g, join, "UseSP", mode.Ref, []*ir.Node{incLeft}, nil)
	ir.AppendInstr(join, user)

	producers := frame.CollectSPProducers([]*ir.Node{entry, left, right, join})
	inserted := frame.RepairSP(g, producers, spReq)

	assert.Len(t, inserted, 1)
	phi := inserted[0]
	assert.Equal(t, join, phi.Block())
	assert.Equal(t, incLeft, phi.In(join.PredIndex(left)))
	assert.Equal(t, incRight, phi.In(join.PredIndex(right)))
	assert.Equal(t, phi, user.In(0))
	assert.False(t, incLeft.IsDead())
	assert.False(t, incRight.IsDead())
}

// TestRepairSPPrunesDeadProducerKeepAlive checks a producer kept alive
// only via the End block's keep-alive set (no ordinary user at all,
// e.g. a block-ending IncSP in a function epilogue) is both dropped
// from that set and killed once RepairSP retires it.
func TestRepairSPPrunesDeadProducerKeepAlive(t *testing.T) {
	g := ir.NewGraph("f")
	entry := g.StartBlock()
	inc := sp(entry, entry, -16)
	g.AddKeepAlive(inc)

	producers := frame.CollectSPProducers([]*ir.Node{entry})
	inserted := frame.RepairSP(g, producers, spReq)

	assert.Empty(t, inserted)
	assert.True(t, inc.IsDead())
	assert.NotContains(t, g.KeepAlive(), inc)
}

// TestRepairSPNoOpWithoutMerge checks a single producer with no
// competing definition reaching any block needs no Phi at all.
func TestRepairSPNoOpWithoutMerge(t *testing.T) {
	g := ir.NewGraph("f")
	entry := g.StartBlock()
	inc := sp(entry, entry, -16)
	next := ir.NewBlock(g, []*ir.Node{entry})
	user := ir.NewNode(g, next, "UseSP", mode.Ref, []*ir.Node{inc}, nil)
	ir.AppendInstr(next, user)

	producers := frame.CollectSPProducers([]*ir.Node{entry, next})
	inserted := frame.RepairSP(g, producers, spReq)

	assert.Empty(t, inserted)
	assert.Equal(t, inc, user.In(0))
}
