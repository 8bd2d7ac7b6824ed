package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssagraph/firmcore/ir"
	"github.com/ssagraph/firmcore/mode"
)

func TestNewNodeAssignsStableIdx(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock(g, []*ir.Node{g.StartBlock()})
	c1 := ir.NewConst(b, mode.Int32, 1)
	c2 := ir.NewConst(b, mode.Int32, 2)
	assert.NotEqual(t, c1.Idx(), c2.Idx())
	assert.Equal(t, c1, g.Node(c1.Idx()))
}

func TestSetInputMaintainsUseEdges(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock(g, []*ir.Node{g.StartBlock()})
	c1 := ir.NewConst(b, mode.Int32, 1)
	c2 := ir.NewConst(b, mode.Int32, 2)
	add := ir.NewNode(g, b, "Add", mode.Int32, []*ir.Node{c1, c1}, nil)

	require.Len(t, c1.Uses(), 2)
	assert.Empty(t, c2.Uses())

	ir.SetInput(add, 1, c2)
	assert.Len(t, c1.Uses(), 1)
	assert.Len(t, c2.Uses(), 1)
}

func TestExchangeRewritesAllUsersExactlyOnce(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock(g, []*ir.Node{g.StartBlock()})
	c1 := ir.NewConst(b, mode.Int32, 1)
	c2 := ir.NewConst(b, mode.Int32, 2)
	add1 := ir.NewNode(g, b, "Add", mode.Int32, []*ir.Node{c1, c1}, nil)
	add2 := ir.NewNode(g, b, "Add", mode.Int32, []*ir.Node{c1, c2}, nil)

	ir.Exchange(c1, c2)

	assert.Empty(t, c1.Uses())
	assert.Equal(t, c2, add1.In(0))
	assert.Equal(t, c2, add1.In(1))
	assert.Equal(t, c2, add2.In(0))
	assert.True(t, c1.IsDead())
}

func TestKeepAliveCountsAsAUserUntilRemoved(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock(g, []*ir.Node{g.StartBlock()})
	c1 := ir.NewConst(b, mode.Int32, 1)

	g.AddKeepAlive(c1)

	assert.Len(t, c1.Uses(), 1)
	assert.Contains(t, g.KeepAlive(), c1)
	assert.Panics(t, func() { ir.Kill(c1) })

	g.RemoveKeepAlive(c1)

	assert.Empty(t, c1.Uses())
	assert.NotContains(t, g.KeepAlive(), c1)
	assert.NotPanics(t, func() { ir.Kill(c1) })
}

func TestKillPanicsWithRemainingUses(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock(g, []*ir.Node{g.StartBlock()})
	c1 := ir.NewConst(b, mode.Int32, 1)
	ir.NewNode(g, b, "Add", mode.Int32, []*ir.Node{c1, c1}, nil)

	assert.Panics(t, func() { ir.Kill(c1) })
}

func TestPhiArityMatchesPredecessors(t *testing.T) {
	g := ir.NewGraph("f")
	p1 := ir.NewBlock(g, []*ir.Node{g.StartBlock()})
	p2 := ir.NewBlock(g, []*ir.Node{g.StartBlock()})
	join := ir.NewBlock(g, []*ir.Node{p1, p2})

	c1 := ir.NewConst(p1, mode.Int32, 1)
	c2 := ir.NewConst(p2, mode.Int32, 2)
	phi := ir.NewPhi(join, mode.Int32, []*ir.Node{c1, c2}, false)

	assert.Equal(t, join.NPreds(), phi.NIns())
	assert.NotPanics(t, func() { ir.CheckArity(phi) })

	assert.Panics(t, func() {
		ir.NewPhi(join, mode.Int32, []*ir.Node{c1}, false)
	})
}

func TestBlockSuccsDerivedFromUseEdges(t *testing.T) {
	g := ir.NewGraph("f")
	b1 := ir.NewBlock(g, []*ir.Node{g.StartBlock()})
	b2 := ir.NewBlock(g, []*ir.Node{b1})
	b3 := ir.NewBlock(g, []*ir.Node{b1})

	succs := b1.Succs()
	assert.ElementsMatch(t, []*ir.Node{b2, b3}, succs)
}

func TestLinkTableResourceDiscipline(t *testing.T) {
	g := ir.NewGraph("f")
	lt := g.ReserveLink()
	assert.True(t, g.IsReserved(ir.ResourceLink))
	assert.Panics(t, func() { g.ReserveLink() })
	g.ReleaseLink(lt)
	assert.False(t, g.IsReserved(ir.ResourceLink))
}

func TestBlockVisitedGenerationInvalidatesPriorMarks(t *testing.T) {
	g := ir.NewGraph("f")
	b := ir.NewBlock(g, []*ir.Node{g.StartBlock()})

	g.Reserve(ir.ResourceBlockVisited)
	g.MarkBlockVisited(b)
	assert.True(t, g.BlockVisited(b))
	g.Release(ir.ResourceBlockVisited)

	g.Reserve(ir.ResourceBlockVisited)
	assert.False(t, g.BlockVisited(b))
	g.Release(ir.ResourceBlockVisited)
}
