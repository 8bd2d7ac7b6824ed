package ir

import (
	"fmt"

	"github.com/ssagraph/firmcore/mode"
)

// Resource names a shared per-graph resource acquired in a scoped
// fashion (spec.md §5). At most one reservation of a given Resource may
// be outstanding at a time.
type Resource int

const (
	ResourceLink Resource = iota
	ResourceBlockVisited
)

// Graph owns the node arena for one procedure: its entry and end
// blocks, its frame type, and the scoped resources (link slot,
// block-visited counter, use-edge index) passes reserve while they run
// (spec.md §3 "Graph", §5).
type Graph struct {
	Name string

	arena   []*Node
	nextIdx int

	start *Node // the Start-block node
	end   *Node // the End-block node

	Frame *FrameType

	useEdgesActive bool

	reserved map[Resource]bool

	// blockVisited and visitGen implement the block-visited counter:
	// acquiring the resource bumps visitGen, which implicitly
	// invalidates every previous mark (spec.md §4.5, §9).
	blockVisited map[int]int
	visitGen     int

	// keepAlive is the End block's keep-alive set (spec.md §3
	// "Lifecycle": a node is retired by being unlinked from all users
	// and removed from the end block's keep-alive set). A node with no
	// ordinary users but a keep-alive entry is still reachable and must
	// not be killed.
	keepAlive []*Node
}

// KeepAlivePos is the sentinel Use.Pos recorded for a keep-alive edge,
// distinguishing it from an ordinary operand position (which is always
// >= 0).
const KeepAlivePos = -1

// NewGraph creates an empty graph with a fresh Start/End block pair.
// The use-edge index is active from construction; callers that don't
// need it may ignore Uses()/Exchange().
func NewGraph(name string) *Graph {
	g := &Graph{
		Name:           name,
		useEdgesActive: true,
		reserved:       make(map[Resource]bool),
		blockVisited:   make(map[int]int),
		Frame:          NewFrameType(),
	}
	start := NewNode(g, nil, OpBlock, mode.Block, nil, &BlockAttrs{})
	end := NewNode(g, nil, OpBlock, mode.Block, nil, &BlockAttrs{})
	g.start = start
	g.end = end
	return g
}

// StartBlock returns the entry block node.
func (g *Graph) StartBlock() *Node { return g.start }

// EndBlock returns the end block node.
func (g *Graph) EndBlock() *Node { return g.end }

// AddKeepAlive adds n to the End block's keep-alive set, if not
// already present, so n counts as having a user even when nothing in
// the ordinary operand graph reads its result (e.g. a stack-pointer
// producer in a block with no further instruction that reads SP).
// Grounded on libFirm's be_fix_stack_nodes/remove_End_n treatment of
// SP producers kept alive only via End.
func (g *Graph) AddKeepAlive(n *Node) {
	for _, k := range g.keepAlive {
		if k == n {
			return
		}
	}
	g.keepAlive = append(g.keepAlive, n)
	n.addUse(g.end, KeepAlivePos)
}

// RemoveKeepAlive drops n from the End block's keep-alive set, if
// present (spec.md §4.5 step 4: "prune keep-alive edges at the end
// block that referenced dead SP producers").
func (g *Graph) RemoveKeepAlive(n *Node) {
	for i, k := range g.keepAlive {
		if k == n {
			g.keepAlive = append(g.keepAlive[:i], g.keepAlive[i+1:]...)
			n.removeUse(g.end, KeepAlivePos)
			return
		}
	}
}

// KeepAlive returns a snapshot of the End block's current keep-alive
// set.
func (g *Graph) KeepAlive() []*Node {
	out := make([]*Node, len(g.keepAlive))
	copy(out, g.keepAlive)
	return out
}

// NumNodes returns the number of nodes ever allocated in this graph's
// arena, including killed ones; idx values range over [0, NumNodes()).
func (g *Graph) NumNodes() int { return len(g.arena) }

// Node looks up a node by its stable idx.
func (g *Graph) Node(idx int) *Node { return g.arena[idx] }

// Nodes returns every node ever allocated, including killed ones, in
// idx order. Callers that care should check IsDead.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.arena))
	copy(out, g.arena)
	return out
}

// SetUseEdgesActive toggles the use-edge index. Disabling it drops all
// existing reverse edges; re-enabling starts empty — callers needing a
// consistent index after toggling should rebuild it (see RebuildUses).
func (g *Graph) SetUseEdgesActive(active bool) {
	g.useEdgesActive = active
	if !active {
		for _, n := range g.arena {
			n.uses = nil
		}
	}
}

// UseEdgesActive reports whether the use-edge index is currently
// maintained.
func (g *Graph) UseEdgesActive() bool { return g.useEdgesActive }

// RebuildUses recomputes the use-edge index from forward edges. Useful
// after a bulk mutation performed with the index disabled.
func (g *Graph) RebuildUses() {
	for _, n := range g.arena {
		n.uses = nil
	}
	g.useEdgesActive = true
	for _, n := range g.arena {
		for pos, in := range n.ins {
			if in != nil {
				in.uses = append(in.uses, Use{User: n, Pos: pos})
			}
		}
	}
}

// Reserve acquires a scoped resource. It panics if the resource is
// already reserved — overlapping reservations of the same resource
// within one graph are forbidden (spec.md §4.1, §5).
func (g *Graph) Reserve(r Resource) {
	if g.reserved[r] {
		panic(fmt.Sprintf("graph %q: resource %v already reserved", g.Name, r))
	}
	g.reserved[r] = true
	if r == ResourceBlockVisited {
		g.visitGen++
	}
}

// Release releases a previously reserved resource. It panics if the
// resource was not reserved — every reservation must be matched by a
// release on every exit path (spec.md §5).
func (g *Graph) Release(r Resource) {
	if !g.reserved[r] {
		panic(fmt.Sprintf("graph %q: resource %v not reserved", g.Name, r))
	}
	delete(g.reserved, r)
}

// IsReserved reports whether r is currently held.
func (g *Graph) IsReserved(r Resource) bool { return g.reserved[r] }

// MarkBlockVisited marks block as visited in the current generation.
// Requires ResourceBlockVisited to be reserved.
func (g *Graph) MarkBlockVisited(block *Node) {
	if !g.reserved[ResourceBlockVisited] {
		panic("MarkBlockVisited: ResourceBlockVisited is not reserved")
	}
	g.blockVisited[block.idx] = g.visitGen
}

// BlockVisited reports whether block was marked visited in the current
// generation. Requires ResourceBlockVisited to be reserved.
func (g *Graph) BlockVisited(block *Node) bool {
	if !g.reserved[ResourceBlockVisited] {
		panic("BlockVisited: ResourceBlockVisited is not reserved")
	}
	return g.blockVisited[block.idx] == g.visitGen
}

// LinkTable is the side-table a pass reserves in place of a raw
// scratch pointer on every node (spec.md §9, "Link-slot scratch
// field"). It is dense, indexed by Node.Idx, and allocated fresh by
// Graph.ReserveLink.
type LinkTable struct {
	g     *Graph
	slots []interface{}
}

// ReserveLink reserves the link slot for the duration of a pass and
// returns a fresh, all-nil side table sized to the graph.
func (g *Graph) ReserveLink() *LinkTable {
	g.Reserve(ResourceLink)
	return &LinkTable{g: g, slots: make([]interface{}, len(g.arena))}
}

// ReleaseLink releases the link-slot resource. The LinkTable itself
// becomes unusable; passes should discard their reference to it.
func (g *Graph) ReleaseLink(lt *LinkTable) {
	g.Release(ResourceLink)
	lt.slots = nil
}

// Get returns the scratch value stored for n, or nil if never set.
func (lt *LinkTable) Get(n *Node) interface{} {
	if n.idx >= len(lt.slots) {
		return nil
	}
	return lt.slots[n.idx]
}

// Set stores a scratch value for n.
func (lt *LinkTable) Set(n *Node, v interface{}) {
	if n.idx >= len(lt.slots) {
		grown := make([]interface{}, n.idx+1)
		copy(grown, lt.slots)
		lt.slots = grown
	}
	lt.slots[n.idx] = v
}

// Clear resets every slot to nil (spec.md §4.1, "clear_links").
func (lt *LinkTable) Clear() {
	for i := range lt.slots {
		lt.slots[i] = nil
	}
}
