package ir

import (
	"fmt"

	"github.com/ssagraph/firmcore/mode"
	"github.com/ssagraph/firmcore/regalloc"
)

// Node is the IR atom: an opcode, a mode, an ordered list of operand
// edges, and an opcode-specific attribute payload (spec.md §3, "Node").
//
// A Node's idx is assigned once at creation and is never reused within
// its owning Graph, even after the node is killed — passes may use idx
// as a dense array key for scratch side-tables (see LinkTable) without
// ever observing a stale collision.
type Node struct {
	idx    int
	opcode Opcode
	mode   *mode.Mode
	block  *Node // owning Block node; nil only for Block nodes themselves
	ins    []*Node
	attrs  interface{}

	// Register requests for this node's operands and results, indexed
	// positionally. Populated by instruction selection; nil until then.
	InReqs  []*regalloc.Request
	OutReqs []*regalloc.Request

	// DontSpill forces the next-use oracle to treat this value as
	// imminently needed (distance 0) regardless of its actual next use
	// (spec.md §4.3, "next-use oracle").
	DontSpill bool

	graph *Graph
	uses  []Use // reverse edges; maintained only while graph.useEdgesActive
	dead  bool
}

// Use is one (user, operand position) pair referencing a Node.
type Use struct {
	User *Node
	Pos  int
}

// Idx returns the node's stable numeric identity.
func (n *Node) Idx() int { return n.idx }

// Opcode returns the node's opcode.
func (n *Node) Opcode() Opcode { return n.opcode }

// Mode returns the node's mode.
func (n *Node) Mode() *mode.Mode { return n.mode }

// Block returns the node's owning Block node. Panics if called on a
// Block node itself, which has no owning block (spec.md §3: "a
// containing block reference (except for Block nodes...)").
func (n *Node) Block() *Node {
	if n.opcode == OpBlock {
		panic(fmt.Sprintf("node %d (Block) has no owning block", n.idx))
	}
	return n.block
}

// Graph returns the owning graph.
func (n *Node) Graph() *Graph { return n.graph }

// NIns returns the number of operand edges.
func (n *Node) NIns() int { return len(n.ins) }

// In returns the operand at position pos.
func (n *Node) In(pos int) *Node { return n.ins[pos] }

// Ins returns the operand slice. Callers must not mutate it directly;
// use SetInput so use-edges stay consistent.
func (n *Node) Ins() []*Node { return n.ins }

// Attrs returns the opcode-specific attribute payload.
func (n *Node) Attrs() interface{} { return n.attrs }

// SetAttrs replaces the attribute payload.
func (n *Node) SetAttrs(a interface{}) { n.attrs = a }

// Uses returns a snapshot of the node's use-edge list. Panics if the
// graph's use-edge index is not active (spec.md §4.1 requires it be
// declared live by the caller).
func (n *Node) Uses() []Use {
	if !n.graph.useEdgesActive {
		panic(fmt.Sprintf("node %d: use-edge index is not active", n.idx))
	}
	out := make([]Use, len(n.uses))
	copy(out, n.uses)
	return out
}

// IsDead reports whether Kill has been called on this node.
func (n *Node) IsDead() bool { return n.dead }

func (n *Node) String() string {
	return fmt.Sprintf("%s%d[%s]", n.opcode, n.idx, n.mode)
}

func (n *Node) addUse(user *Node, pos int) {
	if n.graph.useEdgesActive {
		n.uses = append(n.uses, Use{User: user, Pos: pos})
	}
}

func (n *Node) removeUse(user *Node, pos int) {
	if !n.graph.useEdgesActive {
		return
	}
	for i, u := range n.uses {
		if u.User == user && u.Pos == pos {
			n.uses = append(n.uses[:i], n.uses[i+1:]...)
			return
		}
	}
}

// NewNode allocates a node in the graph's arena, assigns it a fresh
// idx, installs the forward operand edges and, if the use-edge index
// is active, the corresponding reverse edges (spec.md §4.1).
func NewNode(g *Graph, block *Node, op Opcode, m *mode.Mode, ins []*Node, attrs interface{}) *Node {
	n := &Node{
		idx:    g.nextIdx,
		opcode: op,
		mode:   m,
		block:  block,
		ins:    append([]*Node(nil), ins...),
		attrs:  attrs,
		graph:  g,
	}
	g.nextIdx++
	g.arena = append(g.arena, n)
	for pos, in := range n.ins {
		if in != nil {
			in.addUse(n, pos)
		}
	}
	return n
}

// SetInput atomically swaps the operand edge at pos to new, updating
// the use-edge index if active (spec.md §4.1).
func SetInput(n *Node, pos int, new *Node) {
	old := n.ins[pos]
	if old == new {
		return
	}
	if old != nil {
		old.removeUse(n, pos)
	}
	n.ins[pos] = new
	if new != nil {
		new.addUse(n, pos)
	}
}

// Exchange rewrites every user of old to reference new at the
// corresponding operand position, then kills old if it ends up
// unreferenced (spec.md §4.1).
//
// The use list is materialized into a snapshot before any edge is
// rewritten so that a user appearing in old's use-edge set is visited
// exactly once, even though rewriting mutates that same set in place.
func Exchange(old, new *Node) {
	if old == new {
		return
	}
	if !old.graph.useEdgesActive {
		panic(fmt.Sprintf("node %d: exchange requires an active use-edge index", old.idx))
	}
	snapshot := old.Uses()
	for _, u := range snapshot {
		SetInput(u.User, u.Pos, new)
	}
	if len(old.uses) == 0 {
		Kill(old)
	}
}

// Kill releases a node's attributes. Precondition: the node has no
// users (when the use-edge index is active) and is not otherwise
// scheduled; violating this is an invariant violation (spec.md §7).
func Kill(n *Node) {
	if n.graph.useEdgesActive && len(n.uses) > 0 {
		panic(fmt.Sprintf("node %d: kill of node with %d remaining uses", n.idx, len(n.uses)))
	}
	for pos, in := range n.ins {
		if in != nil {
			in.removeUse(n, pos)
		}
		n.ins[pos] = nil
	}
	n.attrs = nil
	n.dead = true
}
