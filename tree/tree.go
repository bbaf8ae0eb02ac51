// Package tree holds the immutable directory hierarchy served by treefs: the
// node arena, the builder that turns a decoded description into a tree, and
// the path resolver.
//
// A Tree is assembled by a single goroutine and then frozen. After Freeze
// it is never modified again, so any number of goroutines may read it
// without locking. Create and AddChild panic on a frozen tree to keep that
// guarantee honest.
package tree

import (
	"fmt"
	"io"
	"strings"
)

// Tree is an arena of nodes indexed by NodeID.
type Tree struct {
	nodes  []*Node // nodes[id-1]
	frozen bool
}

// NewTree returns an unfrozen tree holding only the root.
func NewTree() *Tree {
	t := &Tree{nodes: make([]*Node, 0, 16)}
	t.alloc(RootName, 0, "")
	return t
}

func (t *Tree) alloc(name string, parent NodeID, hostPath string) *Node {
	n := &Node{
		id:       NodeID(len(t.nodes) + 1),
		name:     name,
		hostPath: hostPath,
		parent:   parent,
	}
	t.nodes = append(t.nodes, n)
	return n
}

// Create allocates a detached node under parent. An empty hostPath makes a
// directory node. The node becomes visible once passed to AddChild.
func (t *Tree) Create(name string, parent *Node, hostPath string) *Node {
	t.mustNotBeFrozen()
	if parent == nil {
		panic("tree: only the root may be created without a parent")
	}
	return t.alloc(name, parent.id, hostPath)
}

// AddChild appends child to parent's children. Listing order is the order
// of AddChild calls.
func (t *Tree) AddChild(parent, child *Node) {
	t.mustNotBeFrozen()
	if child.parent != parent.id {
		panic(fmt.Sprintf("tree: node %q was created under node %d, not %d", child.name, child.parent, parent.id))
	}
	parent.children = append(parent.children, child)
}

// Freeze marks the tree read-only. It must happen before the tree is shared
// with other goroutines.
func (t *Tree) Freeze() {
	t.frozen = true
}

// Frozen reports whether Freeze has been called.
func (t *Tree) Frozen() bool {
	return t.frozen
}

func (t *Tree) mustNotBeFrozen() {
	if t.frozen {
		panic("tree: modification of a frozen tree")
	}
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.nodes[0]
}

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) (*Node, bool) {
	if id == 0 || id > NodeID(len(t.nodes)) {
		return nil, false
	}
	return t.nodes[id-1], true
}

// Parent returns n's parent, or nil for the root.
func (t *Tree) Parent(n *Node) *Node {
	p, _ := t.Node(n.parent)
	return p
}

// Len returns the number of nodes including the root. Nodes created but
// never attached are counted too.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Path returns the absolute path of n within the tree, "/" for the root.
func (t *Tree) Path(n *Node) string {
	if n.IsRoot() {
		return "/"
	}
	var segs []string
	for cur := n; cur != nil && !cur.IsRoot(); cur = t.Parent(cur) {
		segs = append(segs, cur.name)
	}
	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segs[i])
	}
	return b.String()
}

// Walk visits n and its descendants depth first in listing order. Returning
// false from fn skips the node's children.
func Walk(n *Node, fn func(n *Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, ch := range n.children {
		walk(ch, depth+1, fn)
	}
}

// Print writes one line per node, indented by depth, in the form
// "name -> host_path". Directories print "-" as their host path.
func (t *Tree) Print(w io.Writer) error {
	var err error
	Walk(t.Root(), func(n *Node, depth int) bool {
		if err != nil {
			return false
		}
		host := "-"
		if p, ok := n.HostPath(); ok {
			host = p
		}
		_, err = fmt.Fprintf(w, "%s%s -> %s\n", strings.Repeat("\t", depth), n.name, host)
		return true
	})
	return err
}
