package tree

// NodeID identifies a node within its Tree. IDs are dense, start at RootID
// and never change once assigned, so they double as FUSE node ids.
type NodeID = uint64

// RootID is the id of every tree's root node. It equals fuse.FUSE_ROOT_ID.
const RootID NodeID = 1

// RootName is the sentinel name of the root node. Clients never see it.
const RootName = "root"

// Node is a single entry of the tree: a directory when it has no host path,
// a file backed by a real host file otherwise.
//
// A node owns its children. The parent link is an id into the owning Tree's
// arena and is never used for ownership.
type Node struct {
	id       NodeID
	name     string
	hostPath string
	parent   NodeID // 0 for the root
	children []*Node
}

// ID returns the node's arena id.
func (n *Node) ID() NodeID {
	return n.id
}

// Name returns the node's path segment.
func (n *Node) Name() string {
	return n.name
}

// HostPath returns the backing host file for file nodes.
func (n *Node) HostPath() (string, bool) {
	return n.hostPath, n.hostPath != ""
}

// IsFile reports whether the node is backed by a host file.
func (n *Node) IsFile() bool {
	return n.hostPath != ""
}

// IsDir reports whether the node is a synthetic directory.
func (n *Node) IsDir() bool {
	return n.hostPath == ""
}

// IsRoot reports whether the node is its tree's root.
func (n *Node) IsRoot() bool {
	return n.id == RootID
}

// ParentID returns the id of the parent node, 0 for the root.
func (n *Node) ParentID() NodeID {
	return n.parent
}

// Children returns the node's children in the order they were added.
// The returned slice is shared with the tree and must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns len(n.Children()).
func (n *Node) NumChildren() int {
	return len(n.children)
}
