package tree

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a path does not resolve to a node.
var ErrNotFound = errors.New("tree: path not found")

const separator = "/"

// Lookup returns the first child of parent named name. Duplicate sibling
// names are legal in a description; the one added first always wins.
func (t *Tree) Lookup(parent *Node, name string) (*Node, bool) {
	for _, ch := range parent.children {
		if ch.name == name {
			return ch, true
		}
	}
	return nil, false
}

// Resolve walks p from the root one segment at a time. Empty segments are
// ignored, so "", "/" and "//" all name the root. Matching is exact and
// case-sensitive; no "." or ".." handling is done.
func (t *Tree) Resolve(p string) (*Node, error) {
	cur := t.Root()
	for rest := p; rest != ""; {
		var seg string
		seg, rest, _ = strings.Cut(rest, separator)
		if seg == "" {
			continue
		}
		next, ok := t.Lookup(cur, seg)
		if !ok {
			return nil, ErrNotFound
		}
		cur = next
	}
	return cur, nil
}
