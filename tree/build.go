package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/brettbedarf/treefs/internal/util"
)

// Description keys
const (
	keyChildren = "children"
	keyName     = "name"
	keyHostPath = "host_path"
)

var (
	// ErrMalformedDescription means the description root is not an object.
	// Nothing can be served from it.
	ErrMalformedDescription = errors.New("malformed description")

	// Reasons an entry, or part of one, was skipped. See SkippedEntry.
	ErrEntryNotObject   = errors.New("entry is not an object")
	ErrEntryName        = errors.New("entry name is missing or unusable")
	ErrChildrenNotArray = errors.New("children is not an array")
	ErrFileChildren     = errors.New("file entry cannot have children")
)

// SkippedEntry records a part of the description that was dropped while
// building. Skips never abort a build.
type SkippedEntry struct {
	Location string // e.g. children[0].children[3]
	Name     string // entry name if it was readable
	Reason   error
}

func (s SkippedEntry) Error() string {
	if s.Name != "" {
		return fmt.Sprintf("%s (%q): %v", s.Location, s.Name, s.Reason)
	}
	return fmt.Sprintf("%s: %v", s.Location, s.Reason)
}

func (s SkippedEntry) Unwrap() error {
	return s.Reason
}

// Result is the outcome of a successful Build.
type Result struct {
	Tree    *Tree
	Skipped []SkippedEntry
}

// Build turns a decoded description into a frozen Tree.
//
// desc is what encoding/json or yaml.v3 produce when decoding into an
// `any`: a map[string]any root with a "children" array whose elements are
// objects carrying "name", an optional "host_path" and optional nested
// "children". Entries that cannot be used are dropped together with their
// subtree and reported in Result.Skipped; only a root that is not an object
// fails the build, with ErrMalformedDescription.
func Build(desc any) (*Result, error) {
	root, ok := desc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root is %s, not an object", ErrMalformedDescription, describe(desc))
	}

	b := &builder{
		t:      NewTree(),
		logger: util.GetLogger("tree.Build"),
	}
	if raw, ok := root[keyChildren]; ok {
		if children, ok := raw.([]any); ok {
			b.addChildren(b.t.Root(), children, keyChildren)
		} else {
			b.skip(SkippedEntry{Location: keyChildren, Reason: fmt.Errorf("%w: got %s", ErrChildrenNotArray, describe(raw))})
		}
	}
	b.t.Freeze()

	b.logger.Debug().
		Int("nodes", b.t.Len()).
		Int("skipped", len(b.skipped)).
		Msg("Built tree from description")
	return &Result{Tree: b.t, Skipped: b.skipped}, nil
}

type builder struct {
	t       *Tree
	skipped []SkippedEntry
	logger  zerolog.Logger
}

func (b *builder) skip(s SkippedEntry) {
	b.skipped = append(b.skipped, s)
	b.logger.Warn().Str("location", s.Location).Str("name", s.Name).Err(s.Reason).Msg("Skipping description entry")
}

func (b *builder) addChildren(parent *Node, children []any, location string) {
	for i, raw := range children {
		loc := fmt.Sprintf("%s[%d]", location, i)
		ent, err := parseEntry(raw)
		if err != nil {
			b.skip(SkippedEntry{Location: loc, Reason: err})
			continue
		}

		node := b.t.Create(ent.name, parent, ent.hostPath)
		b.t.AddChild(parent, node)

		switch {
		case ent.childrenErr != nil:
			b.skip(SkippedEntry{Location: loc + "." + keyChildren, Name: ent.name, Reason: ent.childrenErr})
		case len(ent.children) == 0:
		case node.IsFile():
			b.skip(SkippedEntry{
				Location: loc + "." + keyChildren,
				Name:     ent.name,
				Reason:   fmt.Errorf("%w: %d dropped", ErrFileChildren, len(ent.children)),
			})
		default:
			b.addChildren(node, ent.children, loc+"."+keyChildren)
		}
	}
}

// entry is one validated description element.
type entry struct {
	name        string
	hostPath    string
	children    []any
	childrenErr error
}

func parseEntry(raw any) (entry, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return entry{}, fmt.Errorf("%w: got %s", ErrEntryNotObject, describe(raw))
	}

	var ent entry
	name, ok := obj[keyName].(string)
	if !ok {
		return entry{}, fmt.Errorf("%w: name is %s", ErrEntryName, describe(obj[keyName]))
	}
	if err := validName(name); err != nil {
		return entry{}, err
	}
	ent.name = name

	// A non-text or empty host_path leaves the entry a directory.
	if hp, ok := obj[keyHostPath].(string); ok {
		ent.hostPath = hp
	}

	if rawChildren, ok := obj[keyChildren]; ok && rawChildren != nil {
		if children, ok := rawChildren.([]any); ok {
			ent.children = children
		} else {
			ent.childrenErr = fmt.Errorf("%w: got %s", ErrChildrenNotArray, describe(rawChildren))
		}
	}
	return ent, nil
}

func validName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrEntryName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is reserved", ErrEntryName, name)
	case strings.Contains(name, separator):
		return fmt.Errorf("%w: %q contains %q", ErrEntryName, name, separator)
	}
	return nil
}

// describe names v's kind in description terms for diagnostics.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "text"
	case bool:
		return "a boolean"
	case float64, int, int64, uint64:
		return "a number"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
