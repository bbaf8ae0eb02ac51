package filesystem

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/treefs/tree"
)

// session is one successful open of a file node.
type session struct {
	fd       int
	node     *tree.Node
	hostPath string
}

// handleTable maps kernel file handles to open sessions. Handle ids are
// handed out in increasing order and wrap around to 1 after max, skipping
// ids that are still open.
type handleTable struct {
	sessions *xsync.Map[uint64, *session]
	last     atomic.Uint64
	max      uint64
}

func newHandleTable(maxFH int) *handleTable {
	if maxFH < 1 {
		maxFH = 1
	}
	return &handleTable{
		sessions: xsync.NewMap[uint64, *session](),
		max:      uint64(maxFH),
	}
}

// add registers s and returns its handle. ok is false when every id in
// [1, max] is taken.
func (h *handleTable) add(s *session) (fh uint64, ok bool) {
	for tries := uint64(0); tries < h.max; {
		cur := h.last.Load()
		next := cur + 1
		if next > h.max {
			next = 1
		}
		if !h.last.CompareAndSwap(cur, next) {
			continue
		}
		if _, loaded := h.sessions.LoadOrStore(next, s); !loaded {
			return next, true
		}
		tries++
	}
	return 0, false
}

func (h *handleTable) get(fh uint64) (*session, bool) {
	return h.sessions.Load(fh)
}

func (h *handleTable) remove(fh uint64) (*session, bool) {
	return h.sessions.LoadAndDelete(fh)
}

func (h *handleTable) len() int {
	return h.sessions.Size()
}

// drain removes and returns every open session.
func (h *handleTable) drain() []*session {
	var out []*session
	h.sessions.Range(func(fh uint64, _ *session) bool {
		if s, ok := h.sessions.LoadAndDelete(fh); ok {
			out = append(out, s)
		}
		return true
	})
	return out
}
