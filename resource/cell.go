package resource

import "sync/atomic"

// cell implements the interior-mutability discipline described in spec.md
// §4.C: at most one exclusive borrow, or any number of shared borrows, may
// be outstanding at a time. Unlike sync.RWMutex, a contested borrow does
// not block — it fails immediately, the way spec.md §7 describes ("Borrow
// conflict at runtime... fatal") and the way Rust's RefCell (the source
// this was distilled from) reports a panic rather than waiting.
//
// state encodes: 0 = free, -1 = exclusively held, n>0 = n shared holders.
type cell struct {
	state atomic.Int32
	value any
}

func newCell(value any) *cell {
	c := &cell{value: value}
	return c
}

// tryShared attempts to add one shared holder, returning false if an
// exclusive borrow is outstanding.
func (c *cell) tryShared() bool {
	for {
		s := c.state.Load()
		if s < 0 {
			return false
		}
		if c.state.CompareAndSwap(s, s+1) {
			return true
		}
	}
}

func (c *cell) releaseShared() {
	c.state.Add(-1)
}

// tryExclusive attempts to take the single exclusive borrow, returning
// false if any borrow (shared or exclusive) is outstanding.
func (c *cell) tryExclusive() bool {
	return c.state.CompareAndSwap(0, -1)
}

func (c *cell) releaseExclusive() {
	c.state.Store(0)
}
