package query

import "github.com/Voskan/ecsrt/ecs"

// Option is the result type for an optional query element: Present is
// false, and Value is nil, for any entity missing the component — the row
// itself is still yielded rather than skipped.
type Option[T any] struct {
	Value   *T
	Present bool
}

// fetch resolves one required term's values while an archetype is being
// walked: dense terms bind the archetype's column once and index it by
// row, sparse terms look the entity up per row and report absence so the
// caller can skip the row.
type fetch[T any] struct {
	comp  ecs.Component[T]
	dense bool
	col   []T
}

func newFetch[T any](w *ecs.World, c ecs.Component[T]) fetch[T] {
	return fetch[T]{comp: c, dense: w.ComponentKind(c.Untyped()) == ecs.Dense}
}

func (f *fetch[T]) bind(w *ecs.World, a ecs.ArchetypeId) {
	if !f.dense {
		return
	}
	f.col, _ = ecs.DenseColumn(w, f.comp, a)
}

func (f *fetch[T]) at(w *ecs.World, row int, e ecs.Entity) (*T, bool) {
	if f.dense {
		return &f.col[row], true
	}
	return ecs.GetComponent(w, f.comp, e)
}

// Query1 walks every live entity that has component A (state computed
// once from the terms; matching archetypes are cached incrementally).
type Query1[A any] struct {
	ca      ecs.Component[A]
	Access  Access
	matcher *matcher
}

// New1 builds a Query1 over component a, borrowed with the given access
// kind.
func New1[A any](w *ecs.World, a ecs.Component[A], kind AccessKind) *Query1[A] {
	ta := newTerm(w, a, false, kind)
	q := &Query1[A]{ca: a}
	q.Access.mark(ta.storageResID, kind)
	q.matcher = newMatcher([]term{ta})
	return q
}

// Each invokes fn for every matching (Entity, *A) pair. Dense components
// walk the archetype's column in row order; a sparse A is checked per
// entity, skipping rows that lack it.
func (q *Query1[A]) Each(w *ecs.World, fn func(e ecs.Entity, a *A)) {
	fa := newFetch(w, q.ca)
	for v := range q.matcher.Matching(w).Iter() {
		arch := w.ArchetypeAt(ecs.ArchetypeId(v))
		fa.bind(w, arch.Id())
		for row, e := range arch.Entities {
			a, ok := fa.at(w, row, e)
			if !ok {
				continue
			}
			fn(e, a)
		}
	}
}

// Query1Opt walks every live entity, yielding component A as an Option so
// the row is never skipped for lacking it.
type Query1Opt[A any] struct {
	ca      ecs.Component[A]
	Access  Access
	matcher *matcher
}

// New1Opt builds a Query1Opt over component a. Since an optional term never
// restricts archetype matching, this query matches every archetype in the
// world.
func New1Opt[A any](w *ecs.World, a ecs.Component[A], kind AccessKind) *Query1Opt[A] {
	ta := newTerm(w, a, true, kind)
	q := &Query1Opt[A]{ca: a}
	q.Access.mark(ta.storageResID, kind)
	q.matcher = newMatcher([]term{ta})
	return q
}

func (q *Query1Opt[A]) Each(w *ecs.World, fn func(e ecs.Entity, a Option[A])) {
	for v := range q.matcher.Matching(w).Iter() {
		arch := w.ArchetypeAt(ecs.ArchetypeId(v))
		for _, e := range arch.Entities {
			val, ok := ecs.GetComponent(w, q.ca, e)
			fn(e, Option[A]{Value: val, Present: ok})
		}
	}
}

// Query2 walks every live entity that has both components A and B.
type Query2[A, B any] struct {
	ca      ecs.Component[A]
	cb      ecs.Component[B]
	Access  Access
	matcher *matcher
}

// New2 builds a Query2 over components a and b.
func New2[A, B any](w *ecs.World, a ecs.Component[A], b ecs.Component[B], ka, kb AccessKind) *Query2[A, B] {
	ta := newTerm(w, a, false, ka)
	tb := newTerm(w, b, false, kb)
	q := &Query2[A, B]{ca: a, cb: b}
	q.Access.mark(ta.storageResID, ka)
	q.Access.mark(tb.storageResID, kb)
	q.matcher = newMatcher([]term{ta, tb})
	return q
}

func (q *Query2[A, B]) Each(w *ecs.World, fn func(e ecs.Entity, a *A, b *B)) {
	fa := newFetch(w, q.ca)
	fb := newFetch(w, q.cb)
	for v := range q.matcher.Matching(w).Iter() {
		arch := w.ArchetypeAt(ecs.ArchetypeId(v))
		fa.bind(w, arch.Id())
		fb.bind(w, arch.Id())
		for row, e := range arch.Entities {
			a, ok := fa.at(w, row, e)
			if !ok {
				continue
			}
			b, ok := fb.at(w, row, e)
			if !ok {
				continue
			}
			fn(e, a, b)
		}
	}
}

// Query3 walks every live entity that has components A, B and C.
type Query3[A, B, C any] struct {
	ca      ecs.Component[A]
	cb      ecs.Component[B]
	cc      ecs.Component[C]
	Access  Access
	matcher *matcher
}

// New3 builds a Query3 over components a, b and c.
func New3[A, B, C any](w *ecs.World, a ecs.Component[A], b ecs.Component[B], c ecs.Component[C], ka, kb, kc AccessKind) *Query3[A, B, C] {
	ta := newTerm(w, a, false, ka)
	tb := newTerm(w, b, false, kb)
	tc := newTerm(w, c, false, kc)
	q := &Query3[A, B, C]{ca: a, cb: b, cc: c}
	q.Access.mark(ta.storageResID, ka)
	q.Access.mark(tb.storageResID, kb)
	q.Access.mark(tc.storageResID, kc)
	q.matcher = newMatcher([]term{ta, tb, tc})
	return q
}

func (q *Query3[A, B, C]) Each(w *ecs.World, fn func(e ecs.Entity, a *A, b *B, c *C)) {
	fa := newFetch(w, q.ca)
	fb := newFetch(w, q.cb)
	fc := newFetch(w, q.cc)
	for v := range q.matcher.Matching(w).Iter() {
		arch := w.ArchetypeAt(ecs.ArchetypeId(v))
		fa.bind(w, arch.Id())
		fb.bind(w, arch.Id())
		fc.bind(w, arch.Id())
		for row, e := range arch.Entities {
			a, ok := fa.at(w, row, e)
			if !ok {
				continue
			}
			b, ok := fb.at(w, row, e)
			if !ok {
				continue
			}
			c, ok := fc.at(w, row, e)
			if !ok {
				continue
			}
			fn(e, a, b, c)
		}
	}
}
