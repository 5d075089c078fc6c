// Package live keeps the console's versioned copies of server entities and
// the per-view subscribers that fold push events into them.
package live

import (
	"reflect"
	"sync"

	"github.com/iliyamo/storefront-live/internal/model"
)

// MergeResult says what Merge did with an incoming copy.
type MergeResult int

const (
	Inserted MergeResult = iota
	Updated
	Unchanged
	Stale
)

func (r MergeResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	case Stale:
		return "stale"
	}
	return "unknown"
}

// Changed reports whether the held value was replaced.
func (r MergeResult) Changed() bool { return r == Inserted || r == Updated }

type entry[T model.Snapshot] struct {
	key string
	v   T
	// non-zero while the value is a local optimistic write
	pending uint64
}

// Store holds snapshots keyed by their stable id, newest insert first.
//
// Merge rules:
//   - unknown key: prepend.
//   - incoming revision newer: replace.
//   - incoming revision older: drop as stale.
//   - equal revision: keep the held value. An optimistic local write
//     therefore survives a push of the state it was based on, and is only
//     replaced by a strictly newer server copy or by its own Commit.
//   - revisions not comparable: last write wins.
//
// Merge is idempotent: replaying the same copy leaves the store unchanged.
type Store[T model.Snapshot] struct {
	mu       sync.RWMutex
	items    map[string]*entry[T]
	order    []string // newest first
	nextTok  uint64
	onChange func(T)
	onRemove func(key string)
}

func NewStore[T model.Snapshot]() *Store[T] {
	return &Store[T]{items: make(map[string]*entry[T])}
}

// OnChange registers fn to be called with every server copy that replaced
// or inserted a value. Optimistic writes are not reported. fn runs outside
// the store lock.
func (s *Store[T]) OnChange(fn func(T)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// OnRemove registers fn to be called with the key of every value dropped by
// Remove. fn runs outside the store lock.
func (s *Store[T]) OnRemove(fn func(key string)) {
	s.mu.Lock()
	s.onRemove = fn
	s.mu.Unlock()
}

// Merge folds a server copy into the store.
func (s *Store[T]) Merge(v T) MergeResult {
	s.mu.Lock()
	res := s.mergeLocked(v)
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil && res.Changed() {
		fn(v)
	}
	return res
}

// MergeAll merges vs in order and returns how many changed the store.
func (s *Store[T]) MergeAll(vs []T) int {
	n := 0
	for _, v := range vs {
		if s.Merge(v).Changed() {
			n++
		}
	}
	return n
}

func (s *Store[T]) mergeLocked(v T) MergeResult {
	key := v.Key()
	if key == "" {
		return Stale
	}
	cur, ok := s.items[key]
	if !ok {
		s.insertLocked(&entry[T]{key: key, v: v})
		return Inserted
	}
	cmp, comparable := v.Revision().Compare(cur.v.Revision())
	switch {
	case comparable && cmp < 0:
		return Stale
	case comparable && cmp == 0:
		return Unchanged
	case !comparable && cur.pending == 0 && reflect.DeepEqual(cur.v, v):
		return Unchanged
	}
	cur.v = v
	cur.pending = 0
	return Updated
}

// Replace swaps v in for the value under v.Key() without a revision check.
// It is for changes the server sends without a revision; the caller carries
// the held revision over so later versioned copies still compare against it.
// Unknown keys are inserted.
func (s *Store[T]) Replace(v T) MergeResult {
	key := v.Key()
	if key == "" {
		return Stale
	}
	s.mu.Lock()
	res := Updated
	e, ok := s.items[key]
	switch {
	case !ok:
		s.insertLocked(&entry[T]{key: key, v: v})
		res = Inserted
	case reflect.DeepEqual(e.v, v):
		res = Unchanged
	default:
		e.v = v
		e.pending = 0
	}
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil && res.Changed() {
		fn(v)
	}
	return res
}

// Rekey moves the entry held under old to key, keeping its position and any
// optimistic write on it. When key is already held, the entry under old is
// dropped instead. It reports whether anything under old was touched.
func (s *Store[T]) Rekey(old, key string) bool {
	if old == key || key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[old]
	if !ok {
		return false
	}
	if _, taken := s.items[key]; taken {
		s.dropLocked(old)
		return true
	}
	s.renameLocked(e, key)
	return true
}

func (s *Store[T]) insertLocked(e *entry[T]) {
	s.items[e.key] = e
	s.order = append([]string{e.key}, s.order...)
}

func (s *Store[T]) dropLocked(key string) {
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store[T]) renameLocked(e *entry[T], key string) {
	delete(s.items, e.key)
	for i, k := range s.order {
		if k == e.key {
			s.order[i] = key
			break
		}
	}
	e.key = key
	s.items[key] = e
}

// Get returns the value held under key.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.v, true
}

// Find returns the first value, newest first, for which match is true.
func (s *Store[T]) Find(match func(T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.order {
		if v := s.items[k].v; match(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Patch rewrites the held value with fn without a revision check. It is for
// fields the server does not version, such as presence.
func (s *Store[T]) Patch(key string, fn func(T) T) (T, bool) {
	s.mu.Lock()
	e, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		var zero T
		return zero, false
	}
	e.v = fn(e.v)
	v, pending := e.v, e.pending
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil && pending == 0 {
		cb(v)
	}
	return v, true
}

// Remove drops key, for entities deleted on the server.
func (s *Store[T]) Remove(key string) bool {
	s.mu.Lock()
	if _, ok := s.items[key]; !ok {
		s.mu.Unlock()
		return false
	}
	s.dropLocked(key)
	fn := s.onRemove
	s.mu.Unlock()
	if fn != nil {
		fn(key)
	}
	return true
}

// Snapshot returns the held values, newest insert first.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k].v)
	}
	return out
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Pending is an optimistic write waiting for the server's answer. It follows
// its entry across a Rekey.
type Pending[T model.Snapshot] struct {
	s       *Store[T]
	e       *entry[T]
	prior   T
	existed bool
	tok     uint64
	once    sync.Once
}

// Optimistic applies mutate to the value under key (or to the zero value
// when absent) and marks it as a local write.
func (s *Store[T]) Optimistic(key string, mutate func(T) T) *Pending[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTok++
	p := &Pending[T]{s: s, tok: s.nextTok}
	if e, ok := s.items[key]; ok {
		p.e, p.prior, p.existed = e, e.v, true
		e.v = mutate(e.v)
		e.pending = p.tok
		return p
	}
	var zero T
	p.e = &entry[T]{key: key, v: mutate(zero), pending: p.tok}
	s.insertLocked(p.e)
	return p
}

// held reports whether the optimistic write is still the value in the store.
func (p *Pending[T]) held() bool {
	return p.s.items[p.e.key] == p.e && p.e.pending == p.tok
}

// Commit replaces the optimistic value with the server's copy. A copy that
// carries a different key (the server id for an entry held under its
// number) moves the entry to that key. If a newer push already replaced the
// write, server is merged under the normal rules.
func (p *Pending[T]) Commit(server T) MergeResult {
	res := Unchanged
	p.once.Do(func() {
		s := p.s
		s.mu.Lock()
		if !p.held() {
			res = s.mergeLocked(server)
		} else {
			e := p.e
			e.pending = 0
			key := server.Key()
			_, taken := s.items[key]
			switch {
			case key == "":
				res = Stale
			case key != e.key && taken:
				s.dropLocked(e.key)
				res = s.mergeLocked(server)
			default:
				if key != e.key {
					s.renameLocked(e, key)
				}
				e.v = server
				res = Updated
			}
		}
		fn := s.onChange
		s.mu.Unlock()
		if fn != nil && res.Changed() {
			fn(server)
		}
	})
	return res
}

// Rollback restores the value held before the optimistic write. It does
// nothing when a server copy has replaced the write in the meantime.
func (p *Pending[T]) Rollback() bool {
	restored := false
	p.once.Do(func() {
		s := p.s
		s.mu.Lock()
		defer s.mu.Unlock()
		if !p.held() {
			return
		}
		restored = true
		if p.existed {
			p.e.v = p.prior
			p.e.pending = 0
			return
		}
		s.dropLocked(p.e.key)
	})
	return restored
}
