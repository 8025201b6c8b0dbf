package state

import (
	"go.uber.org/zap"
)

// heap tracks live userdata in slots with a free list.
type heap struct {
	slots []*Userdata
	free  []int
	live  int
}

func (h *heap) add(u *Userdata) {
	if n := len(h.free); n > 0 {
		u.slot = h.free[n-1]
		h.free = h.free[:n-1]
		h.slots[u.slot] = u
	} else {
		u.slot = len(h.slots)
		h.slots = append(h.slots, u)
	}
	h.live++
}

// remove reports false when u is not in the heap.
func (h *heap) remove(u *Userdata) bool {
	if u.slot < 0 || u.slot >= len(h.slots) || h.slots[u.slot] != u {
		return false
	}
	h.slots[u.slot] = nil
	h.free = append(h.free, u.slot)
	u.slot = -1
	h.live--
	return true
}

// NewUserdata allocates size bytes of runtime-owned memory holding v and
// pushes the new userdata. An allocator refusal raises a memory error.
func (L *State) NewUserdata(size int, v any) *Userdata {
	L.ensure(1)
	if !L.g.cfg.Allocator.Alloc(size) {
		L.raiseMemory(size)
	}
	u := &Userdata{Value: v, size: size}
	L.g.heap.add(u)
	L.stack = append(L.stack, u)
	return u
}

// SetFinalizer attaches fn as u's collector hook. A hook cannot be replaced
// once set; SetFinalizer reports false in that case.
func (L *State) SetFinalizer(u *Userdata, fn func(*Userdata)) bool {
	if u.finalizer != nil || u.finalized {
		return false
	}
	u.finalizer = fn
	return true
}

// HasFinalizer reports whether u carries a collector hook.
func (u *Userdata) HasFinalizer() bool {
	return u.finalizer != nil
}

// LiveUserdata returns the number of userdata not yet collected.
func (L *State) LiveUserdata() int {
	return L.g.heap.live
}

// Collect runs a full collection cycle and returns the number of userdata
// reclaimed. Unreachable userdata are finalized exactly once and their
// memory returned to the allocator.
func (L *State) Collect() int {
	g := L.g
	if g.closed {
		return 0
	}

	m := newMarker()
	m.mark(g.registry)
	m.mark(g.globals)
	m.mark(g.main)
	m.mark(L)
	// live coroutines stay rooted until they finish or the state closes
	for th := range g.threads {
		m.mark(th)
	}
	m.drain()

	var dead []*Userdata
	for _, u := range g.heap.slots {
		if u != nil && !m.seen[u] {
			dead = append(dead, u)
		}
	}
	// a finalizer may collect again and reclaim entries of dead first
	n := 0
	for _, u := range dead {
		if L.reclaim(u) {
			n++
		}
	}
	if n > 0 {
		Logger().Debug("collected userdata", zap.Int("count", n), zap.Int("live", g.heap.live))
	}
	return n
}

func (L *State) finalizeAll() int {
	var all []*Userdata
	for _, u := range L.g.heap.slots {
		if u != nil {
			all = append(all, u)
		}
	}
	// newest first, like a stack unwinding its owners
	n := 0
	for i := len(all) - 1; i >= 0; i-- {
		if L.reclaim(all[i]) {
			n++
		}
	}
	return n
}

// reclaim finalizes u and returns its memory. It reports false when u was
// already reclaimed.
func (L *State) reclaim(u *Userdata) bool {
	if !L.g.heap.remove(u) {
		return false
	}
	u.finalized = true
	fn := u.finalizer
	u.finalizer = nil
	if fn != nil {
		L.runFinalizer(fn, u)
	}
	L.g.cfg.Allocator.Free(u.size)
	return true
}

// runFinalizer calls fn, logging structured errors it raises. Other panics
// propagate.
func (L *State) runFinalizer(fn func(*Userdata), u *Userdata) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		uw, ok := r.(*unwind)
		if !ok {
			panic(r)
		}
		Logger().Warn("error in finalizer", zap.String("error", Format(uw.value)))
	}()
	fn(u)
}

// marker walks the value graph from the roots.
type marker struct {
	seen  map[Value]bool
	queue []Value
}

func newMarker() *marker {
	return &marker{seen: make(map[Value]bool)}
}

func (m *marker) mark(v Value) {
	switch v.(type) {
	case *Table, *Function, *Userdata, *State:
	default:
		return
	}
	if m.seen[v] {
		return
	}
	m.seen[v] = true
	m.queue = append(m.queue, v)
}

func (m *marker) drain() {
	for len(m.queue) > 0 {
		v := m.queue[len(m.queue)-1]
		m.queue = m.queue[:len(m.queue)-1]
		switch x := v.(type) {
		case *Table:
			for k, val := range x.hash {
				m.mark(k)
				m.mark(val)
			}
		case *Function:
			for _, up := range x.upvalues {
				m.mark(up)
			}
		case *Userdata:
			if inner, ok := x.Value.(Value); ok {
				m.mark(inner)
			}
		case *State:
			for _, sv := range x.stack {
				m.mark(sv)
			}
			for _, f := range x.frames {
				if f.fn != nil {
					m.mark(f.fn)
				}
			}
		}
	}
}
