package gate

import (
	"fmt"

	"github.com/wippyai/callgate/errors"
	"github.com/wippyai/callgate/state"
)

// HeaderSize is the fixed part of a handle's runtime allocation: function,
// user value, type count, stack budget and name. Each tag adds one byte.
const HeaderSize = 48

// Handle is the runtime-owned copy of a Descriptor. It lives inside a
// userdata and is the first upvalue of every gate closure.
type Handle struct {
	fn     NativeFunc
	ud     any
	tags   []Tag
	count  int
	budget int
	name   string
	fin    Finalizer
}

func newHandle(d Descriptor) *Handle {
	h := &Handle{
		fn:     d.fn,
		ud:     d.ud,
		count:  d.sig.Count(),
		budget: d.budget,
		name:   d.name,
		fin:    d.fin,
	}
	if d.sig.checked {
		h.tags = make([]Tag, len(d.sig.tags))
		copy(h.tags, d.sig.tags)
	}
	return h
}

func (h *Handle) Name() string { return h.name }
func (h *Handle) UserData() any { return h.ud }
func (h *Handle) StackBudget() int { return h.budget }

// TypeCount returns the number of checked arguments, or -1.
func (h *Handle) TypeCount() int { return h.count }

// Signature returns the handle's signature.
func (h *Handle) Signature() Signature {
	if h.count < 0 {
		return Unchecked()
	}
	return Sig(h.tags...)
}

// Descriptor rebuilds the descriptor the handle was copied from.
func (h *Handle) Descriptor() Descriptor {
	return NewDescriptor(h.fn, h.ud, h.Signature(), h.budget, h.name, h.fin)
}

// handleOf extracts the handle from a gate upvalue. Anything else means the
// closure was not built by the gate.
func handleOf(L *state.State, idx int) *Handle {
	u := L.ToUserdata(idx)
	if u != nil {
		if h, ok := u.Value.(*Handle); ok {
			return h
		}
	}
	panic(errors.ProtocolViolation(errors.PhaseCall,
		fmt.Sprintf("gate entered without a handle (got %s)", L.TypeAt(idx))))
}

// HandleOf returns the handle bound to a gate closure, or nil if fn is not
// one.
func HandleOf(fn *state.Function) *Handle {
	if fn == nil {
		return nil
	}
	u, ok := fn.Upvalue(1).(*state.Userdata)
	if !ok {
		return nil
	}
	h, _ := u.Value.(*Handle)
	return h
}
