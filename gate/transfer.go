package gate

import (
	"go.uber.org/zap"

	"github.com/wippyai/callgate/errors"
	"github.com/wippyai/callgate/state"
)

// transferChannel carries one descriptor into the runtime. The routine
// fulfils the promise at most once; the channel is dead after the
// protected call returns.
type transferChannel struct {
	payload   Descriptor
	promise   *state.Userdata
	handle    *Handle
	delivered bool
	closed    bool
}

func (c *transferChannel) deliver(u *state.Userdata, h *Handle) {
	if c.closed || c.delivered {
		panic(errors.ProtocolViolation(errors.PhaseTransfer, "descriptor delivered twice for "+c.payload.name))
	}
	c.promise = u
	c.handle = h
	c.delivered = true
}

// routine runs inside the runtime. It allocates the handle through the
// runtime allocator, which raises a memory error on refusal, so either the
// promise is fulfilled or nothing was allocated.
func (c *transferChannel) routine(L *state.State) int {
	d := c.payload
	h := newHandle(d)
	u := L.NewUserdata(d.size(), h)
	if d.fin != nil {
		fin, fn, ud := d.fin, d.fn, d.ud
		L.SetFinalizer(u, func(*state.Userdata) {
			fin(fn, ud)
		})
	}
	c.deliver(u, h)
	return 1
}

// transfer copies d into a runtime-owned handle and leaves its userdata on
// top of the stack. It reports false, with the stack unchanged, when the
// runtime could not allocate the handle.
func transfer(L *state.State, d Descriptor) (*Handle, *state.Userdata, bool) {
	if !L.CheckStack(2) {
		return nil, nil, false
	}
	ch := &transferChannel{payload: d}
	L.PushGoFunction("callgate.transfer", ch.routine)
	status := L.PCall(0, 1)
	ch.closed = true

	if status != state.StatusOK {
		Logger().Debug("descriptor transfer failed",
			zap.String("name", d.name),
			zap.Stringer("status", status),
			zap.String("error", state.Format(L.Get(-1))))
		L.Pop(1)
		return nil, nil, false
	}
	if !ch.delivered || L.ToUserdata(-1) != ch.promise {
		panic(errors.ProtocolViolation(errors.PhaseTransfer, "transfer returned without its promised handle"))
	}
	return ch.handle, ch.promise, true
}
