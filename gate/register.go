package gate

import (
	"go.uber.org/zap"

	"github.com/wippyai/callgate/errors"
	"github.com/wippyai/callgate/state"
)

// RegisterE pushes a gate closure for d. The stack is unchanged on error.
//
// An invalid descriptor is a caller bug and panics. Errors are out of memory
// or an address range error from the registry.
func RegisterE(L *state.State, d Descriptor) error {
	if err := d.Validate(); err != nil {
		panic(errors.ProtocolViolation(errors.PhaseRegister, err.Error()))
	}

	maker, err := DefaultRegistry.Ensure(L)
	if err != nil {
		return err
	}

	h, _, ok := transfer(L, d)
	if !ok {
		return errors.OutOfMemory(errors.PhaseTransfer, d.size())
	}
	L.Push(maker)
	L.Insert(-2)
	if status := L.PCall(1, 1); status != state.StatusOK {
		msg := state.Format(L.Get(-1))
		L.Pop(1)
		return errors.New(errors.PhaseRegister, errors.KindOutOfMemory).
			Name(d.name).
			Detail("closure creation failed: %s", msg).
			Build()
	}

	Logger().Debug("native registered",
		zap.String("name", h.name),
		zap.Stringer("signature", d.sig),
		zap.Int("budget", h.budget))
	return nil
}

// Register pushes a gate closure for d and reports whether it succeeded.
// It fails only when the runtime cannot allocate the handle or cannot hold
// the registry key.
func Register(L *state.State, d Descriptor) bool {
	if err := RegisterE(L, d); err != nil {
		Logger().Error("register failed", zap.String("name", d.name), zap.Error(err))
		return false
	}
	return true
}

// PushSafeFunction builds a descriptor and registers it.
func PushSafeFunction(L *state.State, fn NativeFunc, ud any, sig Signature, budget int, name string, fin Finalizer) bool {
	return Register(L, NewDescriptor(fn, ud, sig, budget, name, fin))
}
