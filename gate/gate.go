package gate

import (
	"go.uber.org/zap"

	"github.com/wippyai/callgate/errors"
	"github.com/wippyai/callgate/state"
)

// UpvalueIndex returns the pseudo-index of a gate closure's i-th captured
// value (1-based). Upvalue 1 of the underlying closure holds the handle, so
// natives never see it.
func UpvalueIndex(i int) int {
	return state.UpvalueIndex(i + 1)
}

// UserData returns the user value of the running gate native.
func UserData(L *state.State) any {
	return handleOf(L, state.UpvalueIndex(1)).ud
}

// callGate is the trampoline every gate closure runs.
func callGate(L *state.State) int {
	h := handleOf(L, state.UpvalueIndex(1))
	log := Logger()

	if h.count > 0 {
		for i, tag := range h.tags {
			if tag == Any {
				continue
			}
			if got := L.TypeAt(i + 1); !tag.Matches(got) {
				log.Debug("argument type mismatch",
					zap.String("name", h.name),
					zap.Int("position", i+1),
					zap.Stringer("expected", tag),
					zap.Stringer("got", got))
				return L.RaiseError(errors.TypeMismatch(h.name, i+1, tag.String(), got.String()))
			}
		}
	}

	if !L.CheckStack(h.budget) {
		return L.RaiseError(errors.StackBudgetExceeded(h.name, h.budget))
	}

	r := h.fn(L)
	res := Decode(r)
	if ce := log.Check(zap.DebugLevel, "native returned"); ce != nil {
		ce.Write(zap.String("name", h.name), zap.Int("code", r), zap.Stringer("action", res.Action))
	}

	switch res.Action {
	case ActionReturn:
		return res.Count
	case ActionError:
		v := L.Get(-1)
		if v == nil {
			v = state.Nil
		}
		L.Raise(v, errors.User(h.name, state.Format(v)))
		return 0
	default:
		L.Pop(res.Count)
		return L.Yield(L.Top())
	}
}
