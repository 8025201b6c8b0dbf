package gate

import (
	"fmt"
	"reflect"
	"runtime"

	"go.uber.org/zap"

	"github.com/wippyai/callgate/errors"
	"github.com/wippyai/callgate/state"
)

// PushClosure pops n values and pushes a gate closure of fn capturing them.
// fn reads its captured values with UpvalueIndex. The closure is unchecked
// and has no stack budget.
//
// It returns the status of the protected call that built the closure. On
// failure the error object is on top of the stack instead.
func PushClosure(L *state.State, fn NativeFunc, fin Finalizer, n int) state.Status {
	if fn == nil {
		panic(errors.ProtocolViolation(errors.PhaseRegister, "nil native function"))
	}
	if n <= 0 || L.Top() < n {
		panic(errors.ProtocolViolation(errors.PhaseRegister,
			fmt.Sprintf("closure needs %d values, frame has %d", n, L.Top())))
	}

	maker, err := DefaultRegistry.Ensure(L)
	if err != nil {
		Logger().Error("gate unavailable", zap.Error(err))
		L.Pop(n)
		L.PushString(err.Error())
		if errors.KindOf(err) == errors.KindOutOfMemory {
			return state.StatusErrMem
		}
		return state.StatusErrRun
	}

	d := NewDescriptor(fn, nil, Unchecked(), 0, funcName(fn), fin)
	if _, _, ok := transfer(L, d); !ok {
		L.Pop(n)
		L.PushString("not enough memory")
		return state.StatusErrMem
	}

	// maker, handle, v1..vn
	L.Insert(-(n + 1))
	L.Push(maker)
	L.Insert(-(n + 2))
	return L.PCall(n+1, 1)
}

func funcName(fn NativeFunc) string {
	if f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()); f != nil {
		return f.Name()
	}
	return "?"
}
