package state

import (
	"fmt"

	"github.com/wippyai/callgate/errors"
)

// MultRet asks Call and PCall to keep every result.
const MultRet = -1

// Status is the outcome of a protected call or a resume.
type Status int

const (
	StatusOK Status = iota
	StatusYield
	StatusErrRun
	StatusErrMem
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusYield:
		return "yield"
	case StatusErrRun:
		return "runtime error"
	case StatusErrMem:
		return "memory error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// unwind is the panic payload of a structured runtime error.
type unwind struct {
	value  Value
	cause  *errors.Error
	status Status
}

// CallError is returned by ProtectedCall and Resume when the callee raised an
// error. Value is the error object as scripts see it; Cause carries the
// structured error when the runtime or the call gate raised it.
type CallError struct {
	Value  Value
	Cause  *errors.Error
	Status Status
}

func (e *CallError) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%s: %s", e.Status, Format(e.Value))
}

func (e *CallError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Raise unwinds to the nearest protected call with v as the error object.
func (L *State) Raise(v Value, cause *errors.Error) {
	if v == nil {
		v = Nil
	}
	panic(&unwind{status: StatusErrRun, value: v, cause: cause})
}

// Error raises the value on top of the stack. It never returns; the int
// result lets natives write "return L.Error()".
func (L *State) Error() int {
	v := L.Get(-1)
	L.Raise(v, nil)
	return 0
}

// Errorf raises a formatted message.
func (L *State) Errorf(format string, args ...any) int {
	msg := fmt.Sprintf(format, args...)
	L.Raise(String(msg), errors.New(errors.PhaseRuntime, errors.KindRuntime).Detail(msg).Build())
	return 0
}

// RaiseError raises a structured error; the error object is its detail text.
func (L *State) RaiseError(err *errors.Error) int {
	msg := err.Detail
	if msg == "" {
		msg = err.Error()
	}
	L.Raise(String(msg), err)
	return 0
}

func (L *State) raiseMemory(size int) {
	panic(&unwind{
		status: StatusErrMem,
		value:  String("not enough memory"),
		cause:  errors.OutOfMemory(errors.PhaseRuntime, size),
	})
}

// Call calls the function below the top nargs values. Results replace the
// function and its arguments; nresults of MultRet keeps them all.
func (L *State) Call(nargs, nresults int) {
	fidx := len(L.stack) - nargs - 1
	if nargs < 0 || fidx < L.frame().base {
		L.violation(fmt.Sprintf("call with %d arguments on frame of %d values", nargs, L.Top()))
	}
	fn, ok := L.stack[fidx].(*Function)
	if !ok {
		L.Errorf("attempt to call a %s value", TypeOf(L.stack[fidx]))
	}
	if len(L.frames) >= L.g.cfg.MaxCallDepth {
		L.Raise(String("stack overflow"), errors.New(errors.PhaseRuntime, errors.KindStackOverflow).
			Detail("call depth exceeds %d", L.g.cfg.MaxCallDepth).
			Build())
	}
	base := fidx + 1
	limit := base + nargs + MinStack
	if limit > L.g.cfg.MaxStack {
		L.Raise(String("stack overflow"), errors.New(errors.PhaseRuntime, errors.KindStackOverflow).
			Detail("frame needs %d slots, max %d", limit, L.g.cfg.MaxStack).
			Build())
	}

	L.frames = append(L.frames, frame{fn: fn, base: base, limit: limit})
	n := fn.Fn(L)
	if n < 0 || n > len(L.stack)-base {
		L.violation(fmt.Sprintf("function %q returned %d results with %d values in frame", fn.Name, n, len(L.stack)-base))
	}
	L.frames = L.frames[:len(L.frames)-1]

	copy(L.stack[fidx:], L.stack[len(L.stack)-n:])
	L.truncate(fidx + n)
	if nresults >= 0 {
		for n < nresults {
			L.pushRaw(Nil)
			n++
		}
		L.truncate(fidx + nresults)
	}
}

// pcall runs Call under protection. On error the stack is restored to below
// the function and the returned unwind describes the error.
func (L *State) pcall(nargs, nresults int) (u *unwind) {
	fidx := len(L.stack) - nargs - 1
	depth := len(L.frames)
	limit := L.frame().limit

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		uw, ok := r.(*unwind)
		if !ok {
			panic(r)
		}
		L.frames = L.frames[:depth]
		L.frame().limit = limit
		if fidx < len(L.stack) {
			L.truncate(fidx)
		}
		u = uw
	}()

	L.Call(nargs, nresults)
	return nil
}

// PCall calls in protected mode. On error the error object is pushed and a
// non-OK status returned.
func (L *State) PCall(nargs, nresults int) Status {
	u := L.pcall(nargs, nresults)
	if u == nil {
		return StatusOK
	}
	L.pushRaw(u.value)
	return u.status
}

// ProtectedCall calls in protected mode and reports errors as *CallError.
// Nothing is left on the stack on error.
func (L *State) ProtectedCall(nargs, nresults int) error {
	u := L.pcall(nargs, nresults)
	if u == nil {
		return nil
	}
	return &CallError{Status: u.status, Value: u.value, Cause: u.cause}
}
