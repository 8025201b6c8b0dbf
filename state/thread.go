package state

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/callgate/errors"
)

// coroutine is the scheduling state of a thread created by NewThread. The
// body runs on its own goroutine; control is handed back and forth over
// unbuffered channels so only one side runs at a time.
type coroutine struct {
	in      chan int // resume: number of values passed in, closed on abort
	out     chan coMsg
	started bool
	running bool
	dead    bool
}

type coMsg struct {
	status Status
	err    *unwind
	fatal  any
}

// coAbort unwinds a suspended coroutine when its state is closed.
type coAbort struct{}

// NewThread creates a coroutine sharing L's instance and pushes it.
func (L *State) NewThread() *State {
	if L.g.closed {
		L.violation("NewThread on a closed state")
	}
	L.ensure(1)
	th := newThread(L.g)
	th.co = &coroutine{
		in:  make(chan int),
		out: make(chan coMsg),
	}
	L.g.threads[th] = struct{}{}
	L.stack = append(L.stack, th)
	return th
}

// IsMain reports whether L is the instance's main thread.
func (L *State) IsMain() bool {
	return L.co == nil
}

// CanYield reports whether a native running on L may suspend it.
func (L *State) CanYield() bool {
	return L.co != nil && L.co.running && !L.g.cfg.DisableYield
}

// Resume starts or continues the coroutine L. On the first resume the stack
// holds the body function followed by nargs arguments; later resumes pass
// nargs values that become the results of the pending Yield.
//
// When the coroutine yields, the yielded values are on L's stack and the
// status is StatusYield. When it finishes, its results are on the stack. A
// runtime error leaves the error object on top and is returned as
// *CallError. Fatal errors raised inside the coroutine propagate to the
// caller of Resume.
func (L *State) Resume(nargs int) (Status, error) {
	co := L.co
	switch {
	case co == nil:
		return StatusErrRun, errors.InvalidInput(errors.PhaseRuntime, "cannot resume the main thread")
	case L.g.closed:
		return StatusErrRun, errors.InvalidInput(errors.PhaseRuntime, "cannot resume a thread of a closed state")
	case co.dead:
		return StatusErrRun, errors.InvalidInput(errors.PhaseRuntime, "cannot resume dead coroutine")
	case co.running:
		return StatusErrRun, errors.InvalidInput(errors.PhaseRuntime, "cannot resume non-suspended coroutine")
	}
	if nargs < 0 || nargs > L.Top() {
		L.violation(fmt.Sprintf("resume with %d arguments on frame of %d values", nargs, L.Top()))
	}

	co.running = true
	if !co.started {
		co.started = true
		go L.body(nargs)
	} else {
		co.in <- nargs
	}
	msg := <-co.out
	co.running = false

	if msg.fatal != nil {
		L.finish()
		panic(msg.fatal)
	}
	switch msg.status {
	case StatusYield:
		return StatusYield, nil
	case StatusOK:
		L.finish()
		return StatusOK, nil
	default:
		L.finish()
		return msg.status, &CallError{Status: msg.status, Value: msg.err.value, Cause: msg.err.cause}
	}
}

// Status reports the coroutine state of L as scripts see it.
func (L *State) Status() string {
	switch {
	case L.co == nil, L.co.running:
		return "running"
	case L.co.dead:
		return "dead"
	default:
		return "suspended"
	}
}

func (L *State) finish() {
	L.co.dead = true
	delete(L.g.threads, L)
}

// body runs on the coroutine's goroutine.
func (L *State) body(nargs int) {
	var msg coMsg
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(coAbort); ok {
				msg = coMsg{status: StatusErrRun}
			} else {
				msg = coMsg{fatal: r}
			}
		}
		L.co.out <- msg
	}()

	if u := L.pcall(nargs, MultRet); u != nil {
		L.pushRaw(u.value)
		msg = coMsg{status: u.status, err: u}
		return
	}
	msg = coMsg{status: StatusOK}
}

// Yield suspends the running coroutine, handing the top n values to the
// resumer. It blocks until the next Resume and returns the number of values
// that resume passed in, which are then on top of the stack. Natives yield
// with "return L.Yield(n)".
//
// Yielding outside a coroutine, or when the instance disables yield, is a
// fatal error.
func (L *State) Yield(n int) int {
	if !L.CanYield() {
		what := "attempt to yield from outside a coroutine"
		if L.g.cfg.DisableYield {
			what = "attempt to yield with yield disabled"
		}
		panic(errors.Unsupported(errors.PhaseRuntime, what))
	}
	if n < 0 || n > L.Top() {
		L.violation(fmt.Sprintf("yield of %d values from frame of %d", n, L.Top()))
	}

	// the resumer sees exactly the yielded values
	base := len(L.stack) - n
	L.frames = append(L.frames, frame{base: base, limit: base + n + MinStack})

	L.co.out <- coMsg{status: StatusYield}
	nargs, ok := <-L.co.in
	if !ok {
		panic(coAbort{})
	}

	args := make([]Value, nargs)
	copy(args, L.stack[len(L.stack)-nargs:])
	L.frames = L.frames[:len(L.frames)-1]
	L.truncate(base)
	for _, v := range args {
		L.pushRaw(v)
	}
	return nargs
}

// abort unwinds a suspended coroutine and waits for its goroutine to exit.
func (L *State) abort() {
	co := L.co
	if co == nil || co.dead {
		return
	}
	co.dead = true
	if !co.started || co.running {
		return
	}
	close(co.in)
	<-co.out
	Logger().Debug("coroutine aborted", zap.String("thread", Format(L)))
}
