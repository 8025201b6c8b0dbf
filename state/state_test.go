package state

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/callgate"
	"github.com/wippyai/callgate/errors"
)

func newTestState(t *testing.T, cfg Config) *State {
	t.Helper()
	L, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(L.Close)
	return L
}

func expectViolation(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected protocol violation panic")
		}
		err, ok := r.(*errors.Error)
		if !ok || err.Kind != errors.KindProtocolViolation {
			t.Fatalf("expected protocol violation, got %v", r)
		}
	}()
	fn()
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"tiny stack", Config{MaxStack: 5}},
		{"negative depth", Config{MaxCallDepth: -1}},
		{"pointer bits", Config{PointerBits: 65}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.KindOf(err) != errors.KindInvalidInput {
				t.Fatalf("expected invalid_input, got %v", err)
			}
		})
	}
}

func TestNew_OutOfMemory(t *testing.T) {
	_, err := New(Config{Allocator: callgate.NewLimitedAllocator(100)})
	if errors.KindOf(err) != errors.KindOutOfMemory {
		t.Fatalf("expected out_of_memory, got %v", err)
	}
}

func TestStack_PushAndIndex(t *testing.T) {
	L := newTestState(t, Config{})

	L.PushNumber(1)
	L.PushString("two")
	L.PushBoolean(true)
	L.PushNil()

	if L.Top() != 4 {
		t.Fatalf("expected top 4, got %d", L.Top())
	}
	if n, ok := L.ToNumber(1); !ok || n != 1 {
		t.Fatalf("expected 1, got %v %v", n, ok)
	}
	if s, _ := L.ToString(-3); s != "two" {
		t.Fatalf("expected two, got %q", s)
	}
	if !L.ToBoolean(3) || L.ToBoolean(4) {
		t.Fatal("unexpected truthiness")
	}
	if L.TypeAt(5) != TypeNone {
		t.Fatalf("expected no value, got %s", L.TypeAt(5))
	}

	L.Pop(2)
	if L.Top() != 2 {
		t.Fatalf("expected top 2, got %d", L.Top())
	}
	L.SetTop(4)
	if L.TypeAt(4) != TypeNil {
		t.Fatalf("expected padding nil, got %s", L.TypeAt(4))
	}
}

func TestStack_InsertRemove(t *testing.T) {
	L := newTestState(t, Config{})
	for i := 1; i <= 3; i++ {
		L.PushNumber(float64(i))
	}
	L.PushString("x")
	L.Insert(1)
	if s, _ := L.ToString(1); s != "x" {
		t.Fatalf("expected x at 1, got %q", s)
	}
	L.Remove(1)
	if n, _ := L.ToNumber(1); n != 1 {
		t.Fatalf("expected 1 at 1, got %v", n)
	}
	if L.Top() != 3 {
		t.Fatalf("expected top 3, got %d", L.Top())
	}
}

func TestStack_Reservation(t *testing.T) {
	L := newTestState(t, Config{MaxStack: 40})

	for i := 0; i < MinStack; i++ {
		L.PushNumber(float64(i))
	}
	L.SetTop(0)

	// pushing past the reservation raises
	fn := NewFunction("overflow", func(L *State) int {
		for i := 0; i <= MinStack; i++ {
			L.PushNil()
		}
		return 0
	})
	L.Push(fn)
	err := L.ProtectedCall(0, 0)
	if errors.KindOf(err) != errors.KindStackOverflow {
		t.Fatalf("expected stack_overflow, got %v", err)
	}

	if !L.CheckStack(10) {
		t.Fatal("CheckStack(10) should succeed")
	}
	if L.CheckStack(100) {
		t.Fatal("CheckStack beyond MaxStack should fail")
	}
}

func TestCall_Results(t *testing.T) {
	L := newTestState(t, Config{})

	add := NewFunction("add", func(L *State) int {
		a, _ := L.ToNumber(1)
		b, _ := L.ToNumber(2)
		L.PushNumber(a + b)
		L.PushString("extra")
		return 2
	})

	tests := []struct {
		name     string
		nresults int
		wantTop  int
	}{
		{"multret", MultRet, 2},
		{"one", 1, 1},
		{"padded", 4, 4},
		{"none", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L.SetTop(0)
			L.Push(add)
			L.PushNumber(2)
			L.PushNumber(3)
			L.Call(2, tt.nresults)
			if L.Top() != tt.wantTop {
				t.Fatalf("expected %d results, got %d", tt.wantTop, L.Top())
			}
			if tt.wantTop > 0 {
				if n, _ := L.ToNumber(1); n != 5 {
					t.Fatalf("expected 5, got %v", n)
				}
			}
		})
	}
}

func TestCall_BadResultCount(t *testing.T) {
	L := newTestState(t, Config{})
	L.PushGoFunction("liar", func(L *State) int { return 3 })
	expectViolation(t, func() { L.Call(0, 0) })
}

func TestPCall_Error(t *testing.T) {
	L := newTestState(t, Config{})

	L.PushString("keep")
	L.PushGoFunction("fail", func(L *State) int {
		L.PushString("boom")
		return L.Error()
	})
	L.PushNumber(1)

	status := L.PCall(1, 0)
	if status != StatusErrRun {
		t.Fatalf("expected runtime error, got %s", status)
	}
	if L.Top() != 2 {
		t.Fatalf("expected keep + error, got top %d", L.Top())
	}
	if s, _ := L.ToString(-1); s != "boom" {
		t.Fatalf("expected boom, got %q", s)
	}
	if s, _ := L.ToString(1); s != "keep" {
		t.Fatalf("stack below call was disturbed: %q", s)
	}
}

func TestProtectedCall_CallError(t *testing.T) {
	L := newTestState(t, Config{})

	L.PushGoFunction("fail", func(L *State) int {
		return L.Errorf("bad %d", 7)
	})
	err := L.ProtectedCall(0, 0)

	var ce *CallError
	if !stderrors.As(err, &ce) {
		t.Fatalf("expected *CallError, got %T", err)
	}
	if Format(ce.Value) != "bad 7" {
		t.Fatalf("unexpected error value %q", Format(ce.Value))
	}
	if errors.KindOf(err) != errors.KindRuntime {
		t.Fatalf("expected runtime kind, got %v", errors.KindOf(err))
	}
	if L.Top() != 0 {
		t.Fatalf("expected empty stack, got %d", L.Top())
	}
}

func TestCall_DepthLimit(t *testing.T) {
	L := newTestState(t, Config{MaxCallDepth: 5})

	var recurse GoFunction
	recurse = func(L *State) int {
		L.PushGoFunction("recurse", recurse)
		L.Call(0, 0)
		return 0
	}
	L.PushGoFunction("recurse", recurse)
	err := L.ProtectedCall(0, 0)
	if errors.KindOf(err) != errors.KindStackOverflow {
		t.Fatalf("expected stack_overflow, got %v", err)
	}
}

func TestUpvalues(t *testing.T) {
	L := newTestState(t, Config{})

	L.PushString("captured")
	L.PushNumber(42)
	L.PushClosure("up", func(L *State) int {
		L.PushValue(UpvalueIndex(1))
		L.PushValue(UpvalueIndex(2))
		return 2
	}, 2)

	if L.Top() != 1 {
		t.Fatalf("closure should consume upvalues, top %d", L.Top())
	}
	L.Call(0, MultRet)
	if s, _ := L.ToString(1); s != "captured" {
		t.Fatalf("expected captured, got %q", s)
	}
	if n, _ := L.ToNumber(2); n != 42 {
		t.Fatalf("expected 42, got %v", n)
	}
}

func TestRegistryAndGlobals(t *testing.T) {
	L := newTestState(t, Config{})

	L.PushLightUserdata(0x1234)
	L.PushString("value")
	L.RawSet(RegistryIndex)

	L.PushLightUserdata(0x1234)
	L.RawGet(RegistryIndex)
	if s, _ := L.ToString(-1); s != "value" {
		t.Fatalf("expected value, got %q", s)
	}
	L.Pop(1)

	L.PushNumber(3)
	L.SetGlobal("three")
	L.GetGlobal("three")
	if n, _ := L.ToNumber(-1); n != 3 {
		t.Fatalf("expected 3, got %v", n)
	}
}

func TestPointerBits(t *testing.T) {
	L := newTestState(t, Config{PointerBits: 16})

	if !L.FitsPointer(0xffff) {
		t.Fatal("0xffff should fit in 16 bits")
	}
	if L.FitsPointer(0x10000) {
		t.Fatal("0x10000 should not fit in 16 bits")
	}
	expectViolation(t, func() { L.PushLightUserdata(0x10000) })
}

func TestUserdata_CollectFinalizer(t *testing.T) {
	alloc := callgate.NewLimitedAllocator(0)
	L := newTestState(t, Config{Allocator: alloc})

	calls := 0
	u := L.NewUserdata(64, "payload")
	if !L.SetFinalizer(u, func(*Userdata) { calls++ }) {
		t.Fatal("first SetFinalizer should succeed")
	}
	if L.SetFinalizer(u, func(*Userdata) {}) {
		t.Fatal("finalizer must not be replaceable")
	}

	// reachable from the stack
	if n := L.Collect(); n != 0 {
		t.Fatalf("expected nothing collected, got %d", n)
	}
	if alloc.InUse() != stateOverhead+64 {
		t.Fatalf("expected %d bytes in use, got %d", stateOverhead+64, alloc.InUse())
	}

	L.Pop(1)
	if n := L.Collect(); n != 1 {
		t.Fatalf("expected 1 collected, got %d", n)
	}
	if calls != 1 || !u.Finalized() {
		t.Fatalf("finalizer ran %d times", calls)
	}
	L.Collect()
	if calls != 1 {
		t.Fatalf("finalizer ran again: %d", calls)
	}
	if alloc.InUse() != stateOverhead {
		t.Fatalf("userdata memory not returned, in use %d", alloc.InUse())
	}
}

func TestUserdata_CollectFromFinalizer(t *testing.T) {
	alloc := callgate.NewLimitedAllocator(0)
	L := newTestState(t, Config{Allocator: alloc})

	calls := 0
	var dropped []*Userdata
	for i := 0; i < 3; i++ {
		u := L.NewUserdata(49, i)
		L.SetFinalizer(u, func(*Userdata) {
			calls++
			L.Collect()
		})
		dropped = append(dropped, u)
	}
	L.Pop(3)
	kept := L.NewUserdata(49, "kept")

	L.Collect()
	if calls != 3 {
		t.Fatalf("finalizers ran %d times, want 3", calls)
	}
	for i, u := range dropped {
		if !u.Finalized() {
			t.Errorf("userdata %d not finalized", i)
		}
	}
	if kept.Finalized() || L.LiveUserdata() != 1 {
		t.Fatalf("live userdata = %d, want 1", L.LiveUserdata())
	}
	if got := alloc.InUse(); got != stateOverhead+49 {
		t.Fatalf("expected %d bytes in use, got %d", stateOverhead+49, got)
	}
	if got := alloc.Underflows(); got != 0 {
		t.Fatalf("allocator saw %d unbalanced frees", got)
	}
}

func TestUserdata_ReachableThroughUpvalue(t *testing.T) {
	L := newTestState(t, Config{})

	calls := 0
	u := L.NewUserdata(8, nil)
	L.SetFinalizer(u, func(*Userdata) { calls++ })
	L.PushClosure("holder", func(L *State) int { return 0 }, 1)
	L.SetGlobal("holder")

	L.Collect()
	if calls != 0 {
		t.Fatal("userdata reachable through a global closure was collected")
	}

	L.PushNil()
	L.SetGlobal("holder")
	L.Collect()
	if calls != 1 {
		t.Fatalf("expected one finalizer call, got %d", calls)
	}
}

func TestUserdata_OutOfMemory(t *testing.T) {
	L := newTestState(t, Config{Allocator: &callgate.FailingAllocator{After: 1}})

	L.PushGoFunction("alloc", func(L *State) int {
		L.NewUserdata(16, nil)
		return 1
	})
	status := L.PCall(0, 1)
	if status != StatusErrMem {
		t.Fatalf("expected memory error, got %s", status)
	}
}

func TestClose_FinalizesEverything(t *testing.T) {
	L, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	for i := 0; i < 3; i++ {
		u := L.NewUserdata(1, i)
		L.SetFinalizer(u, func(*Userdata) { calls++ })
	}
	L.Close()
	L.Close()
	if calls != 3 {
		t.Fatalf("expected 3 finalizer calls, got %d", calls)
	}
	if !L.Closed() {
		t.Fatal("state should report closed")
	}
}

func TestFinalizer_ErrorIsContained(t *testing.T) {
	L := newTestState(t, Config{})

	u := L.NewUserdata(1, nil)
	L.SetFinalizer(u, func(*Userdata) { L.Errorf("finalizer failed") })
	L.Pop(1)
	if n := L.Collect(); n != 1 {
		t.Fatalf("expected 1 collected, got %d", n)
	}
}
