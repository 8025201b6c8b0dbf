package state

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/callgate/errors"
)

// Pseudo-indices addressing values that do not live on the stack.
const (
	RegistryIndex = -10000
	GlobalsIndex  = -10001
)

// UpvalueIndex returns the pseudo-index of the running function's i-th
// captured value (1-based).
func UpvalueIndex(i int) int {
	return GlobalsIndex - i
}

// global is the part of an instance shared by all of its threads.
type global struct {
	cfg      Config
	registry *Table
	globals  *Table
	main     *State
	heap     heap
	threads  map[*State]struct{}
	closed   bool
}

// frame is one active call.
type frame struct {
	fn    *Function
	base  int // stack index of the first argument
	limit int // reserved top, exclusive
}

// State is a thread of a runtime instance. The State returned by New is the
// main thread; NewThread creates coroutines sharing the same registry,
// globals and heap.
type State struct {
	g      *global
	co     *coroutine
	stack  []Value
	frames []frame
}

func (*State) Type() Type { return TypeThread }

// New creates a runtime instance and returns its main thread.
func New(cfg Config) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	if !cfg.Allocator.Alloc(stateOverhead) {
		return nil, errors.OutOfMemory(errors.PhaseRuntime, stateOverhead)
	}

	g := &global{
		cfg:      cfg,
		registry: NewTable(),
		globals:  NewTable(),
		threads:  make(map[*State]struct{}),
	}
	L := newThread(g)
	g.main = L

	Logger().Debug("state created",
		zap.Int("max_stack", cfg.MaxStack),
		zap.Uint8("pointer_bits", cfg.PointerBits),
		zap.Bool("yield", !cfg.DisableYield))
	return L, nil
}

func newThread(g *global) *State {
	L := &State{
		g:     g,
		stack: make([]Value, 0, MinStack),
	}
	L.frames = append(L.frames, frame{base: 0, limit: MinStack})
	return L
}

// Main returns the main thread of the instance.
func (L *State) Main() *State {
	return L.g.main
}

// Config returns the effective configuration of the instance.
func (L *State) Config() Config {
	return L.g.cfg
}

// Closed reports whether the instance has been torn down.
func (L *State) Closed() bool {
	return L.g.closed
}

// Registry returns the registry table.
func (L *State) Registry() *Table {
	return L.g.registry
}

// Globals returns the globals table.
func (L *State) Globals() *Table {
	return L.g.globals
}

// FitsPointer reports whether addr survives the instance's pointer tagging.
func (L *State) FitsPointer(addr uintptr) bool {
	bits := L.g.cfg.PointerBits
	if bits == 0 || bits >= 64 {
		return true
	}
	return uint64(addr)>>bits == 0
}

// Close tears the instance down: suspended coroutines are aborted and every
// remaining userdata is finalized. Close is idempotent.
func (L *State) Close() {
	g := L.g
	if g.closed {
		return
	}
	for th := range g.threads {
		th.abort()
	}
	g.threads = nil
	n := L.finalizeAll()
	g.closed = true
	g.cfg.Allocator.Free(stateOverhead)
	Logger().Debug("state closed", zap.Int("finalized", n))
}

func (L *State) frame() *frame {
	return &L.frames[len(L.frames)-1]
}

// Top returns the number of values in the current frame.
func (L *State) Top() int {
	return len(L.stack) - L.frame().base
}

// SetTop sets the frame's top to idx, padding with nil or dropping values.
func (L *State) SetTop(idx int) {
	base := L.frame().base
	var newTop int
	if idx >= 0 {
		newTop = base + idx
	} else {
		newTop = len(L.stack) + idx + 1
	}
	if newTop < base {
		L.violation(fmt.Sprintf("invalid new top %d", idx))
	}
	if newTop > len(L.stack) {
		L.ensure(newTop - len(L.stack))
		for len(L.stack) < newTop {
			L.stack = append(L.stack, Nil)
		}
		return
	}
	L.truncate(newTop)
}

// Pop removes n values from the top.
func (L *State) Pop(n int) {
	L.SetTop(-n - 1)
}

func (L *State) truncate(n int) {
	for i := n; i < len(L.stack); i++ {
		L.stack[i] = nil
	}
	L.stack = L.stack[:n]
}

// CheckStack reserves room for n more values in the current frame. It
// reports false when the reservation would exceed Config.MaxStack.
func (L *State) CheckStack(n int) bool {
	if n <= 0 {
		return true
	}
	need := len(L.stack) + n
	if need > L.g.cfg.MaxStack {
		return false
	}
	f := L.frame()
	if need > f.limit {
		f.limit = need
	}
	return true
}

// ensure raises a stack overflow error unless n more values fit in the
// current reservation.
func (L *State) ensure(n int) {
	if len(L.stack)+n > L.frame().limit {
		L.Raise(String("stack overflow"), errors.New(errors.PhaseRuntime, errors.KindStackOverflow).
			Detail("push beyond reserved stack slots (limit %d)", L.frame().limit).
			Build())
	}
}

// Push pushes v; a nil Value is pushed as Nil.
func (L *State) Push(v Value) {
	L.ensure(1)
	if v == nil {
		v = Nil
	}
	L.stack = append(L.stack, v)
}

// pushRaw pushes without checking the reservation. Used for results and
// error objects that the runtime itself moves.
func (L *State) pushRaw(v Value) {
	if v == nil {
		v = Nil
	}
	L.stack = append(L.stack, v)
	if f := L.frame(); len(L.stack) > f.limit {
		f.limit = len(L.stack)
	}
}

func (L *State) PushNil() { L.Push(Nil) }

func (L *State) PushBoolean(b bool) { L.Push(Bool(b)) }

func (L *State) PushNumber(n float64) { L.Push(Number(n)) }

func (L *State) PushString(s string) { L.Push(String(s)) }

// PushLightUserdata pushes a bare address. Addresses outside the instance's
// pointer width would be silently truncated by a tagging build, so they are
// a protocol violation here.
func (L *State) PushLightUserdata(p uintptr) {
	if !L.FitsPointer(p) {
		L.violation(fmt.Sprintf("light userdata %#x does not fit in %d bits", p, L.g.cfg.PointerBits))
	}
	L.Push(LightUserdata(p))
}

// PushGoFunction pushes fn as a function without upvalues.
func (L *State) PushGoFunction(name string, fn GoFunction) {
	L.Push(NewFunction(name, fn))
}

// PushClosure pops n values and pushes a function capturing them as
// upvalues 1..n.
func (L *State) PushClosure(name string, fn GoFunction, n int) {
	if n < 0 || n > L.Top() {
		L.violation(fmt.Sprintf("closure needs %d upvalues, frame has %d values", n, L.Top()))
	}
	ups := make([]Value, n)
	copy(ups, L.stack[len(L.stack)-n:])
	L.truncate(len(L.stack) - n)
	L.Push(&Function{Fn: fn, Name: name, upvalues: ups})
}

// PushValue pushes a copy of the value at idx.
func (L *State) PushValue(idx int) {
	L.Push(L.Get(idx))
}

// NewTable pushes a new empty table and returns it.
func (L *State) NewTable() *Table {
	t := NewTable()
	L.Push(t)
	return t
}

// absIndex converts idx into a stack slot, or -1 if it does not address a
// value of the current frame.
func (L *State) absIndex(idx int) int {
	base := L.frame().base
	switch {
	case idx > 0:
		i := base + idx - 1
		if i >= len(L.stack) {
			return -1
		}
		return i
	case idx < 0 && idx > RegistryIndex:
		i := len(L.stack) + idx
		if i < base {
			return -1
		}
		return i
	default:
		return -1
	}
}

// Get returns the value at idx, or nil if idx addresses no value.
func (L *State) Get(idx int) Value {
	switch {
	case idx == RegistryIndex:
		return L.g.registry
	case idx == GlobalsIndex:
		return L.g.globals
	case idx < GlobalsIndex:
		fn := L.frame().fn
		if fn == nil {
			return nil
		}
		return fn.Upvalue(GlobalsIndex - idx)
	}
	i := L.absIndex(idx)
	if i < 0 {
		return nil
	}
	return L.stack[i]
}

// TypeAt returns the type of the value at idx; TypeNone if there is none.
func (L *State) TypeAt(idx int) Type {
	return TypeOf(L.Get(idx))
}

// Insert moves the top value into position idx, shifting values up.
func (L *State) Insert(idx int) {
	i := L.absIndex(idx)
	if i < 0 {
		L.violation(fmt.Sprintf("invalid insert index %d", idx))
	}
	top := L.stack[len(L.stack)-1]
	copy(L.stack[i+1:], L.stack[i:len(L.stack)-1])
	L.stack[i] = top
}

// Remove deletes the value at idx, shifting values down.
func (L *State) Remove(idx int) {
	i := L.absIndex(idx)
	if i < 0 {
		L.violation(fmt.Sprintf("invalid remove index %d", idx))
	}
	copy(L.stack[i:], L.stack[i+1:])
	L.truncate(len(L.stack) - 1)
}

// ToNumber converts the value at idx to a number.
func (L *State) ToNumber(idx int) (float64, bool) {
	n, ok := L.Get(idx).(Number)
	return float64(n), ok
}

// ToString returns the text at idx. Numbers are converted.
func (L *State) ToString(idx int) (string, bool) {
	switch v := L.Get(idx).(type) {
	case String:
		return string(v), true
	case Number:
		return Format(v), true
	}
	return "", false
}

// ToBoolean reports the truthiness of the value at idx.
func (L *State) ToBoolean(idx int) bool {
	switch v := L.Get(idx).(type) {
	case nil, nilValue:
		return false
	case Bool:
		return bool(v)
	}
	return true
}

// ToUserdata returns the userdata at idx, or nil.
func (L *State) ToUserdata(idx int) *Userdata {
	u, _ := L.Get(idx).(*Userdata)
	return u
}

// ToFunction returns the function at idx, or nil.
func (L *State) ToFunction(idx int) *Function {
	f, _ := L.Get(idx).(*Function)
	return f
}

// ToTable returns the table at idx, or nil.
func (L *State) ToTable(idx int) *Table {
	t, _ := L.Get(idx).(*Table)
	return t
}

// ToThread returns the thread at idx, or nil.
func (L *State) ToThread(idx int) *State {
	th, _ := L.Get(idx).(*State)
	return th
}

// RawGet replaces the key on top of the stack with t[key], where t is the
// table at idx.
func (L *State) RawGet(idx int) {
	t := L.ToTable(idx)
	if t == nil {
		L.Errorf("attempt to index a %s value", L.TypeAt(idx))
	}
	k := L.stack[len(L.stack)-1]
	L.stack[len(L.stack)-1] = t.Get(k)
}

// RawSet does t[k] = v where t is the table at idx, v the top value and k
// the value just below it. Both are popped.
func (L *State) RawSet(idx int) {
	t := L.ToTable(idx)
	if t == nil {
		L.Errorf("attempt to index a %s value", L.TypeAt(idx))
	}
	if L.Top() < 2 {
		L.violation("RawSet needs a key and a value")
	}
	k, v := L.stack[len(L.stack)-2], L.stack[len(L.stack)-1]
	if !t.Set(k, v) {
		L.Errorf("table index is nil")
	}
	L.truncate(len(L.stack) - 2)
}

// SetGlobal pops a value and stores it as the global name.
func (L *State) SetGlobal(name string) {
	v := L.Get(-1)
	if v == nil {
		L.violation("SetGlobal on empty frame")
	}
	L.g.globals.Set(String(name), v)
	L.Pop(1)
}

// GetGlobal pushes the global name.
func (L *State) GetGlobal(name string) {
	L.Push(L.g.globals.Get(String(name)))
}

// XMove pops n values from L and pushes them onto to.
func (L *State) XMove(to *State, n int) {
	if n <= 0 {
		return
	}
	if n > L.Top() {
		L.violation(fmt.Sprintf("XMove of %d values from frame of %d", n, L.Top()))
	}
	vals := L.stack[len(L.stack)-n:]
	for _, v := range vals {
		to.pushRaw(v)
	}
	L.truncate(len(L.stack) - n)
}

// violation panics with a protocol violation. It is not recoverable by
// protected calls.
func (L *State) violation(detail string) {
	panic(errors.ProtocolViolation(errors.PhaseRuntime, detail))
}
