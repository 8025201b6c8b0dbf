package gate

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/callgate/errors"
	"github.com/wippyai/callgate/state"
)

// InstallState is the lifecycle of the gate machinery in one state.
type InstallState int

const (
	Uninitialized InstallState = iota
	Installing
	Ready
)

func (s InstallState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Installing:
		return "installing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// installing marks a registry entry whose install is in progress.
var installing = state.Bool(false)

// Registry caches the closure maker in each state's registry, keyed by the
// maker's code address. Entries are never evicted.
type Registry struct {
	maker   state.GoFunction
	keyOnce sync.Once
	key     state.LightUserdata
}

// DefaultRegistry is the process-wide registry used by Register,
// PushSafeFunction, PushClosure and NewState.
var DefaultRegistry = &Registry{maker: makeClosure}

// Key returns the registry key of the maker.
func (r *Registry) Key() state.LightUserdata {
	r.keyOnce.Do(func() {
		r.key = state.LightUserdata(reflect.ValueOf(r.maker).Pointer())
	})
	return r.key
}

// Installed reports the lifecycle state of L's entry without installing.
func (r *Registry) Installed(L *state.State) InstallState {
	switch L.Registry().Get(r.Key()).(type) {
	case *state.Function:
		return Ready
	case state.Bool:
		return Installing
	default:
		return Uninitialized
	}
}

// Ensure returns L's closure maker, installing it on first use.
//
// States that tag pointers into fewer bits than the maker's address cannot
// hold the registry key; Ensure returns an address range error for them and
// installs nothing.
func (r *Registry) Ensure(L *state.State) (*state.Function, error) {
	key := r.Key()
	if !L.FitsPointer(uintptr(key)) {
		return nil, errors.AddressRange(uintptr(key), L.Config().PointerBits)
	}

	reg := L.Registry()
	switch v := reg.Get(key).(type) {
	case *state.Function:
		return v, nil
	case state.Bool:
		panic(errors.ProtocolViolation(errors.PhaseInstall, "registry re-entered while installing"))
	}

	if !L.CheckStack(2) {
		return nil, errors.New(errors.PhaseInstall, errors.KindStackBudget).
			Detail("no stack space to install the gate").
			Build()
	}
	reg.Set(key, installing)
	L.PushGoFunction("callgate.install", r.install)
	if status := L.PCall(0, 1); status != state.StatusOK {
		msg := state.Format(L.Get(-1))
		L.Pop(1)
		reg.Set(key, state.Nil)
		kind := errors.KindRuntime
		if status == state.StatusErrMem {
			kind = errors.KindOutOfMemory
		}
		return nil, errors.New(errors.PhaseInstall, kind).Detail("install failed: %s", msg).Build()
	}
	fn := L.ToFunction(-1)
	L.Pop(1)
	reg.Set(key, fn)

	Logger().Debug("gate installed", zap.Uintptr("key", uintptr(key)))
	return fn, nil
}

func (r *Registry) install(L *state.State) int {
	L.PushGoFunction("callgate.maker", r.maker)
	return 1
}

// makeClosure takes a handle and n values and returns a gate closure that
// captures all of them, handle first.
func makeClosure(L *state.State) int {
	h := handleOf(L, 1)
	L.PushClosure(h.name, callGate, L.Top())
	return 1
}
