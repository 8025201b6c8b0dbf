package wasmnative

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/callgate/errors"
	"github.com/wippyai/callgate/gate"
	"github.com/wippyai/callgate/state"
)

// Export describes one bound function.
type Export struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

func (e Export) String() string {
	var sb strings.Builder
	sb.WriteString(e.Name)
	sb.WriteString(typeList(e.Params))
	if len(e.Results) > 0 {
		sb.WriteString(" -> ")
		sb.WriteString(typeList(e.Results))
	}
	return sb.String()
}

func typeList(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// Module is a wasm module whose exports are registered as gate natives.
//
// Each registered native holds a reference on the module. The module is
// closed when the runtime collects the last of them, or by Close.
type Module struct {
	name    string
	runtime wazero.Runtime
	mod     api.Module
	exports []Export
	callCtx context.Context

	mu     sync.Mutex
	refs   int
	closed bool
}

// Bind compiles and instantiates wasmBytes and publishes every export with
// numeric parameters and results as a global table of natives named after
// the module. Natives take numbers, return numbers and raise the trap
// message when the wasm code traps.
//
// ctx governs compilation and instantiation. Calls keep its values but not
// its deadline or cancellation, so exports stay callable after ctx ends.
func Bind(ctx context.Context, L *state.State, wasmBytes []byte, opts ...Option) (*Module, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if cfg.WASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
			r.Close(ctx)
			return nil, errors.Wrap(errors.PhaseBind, errors.KindRuntime, err, "instantiate wasi")
		}
	}

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseBind, errors.KindInvalidInput, err, "compile failed")
	}
	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(cfg.Name))
	if err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseBind, errors.KindRuntime, err, "instantiate failed")
	}

	m := &Module{
		name:    cfg.Name,
		runtime: r,
		mod:     mod,
		callCtx: context.WithoutCancel(ctx),
	}
	m.exports = collectExports(compiled.ExportedFunctions())

	if err := m.publish(L); err != nil {
		m.Close(ctx)
		return nil, err
	}

	Logger().Debug("module bound",
		zap.String("module", m.name),
		zap.Int("exports", len(m.exports)))
	return m, nil
}

func collectExports(defs map[string]api.FunctionDefinition) []Export {
	exports := make([]Export, 0, len(defs))
	for name, def := range defs {
		if !numeric(def.ParamTypes()) || !numeric(def.ResultTypes()) {
			Logger().Debug("skipping non-numeric export", zap.String("export", name))
			continue
		}
		exports = append(exports, Export{
			Name:    name,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		})
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].Name < exports[j].Name })
	return exports
}

// publish registers the exports and stores them in the module's global
// table. The stack is unchanged on return.
func (m *Module) publish(L *state.State) error {
	if !L.CheckStack(3) {
		return errors.New(errors.PhaseBind, errors.KindStackBudget).
			Name(m.name).
			Detail("no stack space to publish exports").
			Build()
	}

	t := L.NewTable()
	for _, e := range m.exports {
		sig := make([]gate.Tag, len(e.Params))
		for i := range sig {
			sig[i] = gate.Number
		}
		d := gate.NewDescriptor(m.native(e), m, gate.Sig(sig...), len(e.Results),
			m.name+"."+e.Name, m.release)
		if err := gate.RegisterE(L, d); err != nil {
			L.Pop(1)
			return fmt.Errorf("register %s.%s: %w", m.name, e.Name, err)
		}
		m.retain()
		t.Set(state.String(e.Name), L.Get(-1))
		L.Pop(1)
	}
	L.SetGlobal(m.name)
	return nil
}

func (m *Module) native(e Export) gate.NativeFunc {
	fn := m.mod.ExportedFunction(e.Name)
	params := make([]uint64, len(e.Params))
	return func(L *state.State) int {
		if m.Closed() {
			L.PushString(fmt.Sprintf("module %s is closed", m.name))
			return gate.ReturnError
		}
		for i, t := range e.Params {
			n, _ := L.ToNumber(i + 1)
			params[i] = encode(t, n)
		}
		results, err := fn.Call(m.callCtx, params...)
		if err != nil {
			Logger().Debug("export trapped",
				zap.String("module", m.name),
				zap.String("export", e.Name),
				zap.Error(err))
			L.PushString(err.Error())
			return gate.ReturnError
		}
		for i, t := range e.Results {
			L.PushNumber(decode(t, results[i]))
		}
		return len(results)
	}
}

func (m *Module) retain() {
	m.mu.Lock()
	m.refs++
	m.mu.Unlock()
}

// release is the finalizer of every native handle.
func (m *Module) release(gate.NativeFunc, any) {
	m.mu.Lock()
	m.refs--
	last := m.refs == 0
	m.mu.Unlock()
	if last {
		Logger().Debug("last native collected", zap.String("module", m.name))
		m.Close(context.Background())
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Exports returns the bound exports sorted by name.
func (m *Module) Exports() []Export {
	out := make([]Export, len(m.exports))
	copy(out, m.exports)
	return out
}

// Refs returns the number of live natives referencing the module.
func (m *Module) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

// Closed reports whether the module has been closed.
func (m *Module) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close releases the wasm instance and its runtime. Natives still reachable
// from the state raise an error when called. Close is idempotent.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if err := m.runtime.Close(ctx); err != nil {
		return errors.Wrap(errors.PhaseBind, errors.KindRuntime, err, "close runtime")
	}
	return nil
}
