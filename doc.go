// Package callgate provides a safety boundary between an embeddable scripting
// runtime and externally supplied native functions.
//
// Native functions normally run with raw access to the runtime's evaluation
// stack and must respect stack limits, structured error unwinding and their
// own argument contracts. callgate wraps every registered native in a single
// shared call gate that validates arguments, reserves stack space, invokes the
// native and translates its integer result into a return, an error or a
// cooperative suspension.
//
// # Architecture Overview
//
//	callgate/            Root package with the Allocator contract
//	├── state/           Reference host runtime (stack, registry, collector, coroutines)
//	├── gate/            Call descriptors, transfer channel, closure registry, call gate
//	├── wasmnative/      WebAssembly exports exposed as gate-protected natives (wazero)
//	├── errors/          Structured error types for the boundary
//	└── cmd/gaterun/     CLI and interactive runner
//
// # Quick Start
//
//	L := gate.NewState(state.Config{})
//	if L == nil {
//	    log.Fatal("out of memory")
//	}
//	defer L.Close()
//
//	ok := gate.PushSafeFunction(L, add, nil,
//	    gate.Sig(gate.Number, gate.Number), 1, "add", nil)
//	if !ok {
//	    log.Fatal("out of memory")
//	}
//	L.SetGlobal("add")
//
// # Result Codes
//
// Every native returns a single int:
//
//   - r >= 0: r results are on top of the stack
//   - r == -1: the top of the stack is raised as an error
//   - r < -1: (-2 - r) values are popped and the rest of the frame is yielded
//
// # Thread Safety
//
// A State and everything registered in it must be used by one goroutine at a
// time. The package keeps no locks on the call path; the embedder serializes
// access.
package callgate
