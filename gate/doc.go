// Package gate guards every call from the runtime into a registered native
// function.
//
// A native is described by a Descriptor: the function, an opaque user value,
// an optional argument Signature, the number of extra stack slots it may use
// and a name for diagnostics. Registration copies the descriptor into a
// runtime-owned Handle and binds it as the first upvalue of a gate closure.
// Every invocation of that closure then runs through a fixed sequence:
//
//	entry      recover the handle from upvalue 1
//	type check compare argument i+1 with tag i, skipping Any
//	reserve    grow the frame by the stack budget
//	invoke     run the native
//	dispatch   decode the native's integer result
//
// The result protocol:
//
//	r >= 0   return r values from the top of the stack
//	r == -1  raise the value on top of the stack as an error
//	r <  -1  pop (-2 - r) values and yield the rest of the frame
//
// Use ReturnError and YieldPopping to build these codes.
//
// The gate machinery is installed lazily, once per state, and cached in the
// state's registry under the identity of the closure maker. NewState installs
// it eagerly.
//
// Example:
//
//	L := gate.NewState(state.Config{})
//	defer L.Close()
//
//	ok := gate.PushSafeFunction(L, add, nil,
//	    gate.Sig(gate.Number, gate.Number), 1, "add", nil)
//	if !ok {
//	    // out of memory
//	}
//	L.SetGlobal("add")
package gate
