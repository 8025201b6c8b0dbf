// Package state implements the host runtime that the call gate protects.
//
// A State is a stack machine in the style of embeddable scripting engines:
// functions exchange values through a shared evaluation stack, errors unwind
// to the nearest protected call, runtime-owned userdata is tracked by a
// collector that runs finalizers exactly once, and coroutines suspend back to
// their resumer.
//
// # Stack Discipline
//
// Every call frame starts with a reservation of MinStack free slots above its
// arguments. Pushing beyond the reservation raises a "stack overflow" error;
// CheckStack grows the reservation up to Config.MaxStack.
//
// # Indices
//
// Positive indices count from the bottom of the current frame (1 is the first
// argument), negative indices from the top (-1 is the top). RegistryIndex,
// GlobalsIndex and UpvalueIndex(i) address the registry table, the globals
// table and the running function's captured values.
//
// # Errors
//
// Errors are raised with Error, Errorf or Raise and travel as panics carrying
// an internal unwind value. PCall and ProtectedCall recover them; any other
// panic is left alone and terminates the instance.
//
// # Coroutines
//
// Coroutines run on their own goroutine with strict hand-off: exactly one
// thread of a State executes at any time. A native may call Yield only when
// CanYield reports true.
package state
