// Package errors provides structured error types for the callgate boundary.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the native function name, the argument position and the
// offending value when they are known.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindTypeMismatch).
//		Name("add").
//		Position(2).
//		Detail("number expected, got string").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch("add", 2, "number", "string")
//	err := errors.StackBudgetExceeded("add", 4096)
//
// Type mismatches, stack budget failures and user errors travel through the host
// runtime's structured error channel. Out-of-memory and address-range failures are
// returned to the embedder. Protocol violations and unsupported suspensions are
// raised as panics and terminate the current runtime instance.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
