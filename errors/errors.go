package errors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in the boundary the error occurred
type Phase string

const (
	PhaseConfig   Phase = "config"   // runtime instance configuration
	PhaseRegister Phase = "register" // descriptor registration
	PhaseTransfer Phase = "transfer" // descriptor transfer into runtime memory
	PhaseInstall  Phase = "install"  // closure registry installation
	PhaseCall     Phase = "call"     // call gate invocation
	PhaseCollect  Phase = "collect"  // collection and finalization
	PhaseBind     Phase = "bind"     // binding external natives (wasm exports)
	PhaseRuntime  Phase = "runtime"  // host runtime operations
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfMemory       Kind = "out_of_memory"
	KindTypeMismatch      Kind = "type_mismatch"
	KindStackBudget       Kind = "stack_budget"
	KindProtocolViolation Kind = "protocol_violation"
	KindAddressRange      Kind = "address_range"
	KindUser              Kind = "user"
	KindUnsupported       Kind = "unsupported"
	KindInvalidInput      Kind = "invalid_input"
	KindStackOverflow     Kind = "stack_overflow"
	KindRuntime           Kind = "runtime"
)

// Error is the structured error type used throughout callgate
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Name     string // native function name, if any
	Detail   string
	Position int // 1-based argument position, 0 if not applicable
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Position > 0 {
		b.WriteString(" at argument #")
		b.WriteString(strconv.Itoa(e.Position))
	}
	if e.Name != "" {
		b.WriteString(" in '")
		b.WriteString(e.Name)
		b.WriteByte('\'')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Name sets the native function name
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// Position sets the 1-based argument position
func (b *Builder) Position(pos int) *Builder {
	b.err.Position = pos
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the boundary's error taxonomy

// TypeMismatch creates an argument type error. The detail follows the
// host runtime's wording so scripts see familiar messages.
func TypeMismatch(name string, pos int, expected, got string) *Error {
	return &Error{
		Phase:    PhaseCall,
		Kind:     KindTypeMismatch,
		Name:     name,
		Position: pos,
		Detail:   fmt.Sprintf("bad argument #%d to '%s' (%s expected, got %s)", pos, name, expected, got),
	}
}

// StackBudgetExceeded creates an error for a stack reservation the runtime refused.
func StackBudgetExceeded(name string, budget int) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindStackBudget,
		Name:   name,
		Value:  budget,
		Detail: fmt.Sprintf("cannot grow stack by %d slots", budget),
	}
}

// OutOfMemory creates an allocation failure error
func OutOfMemory(phase Phase, size int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfMemory,
		Value:  size,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
	}
}

// ProtocolViolation creates an error for a broken internal invariant.
// These are raised as panics and are not meant to be recovered.
func ProtocolViolation(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindProtocolViolation,
		Detail: detail,
	}
}

// AddressRange creates an error for a code address that does not fit the
// runtime's tagged pointer width.
func AddressRange(addr uintptr, bits uint8) *Error {
	return &Error{
		Phase:  PhaseInstall,
		Kind:   KindAddressRange,
		Value:  addr,
		Detail: fmt.Sprintf("address %#x does not fit in %d bits", addr, bits),
	}
}

// User wraps an error object raised by a native through result code -1.
func User(name string, value any) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindUser,
		Name:   name,
		Value:  value,
		Detail: fmt.Sprint(value),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
