package gate

import (
	"github.com/go-playground/validator/v10"

	"github.com/wippyai/callgate/errors"
	"github.com/wippyai/callgate/state"
)

// NativeFunc is a native callback. It reads its arguments from the stack
// and returns a result code (see Decode).
type NativeFunc func(L *state.State) int

// Finalizer is called once when the handle of a registered native is
// collected, with the native and its user value.
type Finalizer func(fn NativeFunc, ud any)

// Descriptor is the caller-built description of a native. It is immutable;
// registration copies it into runtime-owned memory.
type Descriptor struct {
	fn     NativeFunc
	ud     any
	sig    Signature
	budget int
	name   string
	fin    Finalizer
}

// NewDescriptor bundles the fields of a native. It has no side effects.
func NewDescriptor(fn NativeFunc, ud any, sig Signature, budget int, name string, fin Finalizer) Descriptor {
	return Descriptor{
		fn:     fn,
		ud:     ud,
		sig:    sig.clone(),
		budget: budget,
		name:   name,
		fin:    fin,
	}
}

func (d Descriptor) Func() NativeFunc { return d.fn }
func (d Descriptor) UserData() any { return d.ud }
func (d Descriptor) Signature() Signature { return d.sig }
func (d Descriptor) StackBudget() int { return d.budget }
func (d Descriptor) Name() string { return d.name }
func (d Descriptor) Finalizer() Finalizer { return d.fin }

// size is the number of bytes a handle for d occupies in the runtime.
func (d Descriptor) size() int {
	return HeaderSize + len(d.sig.tags)
}

type descriptorRules struct {
	Func        NativeFunc `validate:"required"`
	Name        string     `validate:"required"`
	StackBudget int        `validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the descriptor's required fields.
func (d Descriptor) Validate() error {
	err := validate.Struct(descriptorRules{Func: d.fn, Name: d.name, StackBudget: d.budget})
	if err != nil {
		return errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Name(d.name).
			Cause(err).
			Detail("invalid descriptor").
			Build()
	}
	return nil
}
