package state

import (
	"github.com/go-playground/validator/v10"

	"github.com/wippyai/callgate"
	"github.com/wippyai/callgate/errors"
)

const (
	// MinStack is the number of free slots every call frame starts with.
	MinStack = 20

	// DefaultMaxStack bounds the total number of stack slots of one thread.
	DefaultMaxStack = 8000

	// DefaultMaxCallDepth bounds nested calls.
	DefaultMaxCallDepth = 200

	// stateOverhead is charged to the allocator when an instance is created.
	stateOverhead = 512
)

// Config holds configuration for a runtime instance.
type Config struct {
	// Allocator accounts for runtime-owned memory. nil means unlimited.
	Allocator callgate.Allocator

	// MaxStack is the maximum number of stack slots per thread.
	// 0 means DefaultMaxStack.
	MaxStack int `validate:"omitempty,min=20"`

	// MaxCallDepth is the maximum number of nested calls.
	// 0 means DefaultMaxCallDepth.
	MaxCallDepth int `validate:"omitempty,min=1"`

	// PointerBits is the width light userdata addresses are encoded in.
	// Some builds tag pointers and keep only the low bits. 0 means full width.
	PointerBits uint8 `validate:"omitempty,max=64"`

	// DisableYield turns off coroutine suspension for the whole instance.
	DisableYield bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid state config")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxStack == 0 {
		c.MaxStack = DefaultMaxStack
	}
	if c.MaxCallDepth == 0 {
		c.MaxCallDepth = DefaultMaxCallDepth
	}
	if c.Allocator == nil {
		c.Allocator = callgate.NewLimitedAllocator(0)
	}
	return c
}
