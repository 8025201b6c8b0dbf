package wasmnative

import (
	"github.com/go-playground/validator/v10"

	"github.com/wippyai/callgate/errors"
)

// DefaultName is the global the exports are published under when no name
// is given.
const DefaultName = "wasm"

// Config holds configuration for Bind.
type Config struct {
	// Name is the wazero module name and the global table holding the
	// exports. Natives are named "<Name>.<export>".
	Name string `validate:"required,max=64"`

	// MemoryLimitPages caps the module's memory in 64KB pages.
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32 `validate:"max=65536"`

	// WASI instantiates wasi_snapshot_preview1 before the module so that
	// modules built for WASI can be bound.
	WASI bool
}

// Option configures Bind.
type Option func(*Config)

// WithName sets the module name.
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithMemoryLimitPages caps memory growth.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *Config) { c.MemoryLimitPages = pages }
}

// WithWASI enables WASI preview1 imports.
func WithWASI() Option {
	return func(c *Config) { c.WASI = true }
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func newConfig(opts []Option) (Config, error) {
	cfg := Config{Name: DefaultName}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid bind config")
	}
	return cfg, nil
}
