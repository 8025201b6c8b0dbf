package gate

import (
	"go.uber.org/zap"

	"github.com/wippyai/callgate/state"
)

// NewState creates a runtime instance with the gate already installed. It
// returns nil if the state cannot be created or cannot host the gate.
func NewState(cfg state.Config) *state.State {
	L, err := state.New(cfg)
	if err != nil {
		Logger().Error("state creation failed", zap.Error(err))
		return nil
	}
	if _, err := DefaultRegistry.Ensure(L); err != nil {
		Logger().Error("gate install failed", zap.Error(err))
		L.Close()
		return nil
	}
	return L
}
