// Package wa is the WhatsApp backend built on whatsmeow. Each client keeps
// its device store and a SQLite message cache in its own session directory.
package wa

import (
	"context"
	"fmt"

	wastore "go.mau.fi/whatsmeow/store"
	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/backend"
)

// LockOwner is recorded in the session directory lock file.
const LockOwner = "omnichatd"

// Module creates whatsmeow-backed clients.
type Module struct {
	logger *zap.Logger
}

var _ backend.Module = (*Module)(nil)

// NewModule creates a module logging to logger.
func NewModule(logger *zap.Logger) *Module {
	return &Module{logger: logger}
}

// NewClient creates an unconnected client. Nothing touches disk until
// Initialize.
func (m *Module) NewClient(opts backend.Options) (backend.Client, error) {
	if opts.AuthDir == "" {
		return nil, fmt.Errorf("wa: auth dir is required")
	}
	return newClient(opts, m.logger.With(zap.String("client", opts.ClientID))), nil
}

// Loader returns a loader that registers deviceName with whatsmeow once and
// yields a Module.
func Loader(logger *zap.Logger, deviceName string) backend.Loader {
	return backend.Cached(backend.LoaderFunc(func(context.Context) (backend.Module, error) {
		if deviceName != "" {
			wastore.SetOSInfo(deviceName, [3]uint32{0, 1, 0})
		}
		return NewModule(logger), nil
	}))
}
