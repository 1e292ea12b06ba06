// Package daemon wires the hub, its clients and the control socket into an
// fx application.
package daemon

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/omnichat/internal/api"
	"github.com/matheus3301/omnichat/internal/app"
	"github.com/matheus3301/omnichat/internal/client"
	"github.com/matheus3301/omnichat/internal/config"
	"github.com/matheus3301/omnichat/internal/lock"
	"github.com/matheus3301/omnichat/internal/logging"
	"github.com/matheus3301/omnichat/internal/provider"
	"github.com/matheus3301/omnichat/internal/provider/mock"
	"github.com/matheus3301/omnichat/internal/provider/whatsapp"
	"github.com/matheus3301/omnichat/internal/session"
	"github.com/matheus3301/omnichat/internal/wa"
)

// LockOwner is recorded in the data directory lock file.
const LockOwner = "omnichatd"

// Params holds the command line settings passed to the fx module.
type Params struct {
	DataDir  string // empty: data_dir from config, else ~/.omnichat
	LogLevel string // empty: log_level from config
	// Open names the client to open at start. "default" picks default_client
	// or the first configured client; empty opens nothing.
	Open       string
	SocketPath string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLayout,
			provideLogger,
			provideLock,
			provideHub,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	return config.LoadOrDefault(session.NewLayout(p.DataDir).ConfigPath())
}

func provideLayout(p Params, cfg *config.Config) (session.Layout, error) {
	layout := session.NewLayout(config.ResolveDataDir(p.DataDir, cfg))
	if err := layout.EnsureDir(); err != nil {
		return session.Layout{}, fmt.Errorf("create data dir: %w", err)
	}
	return layout, nil
}

func provideLogger(p Params, cfg *config.Config, layout session.Layout) (*zap.Logger, error) {
	level := p.LogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	return logging.New(layout.LogPath(), level)
}

func provideLock(layout session.Layout, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", layout.Root))
	l, err := lock.Acquire(layout.Root, LockOwner)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

// provideHub registers one client per config entry. WhatsApp clients share a
// single adapter; every mock client gets its own.
func provideHub(cfg *config.Config, layout session.Layout, logger *zap.Logger) (*app.Hub, error) {
	hub := app.New(client.NewRegistry(), logger.Named("hub"))

	var waProvider *whatsapp.Provider
	for _, cc := range cfg.Clients {
		var adapter provider.Adapter
		switch cc.Provider {
		case config.ProviderMock:
			adapter = mock.New(logger.Named("mock"))
		case config.ProviderWhatsApp:
			if waProvider == nil {
				wp, err := whatsapp.New(whatsapp.Config{
					SessionDir:   layout.ClientDir,
					DeviceName:   cfg.DeviceName,
					ReadyTimeout: cfg.ReadyTimeout.Duration,
					CacheSize:    cfg.NameCacheSize,
				}, wa.Loader(logger.Named("wa"), cfg.DeviceName), logger.Named("whatsapp"))
				if err != nil {
					return nil, err
				}
				waProvider = wp
			}
			adapter = waProvider
		default:
			return nil, fmt.Errorf("client %q: unknown provider %q", cc.ID, cc.Provider)
		}
		hub.Add(client.New(cc.ID, cc.Name, adapter, logger.With(zap.String("client", cc.ID))))
		logger.Info("client registered", zap.String("client", cc.ID), zap.String("provider", cc.Provider))
	}
	return hub, nil
}

func provideService(hub *app.Hub, logger *zap.Logger) *api.Service {
	return api.NewService(hub, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, p Params, cfg *config.Config, srv *Server, hub *app.Hub, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if id := openTarget(p.Open, cfg); id != "" {
				go func() {
					screen, err := hub.Open(context.Background(), id)
					if err != nil {
						logger.Error("open client failed", zap.String("client", id), zap.Error(err))
						return
					}
					logger.Info("client opened", zap.String("client", id), zap.String("screen", string(screen)))
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			err := hub.Shutdown(ctx)
			if err != nil {
				logger.Warn("error disconnecting clients", zap.Error(err))
			}
			if lerr := lk.Release(); lerr != nil {
				logger.Warn("error releasing lock", zap.Error(lerr))
				err = errors.Join(err, lerr)
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return err
		},
	})
}

func openTarget(open string, cfg *config.Config) string {
	switch open {
	case "":
		return ""
	case "default":
		return cfg.ResolveClient("")
	}
	return cfg.ResolveClient(open)
}
