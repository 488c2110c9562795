// Package app composes the application out of its pieces and runs their
// lifecycle.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"waview/internal/bus"
	"waview/internal/config"
	"waview/internal/logging"
	"waview/internal/nav"
	"waview/internal/persist"
	"waview/internal/reconcile"
	"waview/internal/session"
	"waview/internal/state"
	"waview/internal/status"
	"waview/internal/transport"
	"waview/internal/tui"
)

// Module returns the fx module composing all providers and lifecycle hooks.
func Module() fx.Option {
	return fx.Module("waview",
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideStore,
			provideDB,
			provideScheduler,
			provideAdapter,
			provideReconciler,
			provideNav,
			provideUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	if err := session.EnsureDir(); err != nil {
		return nil, err
	}
	return config.Load(session.ConfigPath())
}

func provideLogger() (*zap.Logger, error) {
	return logging.New(session.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideStore() *state.Store {
	return state.New()
}

func provideDB(logger *zap.Logger) (*persist.DB, error) {
	db, err := persist.Open(session.SnapshotDBPath())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("snapshot store initialized", zap.String("path", session.SnapshotDBPath()))
	return db, nil
}

func provideScheduler(db *persist.DB, store *state.Store, cfg *config.Config, logger *zap.Logger) *persist.Scheduler {
	interval := time.Duration(cfg.PersistIntervalSeconds) * time.Second
	return persist.NewScheduler(db, store, interval, logger)
}

func provideAdapter(cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*transport.Adapter, error) {
	return transport.NewAdapter(context.Background(), session.SessionDBPath(), cfg.DownloadDir, b, logger)
}

func provideReconciler(store *state.Store, machine *status.Machine, b *bus.Bus, adapter *transport.Adapter, cfg *config.Config, logger *zap.Logger) *reconcile.Reconciler {
	backoff := time.Duration(cfg.ReconnectBackoffSeconds) * time.Second
	return reconcile.New(store, machine, b, adapter, adapter, backoff, logger)
}

func provideNav(store *state.Store, rec *reconcile.Reconciler) *nav.Machine {
	return nav.New(store, rec.ChatSelected)
}

func provideUI(store *state.Store, machine *status.Machine, navM *nav.Machine, rec *reconcile.Reconciler, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(store, machine, navM, rec, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, adapter *transport.Adapter, rec *reconcile.Reconciler, scheduler *persist.Scheduler, ui *tui.App, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Restore the last snapshot before anything can render or merge.
			scheduler.Restore()

			handler := transport.NewHandler(adapter, b, logger)
			adapter.RegisterEventHandler(handler.Handle)

			rec.Run(runCtx)
			scheduler.Start(runCtx)

			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
			}
			go func() {
				if err := adapter.Connect(); err != nil {
					logger.Error("connect failed", zap.Error(err))
				}
			}()

			go func() {
				if err := ui.Run(); err != nil {
					logger.Error("ui error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()

			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			ui.Stop()
			scheduler.Stop()
			rec.Shutdown()
			adapter.Disconnect()
			logger.Info("stopped")
			return nil
		},
	})
}
