package providers

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/bookhaven/bookhaven-server/internal/config"
	"github.com/bookhaven/bookhaven-server/internal/logger"
	"github.com/bookhaven/bookhaven-server/internal/store"
	"github.com/bookhaven/bookhaven-server/internal/trigger"
)

// DispatcherHandle wraps the trigger dispatcher with its context for lifecycle management.
// Handler registration and loop startup happen in ProvideTriggerPipeline, after the
// store exists; the handle carries its run context until then.
type DispatcherHandle struct {
	*trigger.Dispatcher
	runCtx context.Context
	cancel context.CancelFunc
}

// Run starts the dispatch loop in the background.
func (h *DispatcherHandle) Run() {
	go h.Dispatcher.Start(h.runCtx)
}

// Shutdown implements do.Shutdownable.
func (h *DispatcherHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Dispatcher.Shutdown(ctx)
}

// ProvideDispatcher provides the trigger event dispatcher.
func ProvideDispatcher(i do.Injector) (*DispatcherHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	dispatcher := trigger.NewDispatcher(log.Logger, trigger.Options{})
	ctx, cancel := context.WithCancel(context.Background())

	return &DispatcherHandle{
		Dispatcher: dispatcher,
		runCtx:     ctx,
		cancel:     cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	dispatcherHandle := do.MustInvoke[*DispatcherHandle](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.New(dbPath, log.Logger, dispatcherHandle.Dispatcher)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
