// Package main is the entry point for the Bookhaven server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/bookhaven/bookhaven-server/internal/di"
	"github.com/bookhaven/bookhaven-server/internal/di/providers"
	"github.com/bookhaven/bookhaven-server/internal/logger"
)

func main() {
	injector := di.NewContainer()
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// The container stops services in reverse registration order.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	// The store and search index hold open files; close them last, after
	// everything that could still issue reads or writes has stopped.
	closeHandle(log, injector, "database", func(h *providers.StoreHandle) error { return h.Shutdown() })
	closeHandle(log, injector, "search index", func(h *providers.SearchIndexHandle) error { return h.Shutdown() })

	log.Info("Goodnight, stacks")
}

func closeHandle[H any](log *logger.Logger, injector do.Injector, name string, close func(H) error) {
	handle, err := do.Invoke[H](injector)
	if err != nil {
		return
	}
	log.Info("Closing " + name + "...")
	if err := close(handle); err != nil {
		log.Error("Failed to close "+name, "error", err)
		return
	}
	log.Info("Closed " + name)
}
