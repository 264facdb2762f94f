// Package main runs the attendant client core as a standalone process:
// it opens the local store, wires the admission engine and keeps the
// background sync loops running until interrupted. UI frontends embed
// the same packages directly.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventdesk/attendant/internal/api"
	"github.com/eventdesk/attendant/internal/config"
	"github.com/eventdesk/attendant/internal/db"
	"github.com/eventdesk/attendant/internal/logging"
	"github.com/eventdesk/attendant/internal/models"
	"github.com/eventdesk/attendant/internal/queue"
	syncpkg "github.com/eventdesk/attendant/internal/sync"
	"github.com/eventdesk/attendant/internal/sync/scheduler"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	cfg := config.Load()
	logging.Init(os.Stdout, cfg.LogLevel)

	logging.Info("attendant client starting", map[string]interface{}{
		"version":  Version,
		"data_dir": cfg.DataDir,
	})

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		logging.Error("failed to open local store", err, nil)
		os.Exit(1)
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		logging.Error("failed to initialize migrations", err, nil)
		os.Exit(1)
	}
	if err := migrator.Up(); err != nil {
		logging.Error("failed to apply migrations", err, nil)
		os.Exit(1)
	}

	repo := db.NewRepository(database.DB)
	defer repo.Close()

	gateway := api.NewClient(api.Endpoints{
		Events:        cfg.EventsURL,
		Users:         cfg.UsersURL,
		Registrations: cfg.RegistrationsURL,
		Tickets:       cfg.TicketsURL,
		CheckIns:      cfg.CheckInsURL,
	}, cfg.RequestTimeout)

	pending := queue.NewPendingQueue(repo)
	manager := syncpkg.NewManager(repo, pending, gateway)

	// Background catalog calls run with the events service key alone;
	// attendant bearer tokens only enter through the UI session.
	backgroundAuth := func() models.AuthContext {
		return models.AuthContext{APIKey: cfg.EventsAPIKey}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(manager, backgroundAuth, &scheduler.Config{
		DrainInterval:   cfg.DrainInterval,
		CatalogInterval: cfg.CatalogInterval,
	})
	sched.Start(ctx)

	if n, err := pending.Count(); err == nil && n > 0 {
		logging.Info("pending operations recovered from previous run",
			map[string]interface{}{"count": n})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logging.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	cancel()
	sched.Stop()
}
