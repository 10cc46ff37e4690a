// Command mahalsync runs the offline-first sync engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rajeeshbabu/mahal-sync/internal/adapters/driven/config"
	"github.com/rajeeshbabu/mahal-sync/internal/adapters/driven/config/file"
	"github.com/rajeeshbabu/mahal-sync/internal/adapters/driven/notify"
	"github.com/rajeeshbabu/mahal-sync/internal/adapters/driven/remote/postgrest"
	"github.com/rajeeshbabu/mahal-sync/internal/adapters/driven/storage/sqlite"
	"github.com/rajeeshbabu/mahal-sync/internal/adapters/driving/cli"
	"github.com/rajeeshbabu/mahal-sync/internal/adapters/driving/ws"
	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/services"
	"github.com/rajeeshbabu/mahal-sync/internal/logger"
)

// version is set at build time via -ldflags.
var version = ""

const eventBuffer = 64

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

func bootstrap(opts cli.Options) (*cli.Services, func() error, error) {
	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	resolver, err := config.NewResolver(configStore)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve settings: %w", err)
	}
	settings := resolver.Settings()

	if settings.Log.File != "" {
		if err := logger.ConfigureFile(settings.Log.File, settings.Log.MaxSizeMB, settings.Log.MaxBackups); err != nil {
			logger.Warn("log file %s: %v", settings.Log.File, err)
		}
	}

	store, err := sqlite.NewStore(opts.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store: %s", store.Path())

	catalog, err := domain.NewTableCatalog(domain.SubscriptionsTable)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	events := notify.NewBroadcaster()
	remote := services.NewRemoteProvider(resolver, postgrest.Factory)

	queue := store.OperationQueue()
	records := store.RecordStore()
	taskStore := store.SchedulerStore()

	manager := services.NewSyncManager(queue, catalog, remote, events)
	reconciler := services.NewReconciler(records, catalog, remote, events)
	tracker := services.NewChangeTracker(records, queue, catalog)
	scheduler := services.NewScheduler(domain.DefaultSchedulerConfig(), taskStore, manager, reconciler, resolver)
	status := services.NewStatusService(queue, resolver, taskStore, manager, reconciler)

	hub := ws.NewHub()
	listen := settings.WebSocketListen
	if listen == "" {
		listen = domain.DefaultWebSocketListen
	}

	daemon := &cli.DaemonConfig{
		Scheduler: scheduler,
		Listen:    listen,
		Events:    hub,
		Fanout: func(ctx context.Context) {
			ch, cancel := events.Subscribe(eventBuffer)
			defer cancel()
			hub.Run(ctx, ch)
		},
		Watch: func(ctx context.Context) error {
			return configStore.Watch(ctx, func() {
				if err := resolver.Reload(); err != nil {
					logger.Warn("config reload: %v", err)
					return
				}
				logger.Info("config reloaded")
			})
		},
	}

	cleanup := func() error {
		events.Close()
		return errors.Join(store.Close(), logger.Close())
	}

	return &cli.Services{
		SyncManager:   manager,
		Reconciler:    reconciler,
		Status:        status,
		ChangeTracker: tracker,
		ConfigStore:   configStore,
		Daemon:        daemon,
	}, cleanup, nil
}
