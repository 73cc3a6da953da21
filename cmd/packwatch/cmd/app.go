package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"packwatch/internal/components/db"
	"packwatch/internal/components/telemetry"
	"packwatch/internal/notify"
	"packwatch/internal/scrapers/flaresolverr"
	"packwatch/internal/scrapers/gaijin"
	"packwatch/internal/subscriber"
	"packwatch/internal/watcher"
	"time"

	"github.com/nats-io/nats.go"
)

func newFetcher(cfg Config, tel telemetry.API) (*gaijin.Fetcher, error) {
	opts := gaijin.Options{
		BaseUrl:           cfg.Catalog.Url,
		PageTimeout:       time.Duration(cfg.Catalog.PageTimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
	}
	if cfg.Solver.Url != "" {
		opts.Solver = flaresolverr.NewClient(flaresolverr.Options{
			Endpoint:         cfg.Solver.Url,
			FailureThreshold: cfg.Solver.FailureThreshold,
			Cooldown:         time.Duration(cfg.Solver.CooldownSeconds) * time.Second,
		}, tel)
	} else {
		tel.ReportDebug("no challenge solver configured, blocked pages will fail")
	}
	return gaijin.NewFetcher(opts, tel)
}

func openStore(ctx context.Context, cfg Config, tel telemetry.API) (subscriber.SQLStore, *sql.DB, error) {
	database, err := db.OpenDB(ctx, cfg.Database, subscriber.Schema)
	if err != nil {
		return subscriber.SQLStore{}, nil, fmt.Errorf("open database: %w", err)
	}
	return subscriber.NewSQLStore(database, tel), database, nil
}

func newWatcher(ctx context.Context, cfg Config, tel telemetry.API) (*watcher.Watcher, func(), error) {
	store, database, err := openStore(ctx, cfg, tel)
	if err != nil {
		return nil, nil, err
	}
	fetcher, err := newFetcher(cfg, tel)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	w := watcher.New(store, fetcher, tel)
	if cfg.Concurrency > 0 {
		w.SetConcurrency(cfg.Concurrency)
	}
	return w, func() { database.Close() }, nil
}

// newNotifier combines every configured notifier, events are always printed
// to stdout.
func newNotifier(cfg Config, tel telemetry.API) (notify.Notifier, func(), error) {
	notifiers := notify.Multi{notify.NewTableNotifier(os.Stdout)}
	closers := []func(){}

	if cfg.Email.Smtp.Server != "" {
		notifiers = append(notifiers, notify.NewEmailNotifier(cfg.Email, tel))
	}
	if cfg.Nats.Url != "" {
		conn, err := nats.Connect(cfg.Nats.Url, nats.Name("packwatch"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to nats: %w", err)
		}
		closers = append(closers, func() {
			_ = conn.Drain()
		})
		notifiers = append(notifiers, notify.NewNATSNotifier(conn, cfg.Nats.SubjectPrefix, tel))
	}

	return notifiers, func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}, nil
}
