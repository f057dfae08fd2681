package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tcpchess/chessd/internal/config"
	"github.com/tcpchess/chessd/internal/db"
	"github.com/tcpchess/chessd/internal/match"
	"github.com/tcpchess/chessd/internal/server"
	"github.com/tcpchess/chessd/internal/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("chessd starting")

	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded",
		"bind", cfg.BindAddress, "port", cfg.Port,
		"storage", cfg.Storage.Backend, "elo_threshold", cfg.EloThreshold)

	users, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening user store: %w", err)
	}
	defer cleanup()

	clients := server.NewClients()
	manager := match.NewManager(clients, users, cfg.EloThreshold, cfg.MatchInterval)
	handler := server.NewHandler(clients, users, manager)
	srv := server.NewServer(cfg, clients, handler)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("chess server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := manager.Run(gctx); err != nil {
			return fmt.Errorf("matchmaker: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// openStore selects the user-store backend from config: the JSON file is
// the default, Postgres is opt-in. The cleanup closes backend resources
// after the servers drain.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		dsn := cfg.Storage.Database.DSN()
		database, err := db.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := db.RunMigrations(ctx, dsn); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("postgres user store ready", "host", cfg.Storage.Database.Host)
		return db.NewUserStore(database, cfg.DefaultElo), database.Close, nil

	case config.BackendJSON, "":
		users, err := store.OpenJSON(cfg.Storage.UsersPath, cfg.DefaultElo)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", cfg.Storage.UsersPath, err)
		}
		slog.Info("json user store ready", "path", cfg.Storage.UsersPath)
		return users, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
