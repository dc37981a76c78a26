package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/timbernav/internal/config"
	"github.com/udisondev/timbernav/internal/db"
	"github.com/udisondev/timbernav/internal/nav/grid"
	"github.com/udisondev/timbernav/internal/nav/pathfind"
	"github.com/udisondev/timbernav/internal/nav/queue"
	"github.com/udisondev/timbernav/internal/village"
)

// snapshotsKept is how many grid snapshots survive each prune.
const snapshotsKept = 10

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
	// Load config FIRST to determine log level
	cfgPath := config.Path()
	cfg, err := config.LoadNav(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Level is a LevelVar so config reloads can change it
	logLevel := new(slog.LevelVar)
	logLevel.Set(parseLogLevel(cfg.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
	slog.Info("timbernav starting", "config", cfgPath, "log_level", cfg.LogLevel)

	scene, err := cfg.BuildScene()
	if err != nil {
		return fmt.Errorf("building scene: %w", err)
	}

	penalties := cfg.TerrainPenalties()

	var (
		store       village.Store
		terrainRepo *db.TerrainRepository
		snapshots   *db.SnapshotRepository
	)
	if cfg.Database.Enabled {
		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		terrainRepo = db.NewTerrainRepository(database.Pool())
		if err := terrainRepo.Upsert(ctx, cfg.Terrain); err != nil {
			return fmt.Errorf("syncing terrain layers: %w", err)
		}
		penalties, err = terrainRepo.LoadPenalties(ctx)
		if err != nil {
			return fmt.Errorf("loading terrain layers: %w", err)
		}

		store = db.NewStructureRepository(database.Pool())
		snapshots = db.NewSnapshotRepository(database.Pool())
		slog.Info("database ready", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)
	}

	gridCfg := cfg.GridOptions()
	gridCfg.TerrainPenalties = penalties
	navGrid, err := grid.New(gridCfg, scene)
	if err != nil {
		return fmt.Errorf("building grid: %w", err)
	}

	requests := queue.New(pathfind.New(navGrid, cfg.Costs()))
	svc := village.NewService(navGrid, scene, requests, store)
	if _, err := svc.RestoreStructures(ctx); err != nil {
		return fmt.Errorf("restoring structures: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := requests.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("path request queue: %w", err)
		}
		return nil
	})

	watcher, err := config.NewWatcher(cfgPath)
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("config watcher: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			applyReloads(gctx, watcher.Updates(), logLevel, svc, terrainRepo, penalties)
			return nil
		})
	}

	if snapshots != nil && cfg.SnapshotInterval > 0 {
		g.Go(func() error {
			runSnapshots(gctx, svc, snapshots, cfg.SnapshotInterval)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("timbernav stopped", "requests_processed", requests.Processed())
	return nil
}

// applyReloads rebuilds the grid whenever a reloaded config changes the terrain table.
func applyReloads(ctx context.Context, updates <-chan config.Nav, logLevel *slog.LevelVar, svc *village.Service, repo *db.TerrainRepository, current map[int]int) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-updates:
			logLevel.Set(parseLogLevel(cfg.LogLevel))

			next := cfg.TerrainPenalties()
			if repo != nil {
				if err := repo.Upsert(ctx, cfg.Terrain); err != nil {
					slog.Error("syncing reloaded terrain layers", "err", err)
					continue
				}
				merged, err := repo.LoadPenalties(ctx)
				if err != nil {
					slog.Error("loading reloaded terrain layers", "err", err)
					continue
				}
				next = merged
			}
			if maps.Equal(next, current) {
				continue
			}

			started := time.Now()
			svc.ApplyTerrainPenalties(next)
			current = next
			slog.Info("terrain penalties applied", "layers", len(next), "took", time.Since(started))
		}
	}
}

// runSnapshots periodically persists the grid and prunes old snapshots.
func runSnapshots(ctx context.Context, svc *village.Service, repo *db.SnapshotRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("grid snapshot loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("grid snapshot loop stopping")
			return
		case <-ticker.C:
			id, err := repo.Save(ctx, svc.Snapshot())
			if err != nil {
				slog.Error("saving grid snapshot", "err", err)
				continue
			}
			pruned, err := repo.Prune(ctx, snapshotsKept)
			if err != nil {
				slog.Warn("pruning grid snapshots", "err", err)
			}
			slog.Debug("grid snapshot saved", "id", id, "pruned", pruned)
		}
	}
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
