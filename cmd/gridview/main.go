// Command gridview draws the penalty field of the configured grid in the
// terminal, with a planned path on top. With -snapshot it draws the newest
// snapshot navd stored in the database instead of building the field locally.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/timbernav/internal/config"
	"github.com/udisondev/timbernav/internal/db"
	"github.com/udisondev/timbernav/internal/nav/grid"
	"github.com/udisondev/timbernav/internal/nav/pathfind"
)

func main() {
	var (
		cfgPath   = flag.String("config", config.Path(), "navigation config file")
		scenePath = flag.String("scene", "", "extra YAML scene file with obstacles and patches")
		from      = flag.String("from", "", "path start as x,z (default: bottom-left corner)")
		to        = flag.String("to", "", "path goal as x,z (default: top-right corner)")
		logPath   = flag.String("log", "", "write logs to this file")
		stored    = flag.Bool("snapshot", false, "draw the newest grid snapshot stored in the database")
	)
	flag.Parse()

	if err := run(*cfgPath, *scenePath, *from, *to, *logPath, *stored); err != nil {
		fmt.Fprintln(os.Stderr, "gridview:", err)
		os.Exit(1)
	}
}

func run(cfgPath, scenePath, from, to, logPath string, stored bool) error {
	cfg, err := config.LoadNav(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The terminal belongs to tcell; logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return fmt.Errorf("creating log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	if scenePath != "" {
		extra, err := loadSceneFile(scenePath)
		if err != nil {
			return err
		}
		cfg.Scene.Obstacles = append(cfg.Scene.Obstacles, extra.Obstacles...)
		cfg.Scene.Patches = append(cfg.Scene.Patches, extra.Patches...)
	}

	scene, err := cfg.BuildScene()
	if err != nil {
		return fmt.Errorf("building scene: %w", err)
	}
	g, err := grid.New(cfg.GridOptions(), scene)
	if err != nil {
		return fmt.Errorf("building grid: %w", err)
	}

	centre := cfg.Grid.Centre.Vec()
	half := cfg.Grid.WorldSize.Vec().Mul(0.5)
	start, err := parsePoint(from, centre.Add(mgl32.Vec3{-half.X(), 0, -half.Y()}))
	if err != nil {
		return fmt.Errorf("parsing -from: %w", err)
	}
	goal, err := parsePoint(to, centre.Add(mgl32.Vec3{half.X(), 0, half.Y()}))
	if err != nil {
		return fmt.Errorf("parsing -to: %w", err)
	}

	res, err := pathfind.New(g, cfg.Costs()).FindPath(context.Background(), start, goal)
	if err != nil {
		return fmt.Errorf("planning path: %w", err)
	}
	slog.Info("path planned", "found", res.Found, "cost", res.Cost, "waypoints", len(res.Waypoints))

	lo, hi := g.PenaltyRange()
	v := view{
		snap:  g.Snapshot(),
		lo:    lo,
		hi:    hi,
		start: g.PositionFromWorldPoint(start),
		goal:  g.PositionFromWorldPoint(goal),
		res:   res,
	}
	for _, wp := range res.Waypoints {
		v.waypoints = append(v.waypoints, g.PositionFromWorldPoint(wp))
	}

	if stored {
		snap, err := loadStoredSnapshot(context.Background(), cfg.Database.DSN())
		if err != nil {
			return err
		}
		if snap.SizeX != v.snap.SizeX || snap.SizeY != v.snap.SizeY {
			slog.Warn("stored snapshot does not match configured grid, hiding path",
				"stored_x", snap.SizeX, "stored_y", snap.SizeY,
				"grid_x", v.snap.SizeX, "grid_y", v.snap.SizeY)
			v.waypoints = nil
			v.res = pathfind.Result{}
		}
		v.snap = snap
		v.lo, v.hi = snap.PenaltyRange()
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer screen.Fini()

	v.draw(screen)
	for {
		switch ev := screen.PollEvent().(type) {
		case *tcell.EventResize:
			screen.Sync()
			v.draw(screen)
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				return nil
			}
		case nil:
			return nil
		}
	}
}

func loadStoredSnapshot(ctx context.Context, dsn string) (grid.Snapshot, error) {
	database, err := db.New(ctx, dsn)
	if err != nil {
		return grid.Snapshot{}, fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	row, err := db.NewSnapshotRepository(database.Pool()).LoadLatest(ctx)
	if err != nil {
		return grid.Snapshot{}, fmt.Errorf("loading snapshot: %w", err)
	}
	if row == nil {
		return grid.Snapshot{}, errors.New("no grid snapshot stored")
	}
	slog.Info("stored snapshot loaded", "id", row.ID, "created_at", row.CreatedAt)
	return row.Snapshot, nil
}

func loadSceneFile(path string) (config.SceneConfig, error) {
	var sc config.SceneConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("reading scene %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("parsing scene %s: %w", path, err)
	}
	return sc, nil
}

// parsePoint reads "x,z". An empty string yields def.
func parsePoint(s string, def mgl32.Vec3) (mgl32.Vec3, error) {
	if s == "" {
		return def, nil
	}
	xs, zs, ok := strings.Cut(s, ",")
	if !ok {
		return mgl32.Vec3{}, fmt.Errorf("point %q: want x,z", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 32)
	if err != nil {
		return mgl32.Vec3{}, fmt.Errorf("point %q: %w", s, err)
	}
	z, err := strconv.ParseFloat(strings.TrimSpace(zs), 32)
	if err != nil {
		return mgl32.Vec3{}, fmt.Errorf("point %q: %w", s, err)
	}
	return mgl32.Vec3{float32(x), 0, float32(z)}, nil
}
