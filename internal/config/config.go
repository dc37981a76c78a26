package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/timbernav/internal/nav/grid"
	"github.com/udisondev/timbernav/internal/nav/pathfind"
	"github.com/udisondev/timbernav/internal/nav/route"
	"github.com/udisondev/timbernav/internal/terrain"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "TIMBERNAV_CONFIG"

// DefaultPath is used when EnvConfigPath is unset.
const DefaultPath = "config/navigation.yaml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid navigation config")

// Nav holds all configuration for the navigation service.
type Nav struct {
	LogLevel string `yaml:"log_level"`

	Grid        GridConfig        `yaml:"grid"`
	Pathfinding PathfindingConfig `yaml:"pathfinding"`
	Terrain     []TerrainLayer    `yaml:"terrain"`
	Follower    FollowerConfig    `yaml:"follower"`
	Scene       SceneConfig       `yaml:"scene"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// SnapshotInterval is how often navd persists the grid (0 = never).
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// Vec2 is a ground-plane point; Y maps to world Z.
type Vec2 struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
}

// Vec returns v as an mgl32 vector.
func (v Vec2) Vec() mgl32.Vec2 { return mgl32.Vec2{v.X, v.Y} }

// Vec3 is a world point.
type Vec3 struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
	Z float32 `yaml:"z"`
}

// Vec returns v as an mgl32 vector.
func (v Vec3) Vec() mgl32.Vec3 { return mgl32.Vec3{v.X, v.Y, v.Z} }

// GridConfig sizes and samples the pathfinding grid.
type GridConfig struct {
	Centre                   Vec3    `yaml:"centre"`
	WorldSize                Vec2    `yaml:"world_size"`
	NodeRadius               float32 `yaml:"node_radius"`
	ObstacleProximityPenalty int     `yaml:"obstacle_proximity_penalty"`
	BlurSize                 int     `yaml:"blur_size"`
	RegionScale              int     `yaml:"region_scale"`
}

// PathfindingConfig holds the step costs.
type PathfindingConfig struct {
	AdjacentCost int `yaml:"adjacent_cost"`
	DiagonalCost int `yaml:"diagonal_cost"`
}

// TerrainLayer gives a walkable layer its movement penalty.
type TerrainLayer struct {
	Layer   int    `yaml:"layer"`
	Name    string `yaml:"name"`
	Penalty int    `yaml:"penalty"`
}

// FollowerConfig tunes walkers and the paths built for them.
type FollowerConfig struct {
	Speed            float32 `yaml:"speed"`
	TurnSpeed        float32 `yaml:"turn_speed"`
	TurnDistance     float32 `yaml:"turn_distance"`
	StoppingDistance float32 `yaml:"stopping_distance"`
}

// SceneConfig lists the obstacles and terrain patches present at startup.
type SceneConfig struct {
	Obstacles []RectEntry  `yaml:"obstacles"`
	Patches   []PatchEntry `yaml:"patches"`
}

// RectEntry is an obstacle footprint. ID is optional.
type RectEntry struct {
	ID  string `yaml:"id"`
	Min Vec2   `yaml:"min"`
	Max Vec2   `yaml:"max"`
}

// PatchEntry paints a terrain layer.
type PatchEntry struct {
	Layer int  `yaml:"layer"`
	Min   Vec2 `yaml:"min"`
	Max   Vec2 `yaml:"max"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultNav returns Nav config with sensible defaults.
func DefaultNav() Nav {
	return Nav{
		LogLevel: "info",
		Grid: GridConfig{
			WorldSize:                Vec2{X: 60, Y: 60},
			NodeRadius:               0.5,
			ObstacleProximityPenalty: grid.DefaultObstacleProximityPenalty,
			BlurSize:                 grid.DefaultBlurSize,
			RegionScale:              grid.DefaultRegionScale,
		},
		Pathfinding: PathfindingConfig{
			AdjacentCost: pathfind.DefaultAdjacentCost,
			DiagonalCost: pathfind.DefaultDiagonalCost,
		},
		Follower: FollowerConfig{
			Speed:            20,
			TurnSpeed:        3,
			TurnDistance:     5,
			StoppingDistance: 10,
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "timbernav",
			Password: "timbernav",
			DBName:   "timbernav",
			SSLMode:  "disable",
		},
		SnapshotInterval: 5 * time.Minute,
	}
}

// Path returns the config path from EnvConfigPath, or DefaultPath.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// LoadNav loads navigation config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadNav(path string) (Nav, error) {
	cfg := DefaultNav()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values the grid and planner cannot work with.
func (n Nav) Validate() error {
	g := n.Grid
	if g.WorldSize.X <= 0 || g.WorldSize.Y <= 0 {
		return fmt.Errorf("grid.world_size must be positive: %w", ErrInvalid)
	}
	if g.NodeRadius <= 0 {
		return fmt.Errorf("grid.node_radius must be positive: %w", ErrInvalid)
	}
	if g.BlurSize < 0 {
		return fmt.Errorf("grid.blur_size must not be negative: %w", ErrInvalid)
	}
	if g.RegionScale < 1 {
		return fmt.Errorf("grid.region_scale must be at least 1: %w", ErrInvalid)
	}
	if n.Pathfinding.AdjacentCost <= 0 || n.Pathfinding.DiagonalCost <= 0 {
		return fmt.Errorf("pathfinding step costs must be positive: %w", ErrInvalid)
	}

	seen := make(map[int]bool, len(n.Terrain))
	for _, l := range n.Terrain {
		if l.Layer < 0 {
			return fmt.Errorf("terrain layer %d must not be negative: %w", l.Layer, ErrInvalid)
		}
		if seen[l.Layer] {
			return fmt.Errorf("duplicate terrain layer %d: %w", l.Layer, ErrInvalid)
		}
		seen[l.Layer] = true
	}

	for _, o := range n.Scene.Obstacles {
		if o.ID == "" {
			continue
		}
		if _, err := uuid.Parse(o.ID); err != nil {
			return fmt.Errorf("scene obstacle id %q: %w", o.ID, ErrInvalid)
		}
	}
	return nil
}

// TerrainPenalties maps layer ids to penalties.
func (n Nav) TerrainPenalties() map[int]int {
	out := make(map[int]int, len(n.Terrain))
	for _, l := range n.Terrain {
		out[l.Layer] = l.Penalty
	}
	return out
}

// GridOptions converts the grid section for grid.New.
func (n Nav) GridOptions() grid.Config {
	return grid.Config{
		Centre:                   n.Grid.Centre.Vec(),
		WorldSize:                n.Grid.WorldSize.Vec(),
		NodeRadius:               n.Grid.NodeRadius,
		ObstacleProximityPenalty: n.Grid.ObstacleProximityPenalty,
		BlurSize:                 n.Grid.BlurSize,
		RegionScale:              n.Grid.RegionScale,
		TerrainPenalties:         n.TerrainPenalties(),
	}
}

// Costs converts the pathfinding section.
func (n Nav) Costs() pathfind.Costs {
	return pathfind.Costs{Adjacent: n.Pathfinding.AdjacentCost, Diagonal: n.Pathfinding.DiagonalCost}
}

// FollowerOptions converts the follower section.
func (n Nav) FollowerOptions() route.FollowerConfig {
	return route.FollowerConfig{
		Speed:            n.Follower.Speed,
		TurnSpeed:        n.Follower.TurnSpeed,
		StoppingDistance: n.Follower.StoppingDistance,
	}
}

// BuildScene creates a terrain scene holding the configured obstacles and patches.
func (n Nav) BuildScene() (*terrain.Scene, error) {
	s := terrain.NewScene()
	for _, o := range n.Scene.Obstacles {
		var id uuid.UUID
		if o.ID != "" {
			parsed, err := uuid.Parse(o.ID)
			if err != nil {
				return nil, fmt.Errorf("scene obstacle id %q: %w", o.ID, err)
			}
			id = parsed
		}
		s.AddObstacle(terrain.Obstacle{
			ID:     id,
			Bounds: terrain.Rect{Min: o.Min.Vec(), Max: o.Max.Vec()},
		})
	}
	for _, p := range n.Scene.Patches {
		if err := s.AddPatch(terrain.Patch{
			Layer:  p.Layer,
			Bounds: terrain.Rect{Min: p.Min.Vec(), Max: p.Max.Vec()},
		}); err != nil {
			return nil, fmt.Errorf("scene patch: %w", err)
		}
	}
	return s, nil
}
