// Package config handles loading and saving satlas configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/satlas/config.yaml
//   - Data:    ~/.local/share/satlas/ (position cache)
//   - State:   ~/.local/state/satlas/ (wizard history)
//
// Every empirically tuned engine constant lives here rather than in code:
// force gains, alpha schedule, cluster thresholds, label LOD cutoffs, and
// the frame/admission budgets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PhysicsConfig tunes the force simulation.
type PhysicsConfig struct {
	Repulsion          float64 `yaml:"repulsion,omitempty"`            // inverse-square repulsion gain
	SpringLength       float64 `yaml:"spring_length,omitempty"`        // rest length of link springs, world units
	SpringStiffness    float64 `yaml:"spring_stiffness,omitempty"`     // spring constant per unit strength
	ParentLinkStrength float64 `yaml:"parent_link_strength,omitempty"` // strength assigned to implicit taxonomy edges
	CenterGravity      float64 `yaml:"center_gravity,omitempty"`       // weak pull toward the layout origin
	Damping            float64 `yaml:"damping,omitempty"`              // velocity multiplier per tick (0-1)
	Theta              float64 `yaml:"theta,omitempty"`                // Barnes-Hut accuracy (lower = more exact)
	AlphaDecay         float64 `yaml:"alpha_decay,omitempty"`          // energy decay rate per tick
	AlphaMin           float64 `yaml:"alpha_min,omitempty"`            // settle threshold
	AlphaBoost         float64 `yaml:"alpha_boost,omitempty"`          // reheat applied on insertion/unpin
	CollisionStrength  float64 `yaml:"collision_strength,omitempty"`   // overlap separation factor (0-1)
}

// LoaderConfig tunes progressive disclosure.
type LoaderConfig struct {
	CoreLimit        int     `yaml:"core_limit,omitempty"`         // max nodes in the core tier
	AdmitBudgetMS    float64 `yaml:"admit_budget_ms,omitempty"`    // per-frame admission budget
	BatchMin         int     `yaml:"batch_min,omitempty"`          // adaptive batch floor
	BatchMax         int     `yaml:"batch_max,omitempty"`          // adaptive batch ceiling
	ViewportBufferPx float64 `yaml:"viewport_buffer_px,omitempty"` // viewport-tier margin, screen pixels
	WeightDegree     float64 `yaml:"weight_degree,omitempty"`      // importance: connection count
	WeightDepth      float64 `yaml:"weight_depth,omitempty"`       // importance: inverse depth
	WeightMetric     float64 `yaml:"weight_metric,omitempty"`      // importance: normalized metric
}

// SpatialConfig tunes the quadtree, clustering, and culling.
type SpatialConfig struct {
	ClusterZoom   float64 `yaml:"cluster_zoom,omitempty"`    // cluster when scale drops below this
	ClusterRadius float64 `yaml:"cluster_radius,omitempty"`  // merge distance, world units
	CullBufferPx  float64 `yaml:"cull_buffer_px,omitempty"`  // culling margin, screen pixels
	LeafCapacity  int     `yaml:"leaf_capacity,omitempty"`   // max bodies per quadtree leaf
}

// RenderConfig tunes the draw pipeline.
type RenderConfig struct {
	MinZoomForLabels float64 `yaml:"min_zoom_for_labels,omitempty"` // labels only above this scale
	LabelMinRadius   float64 `yaml:"label_min_radius,omitempty"`    // or below this radius, unless hovered/selected
	MinRadius        float64 `yaml:"min_radius,omitempty"`
	MaxRadius        float64 `yaml:"max_radius,omitempty"`
	RadiusScale      float64 `yaml:"radius_scale,omitempty"`
	Theme            string  `yaml:"theme,omitempty"` // dark, light
}

// InteractConfig tunes pointer handling.
type InteractConfig struct {
	MinScale        float64 `yaml:"min_scale,omitempty"`
	MaxScale        float64 `yaml:"max_scale,omitempty"`
	DragThresholdPx float64 `yaml:"drag_threshold_px,omitempty"` // movement below this is a click
	ZoomSensitivity float64 `yaml:"zoom_sensitivity,omitempty"`  // wheel delta divisor
}

// EngineConfig tunes the frame loop.
type EngineConfig struct {
	FrameBudgetMS      float64 `yaml:"frame_budget_ms,omitempty"`       // whole-frame target
	PerfModeTripFrames int     `yaml:"perf_mode_trip_frames,omitempty"` // consecutive overruns before perf mode
	TargetFPS          int     `yaml:"target_fps,omitempty"`            // TUI host tick rate
}

// Config is the top-level configuration for satlas.
type Config struct {
	Physics  PhysicsConfig  `yaml:"physics,omitempty"`
	Loader   LoaderConfig   `yaml:"loader,omitempty"`
	Spatial  SpatialConfig  `yaml:"spatial,omitempty"`
	Render   RenderConfig   `yaml:"render,omitempty"`
	Interact InteractConfig `yaml:"interact,omitempty"`
	Engine   EngineConfig   `yaml:"engine,omitempty"`

	// DataPath is the default dataset when --data is not given.
	DataPath string `yaml:"data_path,omitempty"`
	// PositionsPath overrides the position-cache location.
	PositionsPath string `yaml:"positions_path,omitempty"`
}

// DefaultConfig returns a Config with the tuning the engine ships with.
func DefaultConfig() Config {
	return Config{
		Physics: PhysicsConfig{
			Repulsion:          2000,
			SpringLength:       80,
			SpringStiffness:    0.05,
			ParentLinkStrength: 0.7,
			CenterGravity:      0.01,
			Damping:            0.85,
			Theta:              0.5,
			AlphaDecay:         0.02,
			AlphaMin:           0.003,
			AlphaBoost:         0.3,
			CollisionStrength:  0.7,
		},
		Loader: LoaderConfig{
			CoreLimit:        100,
			AdmitBudgetMS:    4,
			BatchMin:         8,
			BatchMax:         256,
			ViewportBufferPx: 200,
			WeightDegree:     1.0,
			WeightDepth:      2.0,
			WeightMetric:     1.5,
		},
		Spatial: SpatialConfig{
			ClusterZoom:   0.5,
			ClusterRadius: 40,
			CullBufferPx:  100,
			LeafCapacity:  8,
		},
		Render: RenderConfig{
			MinZoomForLabels: 0.8,
			LabelMinRadius:   8,
			MinRadius:        4,
			MaxRadius:        28,
			RadiusScale:      0.6,
			Theme:            "dark",
		},
		Interact: InteractConfig{
			MinScale:        0.2,
			MaxScale:        5.0,
			DragThresholdPx: 3,
			ZoomSensitivity: 500,
		},
		Engine: EngineConfig{
			FrameBudgetMS:      16,
			PerfModeTripFrames: 30,
			TargetFPS:          30,
		},
	}
}

// ConfigDir returns the XDG config directory for satlas.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "satlas")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "satlas")
}

// DataDir returns the XDG data directory for satlas.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "satlas")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "satlas")
}

// StateDir returns the XDG state directory for satlas.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "satlas")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "satlas")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultPositionsPath returns the position-cache location used when the
// config does not override it.
func DefaultPositionsPath() string {
	dir := DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "positions.db")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist. Fields absent from the
// file keep their defaults, so partial configs are fine.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.DataPath = expandHome(cfg.DataPath)
	cfg.PositionsPath = expandHome(cfg.PositionsPath)

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
