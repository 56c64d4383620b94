package plexus

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gekko3d/plexus/plexusrt/rt/core"
	"github.com/gekko3d/plexus/plexusrt/rt/pipeline"
)

const (
	BackendCompute = "compute"
	BackendWebGPU  = "webgpu"
)

// Color is RGBA in [0,1], written as a four element list.
type Color [4]float32

// Config holds every tunable of the plexus. Capacities (particleCount, maxLines,
// vertexSource, backend, workers, seed) are read once at start-up; the rest may change
// while running.
type Config struct {
	MinDist   float32 `yaml:"minDist"`
	MaxDist   float32 `yaml:"maxDist"`
	LineColor Color   `yaml:"lineColor"`

	LifeMin           float32 `yaml:"lifeMin"`
	LifeMax           float32 `yaml:"lifeMax"`
	Velocity          float32 `yaml:"velocity"`
	SphereRadius      float32 `yaml:"sphereRadius"`
	SurfaceLayerCount int     `yaml:"surfaceLayerCount"`
	Throttle          float32 `yaml:"throttle"`
	ParticleSize      float32 `yaml:"particleSize"`
	ParticleColor     Color   `yaml:"particleColor"`

	ParticleCount int     `yaml:"particleCount"`
	MaxLines      int     `yaml:"maxLines"`
	VertexSource  string  `yaml:"vertexSource"`
	Backend       string  `yaml:"backend"`
	Workers       int     `yaml:"workers"`
	Seed          int64   `yaml:"seed"`
	DebugText     bool    `yaml:"debugText"`
	FixedDt       float32 `yaml:"fixedDt"` // seconds, 0 = wall clock
}

func DefaultConfig() Config {
	return Config{
		MinDist:           0.1,
		MaxDist:           0.3,
		LineColor:         Color{1, 1, 1, 1},
		LifeMin:           1,
		LifeMax:           2,
		Velocity:          0.1,
		SphereRadius:      5,
		SurfaceLayerCount: 10,
		Throttle:          1,
		ParticleSize:      0.025,
		ParticleColor:     Color{1, 1, 1, 1},
		ParticleCount:     core.NumParticles,
		MaxLines:          core.MaxLineNum,
		VertexSource:      pipeline.SourceParticles.String(),
		Backend:           BackendCompute,
	}
}

// LoadConfig reads a YAML file over DefaultConfig, so missing keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.Clamp(), nil
}

func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func clampF(v, lo, hi float32) float32 {
	if math.IsNaN(float64(v)) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (c Color) clamp() Color {
	for i := range c {
		c[i] = clampF(c[i], 0, 1)
	}
	return c
}

// Clamp returns a copy with every numeric field inside its documented range.
func (c Config) Clamp() Config {
	c.MinDist = clampF(c.MinDist, 0, 10)
	c.MaxDist = clampF(c.MaxDist, 0, 10)
	c.LineColor = c.LineColor.clamp()
	c.LifeMin = clampF(c.LifeMin, 0.1, 10)
	c.LifeMax = clampF(c.LifeMax, 0.1, 10)
	c.Velocity = clampF(c.Velocity, 0, 10)
	c.SphereRadius = clampF(c.SphereRadius, 1, 10)
	c.SurfaceLayerCount = clampI(c.SurfaceLayerCount, 1, 10)
	c.Throttle = clampF(c.Throttle, 0, 1)
	if c.ParticleSize < 0 || math.IsNaN(float64(c.ParticleSize)) {
		c.ParticleSize = 0
	}
	c.ParticleColor = c.ParticleColor.clamp()
	c.ParticleCount = clampI(c.ParticleCount, 1, core.MaxVertexNum)
	c.MaxLines = clampI(c.MaxLines, 1, core.MaxLineNum)
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.FixedDt < 0 || math.IsNaN(float64(c.FixedDt)) {
		c.FixedDt = 0
	}
	return c
}

// Validate checks the enumerated fields; numeric ranges are Clamp's job.
// An external vertex source needs a buffer handle, which only the Go API can supply.
func (c Config) Validate() error {
	source, err := c.Source()
	if err != nil {
		return err
	}
	if source == pipeline.SourceExternal {
		return errors.New("config: vertexSource external needs a buffer from pipeline.Options.ExternalVertices and cannot be set from a config file")
	}
	switch c.Backend {
	case BackendCompute, BackendWebGPU:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	return nil
}

func (c Config) Source() (pipeline.VertexSource, error) {
	for _, s := range []pipeline.VertexSource{pipeline.SourceParticles, pipeline.SourceRandom, pipeline.SourceExternal} {
		if c.VertexSource == s.String() {
			return s, nil
		}
	}
	return 0, fmt.Errorf("config: unknown vertex source %q", c.VertexSource)
}

func (c Config) SimParams(dt, elapsed float32) core.SimParams {
	return core.SimParams{
		Dt:            dt,
		Elapsed:       elapsed,
		LifeMin:       c.LifeMin,
		LifeMax:       c.LifeMax,
		Velocity:      c.Velocity,
		Radius:        c.SphereRadius,
		SurfaceLayers: uint32(c.SurfaceLayerCount),
		Throttle:      c.Throttle,
	}
}

func (c Config) LineParams() core.LineParams {
	return core.LineParams{MinDist: c.MinDist, MaxDist: c.MaxDist}
}

func (c Config) FixedStep() time.Duration {
	return time.Duration(math.Round(float64(c.FixedDt)*1e6)) * time.Microsecond
}

// PipelineOptions maps the start-up fields onto pipeline options.
func (c Config) PipelineOptions(log core.Logger) (pipeline.Options, error) {
	source, err := c.Source()
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.DefaultOptions()
	opts.ParticleCount = c.ParticleCount
	opts.SphereRadius = c.SphereRadius
	opts.Velocity = c.Velocity
	opts.MaxLines = c.MaxLines
	opts.Source = source
	opts.Seed = c.Seed
	opts.Logger = log
	return opts, nil
}
