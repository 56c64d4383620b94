package plexus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rtapp "github.com/gekko3d/plexus/plexusrt/rt/app"
	"github.com/gekko3d/plexus/plexusrt/rt/core"
	"github.com/gekko3d/plexus/plexusrt/rt/pipeline"
)

type fakePipeline struct {
	calls    []string
	sims     []core.SimParams
	lines    []core.LineParams
	count    uint32
	attempts uint32
	faults   []error
	simErr   error
	released int
}

func (f *fakePipeline) Simulate(p core.SimParams) error {
	f.calls = append(f.calls, "simulate")
	f.sims = append(f.sims, p)
	return f.simErr
}

func (f *fakePipeline) Extract() error {
	f.calls = append(f.calls, "extract")
	return nil
}

func (f *fakePipeline) GenerateLines(p core.LineParams) error {
	f.calls = append(f.calls, "generate")
	f.lines = append(f.lines, p)
	return nil
}

func (f *fakePipeline) PrepareDrawArgs() error {
	f.calls = append(f.calls, "args")
	return nil
}

func (f *fakePipeline) ReadBackCount() (uint32, error) {
	f.calls = append(f.calls, "readback")
	return f.count, nil
}

func (f *fakePipeline) ReadBackStats() (pipeline.ReadbackStats, error) {
	stats := pipeline.ReadbackStats{Emitted: f.count, Attempts: f.attempts}
	if f.attempts > f.count {
		stats.Dropped = f.attempts - f.count
	}
	return stats, nil
}

func (f *fakePipeline) Faults() []error { return f.faults }
func (f *fakePipeline) Release()        { f.released++ }

func fakeFactory(f *fakePipeline) PipelineFactory {
	return func(cfg Config, log Logger) (Pipeline, error) { return f, nil }
}

func buildPlexusApp(mod PlexusModule, extra ...Module) *App {
	modules := append([]Module{
		TimeModule{FixedDt: 16 * time.Millisecond},
		mod,
	}, extra...)
	return NewAppBuilder().
		UseStates(StateRunning, StateStopped).
		UseModule(modules...).
		Build()
}

func TestPlexusModule_StageOrder(t *testing.T) {
	fake := &fakePipeline{count: 7, attempts: 9}
	cfg := DefaultConfig()
	cfg.DebugText = true
	app := buildPlexusApp(PlexusModule{Config: cfg, NewPipeline: fakeFactory(fake), MaxTicks: 2})

	app.Run()

	assert.Equal(t, []string{
		"simulate", "extract", "generate", "args", "readback",
		"simulate", "extract", "generate", "args", "readback",
	}, fake.calls)
	assert.Equal(t, 1, fake.released)

	state := Resource[PlexusState](app)
	require.NotNil(t, state)
	assert.Nil(t, state.Pipeline)
	assert.Equal(t, uint64(2), state.Ticks)
	assert.Equal(t, uint32(7), state.LastCount)
	assert.Equal(t, uint32(2), state.LastStats.Dropped)
	assert.NoError(t, state.Err)

	require.Len(t, fake.sims, 2)
	assert.InDelta(t, 0.016, fake.sims[0].Dt, 1e-6)
	assert.InDelta(t, 0.032, fake.sims[1].Elapsed, 1e-6)
	assert.Equal(t, core.LineParams{MinDist: 0.1, MaxDist: 0.3}, fake.lines[0])
}

func TestPlexusModule_ReadbackOnlyWithDebugText(t *testing.T) {
	fake := &fakePipeline{count: 5}
	app := buildPlexusApp(PlexusModule{Config: DefaultConfig(), NewPipeline: fakeFactory(fake), MaxTicks: 3})

	app.Run()

	assert.NotContains(t, fake.calls, "readback")
	assert.False(t, Resource[PlexusState](app).HasReadback)
}

func TestPlexusModule_StartFailureStops(t *testing.T) {
	boom := errors.New("no adapter")
	app := buildPlexusApp(PlexusModule{
		Config: DefaultConfig(),
		NewPipeline: func(cfg Config, log Logger) (Pipeline, error) {
			return nil, boom
		},
	})

	app.Run()

	assert.True(t, app.Stopped())
	assert.ErrorIs(t, Resource[PlexusState](app).Err, boom)
}

func TestPlexusModule_SubmitErrorStops(t *testing.T) {
	fake := &fakePipeline{simErr: errors.New("device lost")}
	app := buildPlexusApp(PlexusModule{Config: DefaultConfig(), NewPipeline: fakeFactory(fake)})

	app.Run()

	assert.True(t, app.Stopped())
	assert.EqualError(t, Resource[PlexusState](app).Err, "device lost")
	assert.Equal(t, 1, fake.released)
}

func TestPlexusModule_ConfigChangesApplyNextTick(t *testing.T) {
	fake := &fakePipeline{}
	app := buildPlexusApp(PlexusModule{Config: DefaultConfig(), NewPipeline: fakeFactory(fake), MaxTicks: 2})
	state := Resource[PlexusState](app)

	require.True(t, app.Step())
	next := state.Config()
	next.MinDist, next.MaxDist = 0.5, 1.5
	state.SetConfig(next)
	app.Step()

	require.Len(t, fake.lines, 2)
	assert.Equal(t, core.LineParams{MinDist: 0.5, MaxDist: 1.5}, fake.lines[1])
}

func TestPlexusState_SetConfigKeepsCapacities(t *testing.T) {
	start := DefaultConfig()
	start.ParticleCount = 512
	state := &PlexusState{config: start}

	next := DefaultConfig()
	next.ParticleCount = 64
	next.MaxLines = 10
	next.Backend = BackendWebGPU
	next.Throttle = 3
	state.SetConfig(next)

	got := state.Config()
	assert.Equal(t, 512, got.ParticleCount)
	assert.Equal(t, core.MaxLineNum, got.MaxLines)
	assert.Equal(t, BackendCompute, got.Backend)
	assert.Equal(t, float32(1), got.Throttle)
}

func TestPlexusModule_ComputeBackend(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{name: "particles", source: "particles"},
		{name: "random", source: "random"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ParticleCount = 256
			cfg.MaxLines = 4096
			cfg.MinDist, cfg.MaxDist = 0, 2
			cfg.VertexSource = tt.source
			cfg.DebugText = true
			cfg.Seed = 7
			app := buildPlexusApp(PlexusModule{Config: cfg, MaxTicks: 4})

			app.Run()

			state := Resource[PlexusState](app)
			require.NoError(t, state.Err)
			assert.True(t, state.HasReadback)
			assert.Positive(t, state.LastCount)
			assert.LessOrEqual(t, state.LastCount, uint32(cfg.MaxLines))
			assert.Equal(t, state.LastCount, state.LastStats.Emitted)
			assert.Nil(t, state.Pipeline)

			prof := Resource[rtapp.Profiler](app)
			assert.Contains(t, prof.GetStatsString(), "generate lines")
		})
	}
}

func TestNewPipeline_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		edit func(c *Config)
	}{
		{name: "backend", edit: func(c *Config) { c.Backend = "metal" }},
		{name: "external without buffer", edit: func(c *Config) { c.VertexSource = "external" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ParticleCount = 16
			tt.edit(&cfg)
			_, err := NewPipeline(cfg, NewNopLogger())
			assert.Error(t, err)
		})
	}
}
