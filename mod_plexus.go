package plexus

import (
	"sync"
	"time"

	rtapp "github.com/gekko3d/plexus/plexusrt/rt/app"
	"github.com/gekko3d/plexus/plexusrt/rt/pipeline"
)

const (
	StateRunning State = iota
	StateStopped
)

// PlexusState is the running pipeline plus the live config. SetConfig may be called from
// another goroutine (the config watcher); everything else runs on the app goroutine.
type PlexusState struct {
	mu     sync.Mutex
	config Config

	Pipeline Pipeline
	Err      error

	LastCount    uint32
	LastStats    pipeline.ReadbackStats
	HasReadback  bool
	Ticks        uint64
	LastTickTime time.Duration

	tickStart time.Time
}

func (s *PlexusState) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// SetConfig applies the runtime parameters of cfg. Capacity fields keep their start-up
// values since the buffers are already allocated.
func (s *PlexusState) SetConfig(cfg Config) {
	cfg = cfg.Clamp()
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.ParticleCount = s.config.ParticleCount
	cfg.MaxLines = s.config.MaxLines
	cfg.VertexSource = s.config.VertexSource
	cfg.Backend = s.config.Backend
	cfg.Workers = s.config.Workers
	cfg.Seed = s.config.Seed
	cfg.FixedDt = s.config.FixedDt
	s.config = cfg
}

// PlexusModule runs simulate in Update, extract in PostUpdate, line generation and draw
// args in PreRender, and the optional readback in PostRender. It needs an app built with
// UseStates(StateRunning, StateStopped); leaving StateStopped releases the pipeline.
type PlexusModule struct {
	Config      Config
	NewPipeline PipelineFactory // nil = NewPipeline
	MaxTicks    uint64          // 0 = until stopped
}

func (mod PlexusModule) Install(app *App, cmd *Commands) {
	factory := mod.NewPipeline
	if factory == nil {
		factory = NewPipeline
	}
	state := &PlexusState{config: mod.Config.Clamp()}
	cmd.AddResources(state, rtapp.NewProfiler())

	cmd.UseSystem(
		System(func(cmd *Commands, state *PlexusState) {
			plexusStartSystem(cmd, state, factory)
		}).InStage(Prelude).InState(OnEnter(StateRunning)),
	)
	cmd.UseSystem(System(plexusSimulateSystem).InStage(Update).InState(OnExecute(StateRunning)))
	cmd.UseSystem(System(plexusExtractSystem).InStage(PostUpdate).InState(OnExecute(StateRunning)))
	cmd.UseSystem(System(plexusLinesSystem).InStage(PreRender).InState(OnExecute(StateRunning)))
	cmd.UseSystem(System(plexusReadbackSystem).InStage(PostRender).InState(OnExecute(StateRunning)))
	cmd.UseSystem(
		System(func(cmd *Commands, state *PlexusState, t *Time) {
			plexusFinaleSystem(cmd, state, t, mod.MaxTicks)
		}).InStage(Finale).InState(OnExecute(StateRunning)),
	)
	cmd.UseSystem(System(plexusTeardownSystem).InStage(Finale).InState(OnExit(StateStopped)))
}

func plexusStartSystem(cmd *Commands, state *PlexusState, factory PipelineFactory) {
	cfg := state.Config()
	p, err := factory(cfg, cmd.Logger())
	if err != nil {
		cmd.Logger().Errorf("pipeline start failed: %v", err)
		state.Err = err
		cmd.ChangeState(StateStopped)
		return
	}
	for _, fault := range p.Faults() {
		cmd.Logger().Warnf("stage disabled: %v", fault)
	}
	state.Pipeline = p
	cmd.Logger().Infof("plexus running: backend=%s source=%s particles=%d maxLines=%d",
		cfg.Backend, cfg.VertexSource, cfg.ParticleCount, cfg.MaxLines)
}

// stop records the first submission error and ends the run.
func (s *PlexusState) stop(cmd *Commands, err error) {
	cmd.Logger().Errorf("%v", err)
	if s.Err == nil {
		s.Err = err
	}
	cmd.ChangeState(StateStopped)
}

func plexusSimulateSystem(cmd *Commands, state *PlexusState, t *Time, prof *rtapp.Profiler) {
	state.tickStart = time.Now()
	if state.Pipeline == nil {
		return
	}
	cfg := state.Config()
	prof.BeginScope("simulate")
	err := state.Pipeline.Simulate(cfg.SimParams(t.DtSeconds(), t.ElapsedSeconds()))
	prof.EndScope("simulate")
	if err != nil {
		state.stop(cmd, err)
	}
}

func plexusExtractSystem(cmd *Commands, state *PlexusState, prof *rtapp.Profiler) {
	if state.Pipeline == nil {
		return
	}
	prof.BeginScope("extract")
	err := state.Pipeline.Extract()
	prof.EndScope("extract")
	if err != nil {
		state.stop(cmd, err)
	}
}

func plexusLinesSystem(cmd *Commands, state *PlexusState, prof *rtapp.Profiler) {
	if state.Pipeline == nil {
		return
	}
	cfg := state.Config()
	prof.BeginScope("generate lines")
	err := state.Pipeline.GenerateLines(cfg.LineParams())
	prof.EndScope("generate lines")
	if err != nil {
		state.stop(cmd, err)
		return
	}
	prof.BeginScope("prepare draw args")
	err = state.Pipeline.PrepareDrawArgs()
	prof.EndScope("prepare draw args")
	if err != nil {
		state.stop(cmd, err)
	}
}

// plexusReadbackSystem is the only place that waits on the device, and only while the
// debug text is on.
func plexusReadbackSystem(cmd *Commands, state *PlexusState, prof *rtapp.Profiler) {
	if state.Pipeline == nil || !state.Config().DebugText {
		state.HasReadback = false
		return
	}
	prof.BeginScope("readback")
	count, err := state.Pipeline.ReadBackCount()
	if err == nil {
		state.LastStats, err = state.Pipeline.ReadBackStats()
	}
	prof.EndScope("readback")
	if err != nil {
		state.stop(cmd, err)
		return
	}
	state.LastCount = count
	state.HasReadback = true
	prof.SetCount("lines", int(count))
	prof.SetCount("dropped", int(state.LastStats.Dropped))
}

func plexusFinaleSystem(cmd *Commands, state *PlexusState, t *Time, maxTicks uint64) {
	state.Ticks++
	if !state.tickStart.IsZero() {
		state.LastTickTime = time.Since(state.tickStart)
	}
	if maxTicks > 0 && state.Ticks >= maxTicks {
		cmd.Logger().Infof("stopping after %d ticks (%.3fs simulated)", state.Ticks, t.ElapsedSeconds())
		cmd.ChangeState(StateStopped)
	}
}

func plexusTeardownSystem(cmd *Commands, state *PlexusState, prof *rtapp.Profiler) {
	if state.Pipeline == nil {
		return
	}
	state.Pipeline.Release()
	state.Pipeline = nil
	if cmd.Logger().DebugEnabled() {
		cmd.Logger().Debugf("%s", prof.GetStatsString())
	}
	cmd.Logger().Infof("plexus stopped after %d ticks", state.Ticks)
}
