package plexus

import (
	"time"
)

type Time struct {
	Time    time.Time
	Dt      time.Duration
	Elapsed time.Duration
	Ticks   uint64
	FixedDt time.Duration // 0 = wall clock
}

func (t *Time) DtSeconds() float32      { return float32(t.Dt.Seconds()) }
func (t *Time) ElapsedSeconds() float32 { return float32(t.Elapsed.Seconds()) }

// TimeModule advances Time at the start of every tick. A FixedDt makes headless runs
// reproducible.
type TimeModule struct {
	FixedDt time.Duration
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{
		Time:    time.Now(),
		FixedDt: mod.FixedDt,
	})
	cmd.UseSystem(System(timeSystem).InStage(Prelude).RunAlways())
}

func timeSystem(t *Time) {
	now := time.Now()
	if t.FixedDt > 0 {
		t.Dt = t.FixedDt
	} else {
		t.Dt = now.Sub(t.Time)
	}
	t.Time = now
	t.Elapsed += t.Dt
	t.Ticks++
}
