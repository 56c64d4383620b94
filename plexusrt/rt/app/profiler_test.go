package app

import (
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

// fakeClock advances by step on every reading.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestProfiler_StatsString(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 1500 * time.Microsecond}
	p := NewProfilerWithClock(clock.now)

	for i := 0; i < 2; i++ {
		p.BeginScope("simulate")
		p.EndScope("simulate")
		end := p.Scope("generate lines")
		end()
	}
	p.BeginScope("prepare draw args")
	p.EndScope("prepare draw args")
	p.SetCount("lines", 99)
	p.SetCount("dropped", 0)
	p.SetCount("particles", 16384)

	newGolden(t).Assert(t, "profiler_stats", []byte(p.GetStatsString()))
}

func TestProfiler_EndWithoutBegin(t *testing.T) {
	p := NewProfiler()
	p.EndScope("missing")
	assert.Zero(t, p.Last("missing"))
	assert.NotContains(t, p.GetStatsString(), "missing")
}

func TestProfiler_ResetKeepsOrder(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: time.Millisecond}
	p := NewProfilerWithClock(clock.now)
	p.Scope("b")()
	p.Scope("a")()
	p.SetCount("lines", 3)
	assert.Equal(t, time.Millisecond, p.Last("a"))

	p.Reset()
	assert.Zero(t, p.Last("a"))
	stats := p.GetStatsString()
	assert.Less(t, strings.Index(stats, "  b "), strings.Index(stats, "  a "))
	assert.NotContains(t, stats, "lines")
}
