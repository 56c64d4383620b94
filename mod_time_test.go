package plexus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeModule_FixedStep(t *testing.T) {
	app := NewAppBuilder().UseModule(TimeModule{FixedDt: 10 * time.Millisecond}).Build()
	for i := 0; i < 5; i++ {
		app.Step()
	}

	tm := Resource[Time](app)
	require.NotNil(t, tm)
	assert.Equal(t, uint64(5), tm.Ticks)
	assert.Equal(t, 10*time.Millisecond, tm.Dt)
	assert.Equal(t, 50*time.Millisecond, tm.Elapsed)
	assert.InDelta(t, 0.05, tm.ElapsedSeconds(), 1e-6)
	assert.InDelta(t, 0.01, tm.DtSeconds(), 1e-6)
}

func TestTimeSystem_WallClock(t *testing.T) {
	tm := &Time{Time: time.Now().Add(-time.Second)}
	timeSystem(tm)
	assert.GreaterOrEqual(t, tm.Dt, time.Second)
	assert.Equal(t, tm.Dt, tm.Elapsed)
	assert.Equal(t, uint64(1), tm.Ticks)
}
