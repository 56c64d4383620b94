package plexus

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsModule_Observe(t *testing.T) {
	fake := &fakePipeline{count: 12, attempts: 20}
	cfg := DefaultConfig()
	cfg.DebugText = true
	app := buildPlexusApp(
		PlexusModule{Config: cfg, NewPipeline: fakeFactory(fake), MaxTicks: 3},
		MetricsModule{},
	)

	app.Run()

	m := Resource[Metrics](app)
	require.NotNil(t, m)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Ticks))
	assert.Equal(t, float64(12), testutil.ToFloat64(m.LinesEmitted))
	assert.Equal(t, float64(8), testutil.ToFloat64(m.LinesDropped))
	n, err := testutil.GatherAndCount(m.Registry)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMetrics_LinesNeedReadback(t *testing.T) {
	m := NewMetrics()
	m.Observe(&PlexusState{Ticks: 1})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Ticks))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.LinesEmitted))
}

func TestMetrics_Serve(t *testing.T) {
	m := NewMetrics()
	m.Ticks.Add(5)
	require.NoError(t, m.Serve("127.0.0.1:0", NewNopLogger()))
	defer m.Shutdown()

	resp, err := http.Get("http://" + m.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "plexus_ticks_total 5"))
}
