package plexus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*ZapLogger, *observer.ObservedLogs) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core, logs := observer.New(level)
	return WrapZap(zap.New(core), level), logs
}

func TestZapLogger_Levels(t *testing.T) {
	l, logs := newObservedLogger()

	l.Debugf("hidden %d", 1)
	l.Infof("lines %d", 99)
	l.Warnf("dropped %d", 3)
	l.Errorf("failed: %s", "oom")

	require.Equal(t, 3, logs.Len())
	entries := logs.All()
	assert.Equal(t, "lines 99", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "failed: oom", entries[2].Message)

	assert.False(t, l.DebugEnabled())
	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("visible")
	assert.Equal(t, 1, logs.FilterMessage("visible").Len())
}

func TestNewZapLogger(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		wantErr bool
	}{
		{name: "development", mode: "development"},
		{name: "production", mode: "production"},
		{name: "default", mode: ""},
		{name: "unknown", mode: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewZapLogger(tt.mode, "plexus", true)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, l.DebugEnabled())
			assert.NotNil(t, l.Zap())
		})
	}
}

func TestDefaultLogger_Format(t *testing.T) {
	l := NewDefaultLogger("plexus", false)
	assert.Equal(t, "[plexus] INFO: 99 lines", l.format("INFO", "%d lines", 99))
	assert.Equal(t, "WARN: x", NewDefaultLogger("", false).format("WARN", "x"))

	assert.False(t, l.DebugEnabled())
	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
}

func TestLoggingModule(t *testing.T) {
	tests := []struct {
		name   string
		module LoggingModule
		check  func(t *testing.T, l Logger)
	}{
		{
			name:   "stdlib",
			module: LoggingModule{Prefix: "p"},
			check: func(t *testing.T, l Logger) {
				assert.IsType(t, &DefaultLogger{}, l)
			},
		},
		{
			name:   "zap",
			module: LoggingModule{Zap: "development", Debug: true},
			check: func(t *testing.T, l Logger) {
				assert.IsType(t, &ZapLogger{}, l)
				assert.True(t, l.DebugEnabled())
			},
		},
		{
			name:   "bad zap mode falls back",
			module: LoggingModule{Zap: "nope"},
			check: func(t *testing.T, l Logger) {
				assert.IsType(t, &DefaultLogger{}, l)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewAppBuilder().UseModule(tt.module).Build()
			tt.check(t, app.Logger())
		})
	}
}

func TestApp_LoggerNeverNil(t *testing.T) {
	var app *App
	assert.NotNil(t, app.Logger())
	assert.NotNil(t, NewAppBuilder().Build().Logger())
}
