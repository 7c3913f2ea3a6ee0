package logging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldConstructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		field     Field
		wantKey   string
		wantValue interface{}
	}{
		{"string", String("commodity", "cobalt"), "commodity", "cobalt"},
		{"int", Int("count", 42), "count", 42},
		{"int64", Int64("nodes", int64(9)), "nodes", int64(9)},
		{"float64", Float64("share", 0.25), "share", 0.25},
		{"bool", Bool("fallback", true), "fallback", true},
		{"duration", Duration("elapsed", time.Second), "elapsed", time.Second},
		{"error", Err(errors.New("boom")), "error", "boom"},
		{"nil error", Err(nil), "error", "<nil>"},
		{"any", Any("raw", []int{1, 2}), "raw", []int{1, 2}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantKey, tt.field.Key)
			assert.Equal(t, tt.wantValue, tt.field.Value)
		})
	}
}

func TestNewLogger_DefaultsApplied(t *testing.T) {
	t.Parallel()

	l, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	t.Parallel()

	l, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestZapLogger_FieldsReachCore(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core)

	l.Info("regionalized commodity",
		String("commodity", "aluminium"),
		Int("markets", 12),
		Float64("coverage", 0.97),
	)

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "regionalized commodity", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "aluminium", ctx["commodity"])
	assert.EqualValues(t, 12, ctx["markets"])
	assert.Equal(t, 0.97, ctx["coverage"])
}

func TestZapLogger_WithAddsPersistentFields(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core).With(String("stage", "selection"))

	l.Info("first")
	l.Warn("second")

	entries := observed.All()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "selection", e.ContextMap()["stage"])
	}
}

func TestZapLogger_NamedChildren(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core).Named("pipeline").Named("cloner")

	l.Info("named entry")

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pipeline.cloner", entries[0].LoggerName)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "debug", parseLevel("debug").String())
	assert.Equal(t, "warn", parseLevel("WARN").String())
	assert.Equal(t, "error", parseLevel("error").String())
	assert.Equal(t, "info", parseLevel("whatever").String())
	assert.Equal(t, "info", parseLevel("").String())
}

func TestNopLogger_NoPanics(t *testing.T) {
	t.Parallel()

	l := NewNopLogger()
	l.Debug("a")
	l.Info("b", String("k", "v"))
	l.Warn("c")
	l.Error("d", Err(errors.New("x")))
	assert.NotNil(t, l.With(Int("n", 1)))
	assert.NotNil(t, l.Named("child"))
}

func TestSetLevel_AdjustsBuiltLoggers(t *testing.T) {
	// Not parallel: mutates the shared level.
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := NewLogger(LogConfig{
		Level:       "error",
		OutputPaths: []string{path},
	})
	require.NoError(t, err)

	l.Info("suppressed entry")
	SetLevel("debug")
	l.Info("emitted entry")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "suppressed entry")
	assert.Contains(t, string(data), "emitted entry")
}

func TestDefaultLogger_SetAndGet(t *testing.T) {
	// Not parallel: mutates package-level state.
	orig := Default()
	defer SetDefault(orig)

	core, observed := observer.New(zapcore.DebugLevel)
	SetDefault(NewLoggerFromCore(core))
	Default().Info("via default")

	require.Len(t, observed.All(), 1)

	// nil is ignored rather than installed.
	SetDefault(nil)
	assert.NotNil(t, Default())
}
