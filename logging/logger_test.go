package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	_ Logger = (*ZapLogger)(nil)
	_ Logger = NoOpLogger{}
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestWith_AttachesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := With(NewZapAdapter(zap.New(core)), "session_id", "s1")

	l.Info("stage changed", "stage", "reviewing")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "stage changed", entry.Message)
	assert.Equal(t, "s1", entry.ContextMap()["session_id"])
	assert.Equal(t, "reviewing", entry.ContextMap()["stage"])
}

type recordingLogger struct {
	NoOpLogger
	args []any
}

func (r *recordingLogger) Warn(_ string, args ...any) { r.args = args }

func TestWith_WrapsForeignLoggers(t *testing.T) {
	rec := &recordingLogger{}
	With(rec, "a", 1).Warn("x", "b", 2)
	assert.Equal(t, []any{"a", 1, "b", 2}, rec.args)
}
