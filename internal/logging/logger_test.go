package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsReachZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lg := Wrap(zap.New(core))

	lg.Info("logged in", Field{Key: "user", Val: "parent"})
	lg.Error("fetch failed", Field{Key: "err", Val: errors.New("boom")})

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "logged in", entries[0].Message)
	assert.Equal(t, "parent", entries[0].ContextMap()["user"])
	assert.Equal(t, "boom", entries[1].ContextMap()["err"])
}

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		lg, err := New(level, true)
		require.NoError(t, err, level)
		assert.NotNil(t, lg)
	}
}
