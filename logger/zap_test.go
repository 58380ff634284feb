package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewFromZap(zap.New(core))

	l.Info("balance fetched", map[string]any{"account": "0xabc", "balance": "1.5"})
	l.Error("send failed", map[string]any{"error": errors.New("boom")})

	require.Equal(t, 2, logs.Len())
	entries := logs.All()

	assert.Equal(t, "balance fetched", entries[0].Message)
	assert.Equal(t, "0xabc", entries[0].ContextMap()["account"])
	assert.Equal(t, "1.5", entries[0].ContextMap()["balance"])

	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNewZapLogger(t *testing.T) {
	l, err := NewZapLogger("not-a-level")
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Info("ignored", nil)
	assert.NoError(t, l.Sync())
}
