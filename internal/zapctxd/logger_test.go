package zapctxd_test

import (
	"context"
	"testing"

	"github.com/bool64/ctxd"
	"github.com/bool64/swcache"
	"github.com/bool64/swcache/internal/zapctxd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zapctxd.Wrap(zap.New(core))

	ctx := swcache.WithClientID(context.Background(), "page-1")
	ctx = ctxd.AddFields(ctx, "requestID", "abc")

	l.Debug(ctx, "hidden")
	l.Info(ctx, "installed version", "name", "v1")
	l.Important(context.Background(), "listening")
	l.Warn(ctx, "failed to pre-cache resource", "url", "https://pads.test/a.mp3")
	l.Error(context.Background(), "failed")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)

	assert.Equal(t, "installed version", entries[0].Message)
	assert.Equal(t, map[string]interface{}{
		"name":      "v1",
		"requestID": "abc",
		"client":    "page-1",
	}, entries[0].ContextMap())

	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Empty(t, entries[1].ContextMap())

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "page-1", entries[2].ContextMap()["client"])

	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestNew(t *testing.T) {
	l, err := zapctxd.New("debug")
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = zapctxd.New("loud")
	assert.Error(t, err)
}
