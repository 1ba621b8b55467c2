package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/buildflow/pkg/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, log.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, log.ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, log.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, log.ParseLevel("verbose"))
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := log.New(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("visible", "module", "workflow_engine")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"module":"workflow_engine"`)
}

func TestFromContext(t *testing.T) {
	fallback := slog.Default()
	stored := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	assert.Same(t, fallback, log.FromContext(context.Background(), fallback))
	assert.Same(t, stored, log.FromContext(log.WithLogger(context.Background(), stored), fallback))
}
