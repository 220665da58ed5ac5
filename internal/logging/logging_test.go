package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_HasComponent(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	Init(slog.LevelDebug, "text", &buf)

	New("build").Info("hello")

	assert.Contains(t, buf.String(), "component=build")
	assert.Contains(t, buf.String(), "hello")
}

func TestInit_JSONFormat(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	Init(slog.LevelInfo, "json", &buf)

	New("probe").Info("json check")
	New("probe").Debug("filtered")

	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"component":"probe"`)
	assert.NotContains(t, buf.String(), "filtered")
}

func TestDiscard(t *testing.T) {
	// Must not panic and must not write anywhere observable.
	Discard().Error("dropped", "key", "value")
}
