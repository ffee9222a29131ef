package observability

import (
	"testing"

	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{OtelSamplingRatio: 3})

	assert.Equal(t, "taskboard", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigDebug(t *testing.T) {
	assert.True(t, LoadConfig(config.Config{Environment: "Development"}).Debug())
	assert.True(t, LoadConfig(config.Config{Environment: "production", LogLevel: "debug"}).Debug())
	assert.False(t, LoadConfig(config.Config{Environment: "production"}).Debug())
}
