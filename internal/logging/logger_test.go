package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/homesync/internal/config"
)

func TestNew_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{
		Cloud: config.CloudConfig{Provider: "aliyun", SecurityGroupID: "sg-1"},
		Log:   config.LogConfig{Level: "info", Format: "json"},
	}

	logger := New(&buf, cfg)
	logger.Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "homesync", line["service"])
	assert.Equal(t, "aliyun", line["provider"])
	assert.Equal(t, "cn-hangzhou", line["region"])
	assert.Equal(t, "sg-1", line["group_id"])
	assert.Equal(t, "hello", line["message"])
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Log: config.LogConfig{Level: "warn"}}

	logger := New(&buf, cfg)
	logger.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Log: config.LogConfig{Level: "chatty"}}

	logger := New(&buf, cfg)
	logger.Debug().Msg("dropped")
	logger.Info().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
