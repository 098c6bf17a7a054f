package logger_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.DebugLevel,
		"info":    logger.InfoLevel,
		"warning": logger.WarnLevel,
		"WARN":    logger.WarnLevel,
		"error":   logger.ErrorLevel,
	}
	for name, want := range tests {
		got, err := logger.ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := logger.ParseLevel("verbose")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
	assert.Contains(t, err.Error(), "verbose")
}

func TestComponentLoggerWithCode(t *testing.T) {
	logger.SetLogLevel(logger.DebugLevel)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	var buf bytes.Buffer
	log := logger.New(&buf, "recorder")

	appErr := errors.New().Wrap(errors.ErrSinkWrite, fmt.Errorf("disk full"))
	log.ErrorWithCode(appErr).Int("device", 1).Msg("append failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "recorder", entry["component"])
	assert.Equal(t, "sink_write_failed", entry["error_code"])
	assert.Equal(t, "disk full", entry["error"])
	assert.Equal(t, float64(1), entry["device"])
	assert.Equal(t, "append failed", entry["message"])
}

func TestNopLogger(t *testing.T) {
	log := logger.Nop()
	assert.NotPanics(t, func() {
		log.Info().Str("k", "v").Msg("dropped")
		log.Warn().Send()
	})
}
