package metrics

import (
	"testing"
	"time"

	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	s, err := newService(registry, logger.Nop())
	require.NoError(t, err)

	s.TickCompleted(20 * time.Millisecond)
	s.TickCompleted(30 * time.Millisecond)
	s.RecordWritten()
	s.RecordWritten()
	s.RecordWritten()
	s.MetricReadFailed(1)
	s.SinkWriteFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(s.ticks))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.written))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.readErrors.WithLabelValues("1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.readErrors.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.writeErrors))
	assert.Equal(t, 1, testutil.CollectAndCount(s.tickDuration))

	count, err := testutil.GatherAndCount(registry, "npumon_ticks_total", "npumon_records_written_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.Close())
}

func TestNewServiceDisabled(t *testing.T) {
	c, err := NewService(DefaultConfig(), logger.Nop())
	require.NoError(t, err)

	_, ok := c.(*noopCollector)
	assert.True(t, ok)
	assert.NotPanics(t, func() {
		c.TickCompleted(time.Second)
		c.RecordWritten()
		c.MetricReadFailed(0)
		c.SinkWriteFailed()
	})
	assert.NoError(t, c.Close())
}

func TestNewServiceEnabled(t *testing.T) {
	c, err := NewService(Config{Addr: "127.0.0.1:0", Path: "/metrics", Enabled: true}, logger.Nop())
	require.NoError(t, err)

	_, ok := c.(*service)
	assert.True(t, ok)
	assert.NoError(t, c.Close())
}

func TestConfigValidate(t *testing.T) {
	err := Config{Enabled: true}.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidAddr))

	assert.NoError(t, Config{}.Validate())
}
