package clock_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/npumon/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	c := clock.Fake(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(2 * time.Second)
	assert.Equal(t, epoch.Add(2*time.Second), c.Now())
}

func TestFakeClockAfterFiresOnAdvance(t *testing.T) {
	c := clock.Fake(epoch)
	ch := c.After(2 * time.Second)
	assert.Equal(t, 1, c.PendingCount())

	c.Advance(time.Second)
	select {
	case <-ch:
		t.Fatal("fired before deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case fired := <-ch:
		assert.Equal(t, epoch.Add(2*time.Second), fired)
	default:
		t.Fatal("did not fire at deadline")
	}
	assert.Equal(t, 0, c.PendingCount())
}

func TestFakeClockAfterZeroDuration(t *testing.T) {
	c := clock.Fake(epoch)
	select {
	case fired := <-c.After(0):
		assert.Equal(t, epoch, fired)
	default:
		t.Fatal("zero duration should fire immediately")
	}
	assert.Equal(t, 0, c.PendingCount())
}

func TestFakeClockWaitForTimers(t *testing.T) {
	c := clock.Fake(epoch)
	done := make(chan struct{})

	go func() {
		<-c.After(time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "waiter never fired")
	}
}

func TestRealClock(t *testing.T) {
	c := clock.Real()
	before := time.Now()
	assert.False(t, c.Now().Before(before))

	select {
	case <-c.After(time.Millisecond):
	case <-time.After(5 * time.Second):
		require.FailNow(t, "real After never fired")
	}
}
