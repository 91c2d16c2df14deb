package pacer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyFeedbackClampsToMinimumDuringEarlyFeedback(t *testing.T) {
	rs := NewRateState()
	rs.loadKbits = 5000

	rs.ApplyFeedback(3000, true, time.Now().UnixMicro())

	snap := rs.Snapshot()
	assert.True(t, snap.LinkCapacityLow)
	assert.Equal(t, int64(MinBitrateKbits), snap.LoadKbits)
}

func TestApplyFeedbackZeroCapacityLeavesRateUnchanged(t *testing.T) {
	rs := NewRateState()
	rs.loadKbits = 2500

	rs.ApplyFeedback(0, false, time.Now().UnixMicro())

	snap := rs.Snapshot()
	assert.Equal(t, int64(2500), snap.LoadKbits)
	assert.False(t, snap.LinkCapacityLow)
}

func TestApplyFeedbackNeverProposesBelowMinimum(t *testing.T) {
	rs := NewRateState()
	rs.ApplyFeedback(100, false, time.Now().UnixMicro())

	snap := rs.Snapshot()
	assert.Equal(t, int64(MinBitrateKbits), snap.LoadKbits)
}

func TestWaitWhileStaleReturnsImmediatelyWhenFresh(t *testing.T) {
	rs := NewRateState()
	rs.ApplyFeedback(1000, false, time.Now().UnixMicro())

	start := time.Now()
	_, shutdown := rs.waitWhileStale(time.Now().UnixMicro())
	assert.False(t, shutdown)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitWhileStaleUnblocksOnShutdown(t *testing.T) {
	rs := NewRateState()
	rs.linkCapacityLow = true

	done := make(chan bool, 1)
	go func() {
		_, shutdown := rs.waitWhileStale(time.Now().UnixMicro())
		done <- shutdown
	}()

	time.Sleep(10 * time.Millisecond)
	rs.Shutdown()

	select {
	case shutdown := <-done:
		assert.True(t, shutdown)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("waitWhileStale did not unblock on Shutdown")
	}
}

func TestWaitWhileStaleBoundedAt200ms(t *testing.T) {
	rs := NewRateState()
	rs.linkCapacityLow = true

	start := time.Now()
	_, shutdown := rs.waitWhileStale(time.Now().UnixMicro())
	elapsed := time.Since(start)

	assert.False(t, shutdown)
	assert.True(t, elapsed >= 190*time.Millisecond && elapsed < 400*time.Millisecond)
}
