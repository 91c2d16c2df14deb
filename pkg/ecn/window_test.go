package ecn

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jworuna/uvgRTP-ecn/internal/dgram"
	"github.com/jworuna/uvgRTP-ecn/pkg/rtppacket"
)

func TestWindowClosesOnTimerWithAccumulatedStats(t *testing.T) {
	var mu sync.Mutex
	var results []Result

	w := NewWindow(30*time.Millisecond, func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	})
	defer w.Close()

	for i := uint16(0); i < 5; i++ {
		w.Observe(i, 1200, dgram.ECNECT1, rtppacket.SentinelNone)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) >= 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, results[0].PacketCount)
	assert.Equal(t, 0, results[0].ECNCECount)
	assert.False(t, results[0].EarlyFeedbackMode())
}

func TestWindowClosesImmediatelyOnCE(t *testing.T) {
	var mu sync.Mutex
	var results []Result

	w := NewWindow(10*time.Second, func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	})
	defer w.Close()

	w.Observe(1, 1200, dgram.ECNECT1, rtppacket.SentinelNone)
	w.Observe(2, 1200, dgram.ECNCE, rtppacket.SentinelNone)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) >= 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, results[0].PacketCount)
	assert.Equal(t, 1, results[0].ECNCECount)
	assert.True(t, results[0].EarlyFeedbackMode())
}

func TestWindowResetsAfterCloseForNextObservations(t *testing.T) {
	var mu sync.Mutex
	var results []Result

	w := NewWindow(20*time.Millisecond, func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	})
	defer w.Close()

	w.Observe(1, 1200, dgram.ECNECT1, rtppacket.SentinelNone)
	time.Sleep(40 * time.Millisecond)
	w.Observe(2, 1200, dgram.ECNECT1, rtppacket.SentinelNone)
	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(results), 2)
	assert.Equal(t, 1, results[0].PacketCount)
}
