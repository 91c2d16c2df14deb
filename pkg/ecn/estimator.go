/*
【ファイル概要: estimator.go】
受信バイトレートからプロービングブロック単位の容量を推定する
Estimator を提供します。

ブロック境界のセンチネル（START/END、1パケットブロックはENDのみが
実際にワイヤへ乗る）を区切りとして、区切りから区切りまでに受信した
バイト数と経過時間から capacity_kbits = bytes*8/elapsed_ms を計算
します。ブロックが完全に観測されるまでは前回の値を保持します
（初回は0）。MIN_BITRATE_KBITS を下回る値は提案しません。
*/
package ecn

import (
	"sync"
	"time"

	"github.com/jworuna/uvgRTP-ecn/pkg/rtppacket"
)

// MinBitrateKbits mirrors pacer.MinBitrateKbits: the estimator never
// proposes a capacity below this floor.
const MinBitrateKbits = 500

// Estimator tracks received bytes since the last observed block
// boundary and turns that into a capacity estimate whenever the next
// boundary sentinel arrives.
type Estimator struct {
	mu sync.Mutex

	capacityKbits int64
	bytesSince    int64
	boundaryAt    time.Time
	haveBoundary  bool
}

// NewEstimator returns an Estimator with no measurement yet
// (capacity 0, meaning "never measured").
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Observe feeds one received datagram's byte count and sentinel value.
// Call this for every datagram, in receive order, independent of
// Window's aggregation boundaries: a probing block can span more than
// one aggregation window.
func (e *Estimator) Observe(bytes int, sentinel rtppacket.Sentinel, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.haveBoundary {
		// This packet opens the very first measurement window. Its own
		// bytes belong to that window, not to a close computed against
		// zero elapsed time, so seed bytesSince with them and stop here.
		e.boundaryAt = now
		e.haveBoundary = true
		e.bytesSince = int64(bytes)
		return
	}

	e.bytesSince += int64(bytes)

	if !sentinel.IsBoundary() {
		return
	}

	elapsedMs := now.Sub(e.boundaryAt).Milliseconds()
	if elapsedMs > 0 {
		capacity := e.bytesSince * 8 / elapsedMs
		if capacity < MinBitrateKbits {
			capacity = MinBitrateKbits
		}
		e.capacityKbits = capacity
	}

	e.boundaryAt = now
	e.bytesSince = 0
}

// CapacityKbits returns the most recently computed estimate, or 0 if
// no block has completed yet.
func (e *Estimator) CapacityKbits() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capacityKbits
}
