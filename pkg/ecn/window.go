/*
【ファイル概要: window.go】
受信側の集計ウィンドウ Window を提供します。

各データグラムのECN観測をまとめ、タイマーによる定期クローズ、または
CEマーク到来による即時クローズ（アグリゲーションタイマーを待たない）
でひとまとまりの Result を生成します。パケット単位の観測バックログは
github.com/gammazero/deque で保持します。
*/
package ecn

import (
	"sync"
	"time"

	"github.com/gammazero/deque"

	"github.com/jworuna/uvgRTP-ecn/internal/dgram"
	"github.com/jworuna/uvgRTP-ecn/pkg/rtppacket"
)

type observation struct {
	seq      uint16
	bytes    int
	ecn      dgram.ECN
	sentinel rtppacket.Sentinel
}

// Result is what a closed window reports.
type Result struct {
	PacketCount int
	ECNCECount  int
	FirstSeq    uint16
	LastSeq     uint16
	DurationMs  int64
}

// EarlyFeedbackMode reports whether this window observed any
// CE-marked datagram.
func (r Result) EarlyFeedbackMode() bool { return r.ECNCECount > 0 }

// Window aggregates per-datagram ECN observations over a bounded time
// span, guarded by a mutex since Observe runs on the RTP receive
// goroutine while the internal timer fires on its own goroutine.
type Window struct {
	mu       sync.Mutex
	duration time.Duration
	onClose  func(Result)

	backlog  deque.Deque[observation]
	opened   time.Time
	haveAny  bool
	firstSeq uint16
	lastSeq  uint16
	ce       int

	timer   *time.Timer
	closing bool
}

// NewWindow starts a window that closes after duration, or immediately
// on the first CE-marked datagram, whichever comes first, calling
// onClose with the accumulated Result and then starting the next
// window.
func NewWindow(duration time.Duration, onClose func(Result)) *Window {
	w := &Window{duration: duration, onClose: onClose}
	w.arm()
	return w
}

func (w *Window) arm() {
	w.timer = time.AfterFunc(w.duration, w.closeOnTimer)
}

func (w *Window) closeOnTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeLocked()
}

// Observe records one received datagram.
func (w *Window) Observe(seq uint16, bytes int, e dgram.ECN, s rtppacket.Sentinel) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.haveAny {
		w.haveAny = true
		w.firstSeq = seq
		w.opened = time.Now()
	}
	w.lastSeq = seq
	w.backlog.PushBack(observation{seq: seq, bytes: bytes, ecn: e, sentinel: s})
	if e.IsCE() {
		w.ce++
	}

	if e.IsCE() {
		// CE到来時はアグリゲーションタイマーを待たず即座にクローズする。
		w.timer.Stop()
		w.closeLocked()
	}
}

func (w *Window) closeLocked() {
	if w.closing {
		return
	}
	w.closing = true

	var durationMs int64
	if w.haveAny {
		durationMs = time.Since(w.opened).Milliseconds()
	}

	result := Result{
		PacketCount: w.backlog.Len(),
		ECNCECount:  w.ce,
		FirstSeq:    w.firstSeq,
		LastSeq:     w.lastSeq,
		DurationMs:  durationMs,
	}

	w.backlog.Clear()
	w.haveAny = false
	w.ce = 0
	w.closing = false
	w.arm()

	// onCloseは呼び出し元（Observe/closeOnTimer）がロックを握ったまま
	// 呼ぶと、コールバックがWindowへ再入した場合にデッドロックする。
	// 一時的にアンロックしてから呼び、戻る前に再ロックして呼び出し元の
	// deferに帳尻を合わせる。
	onClose := w.onClose
	w.mu.Unlock()
	onClose(result)
	w.mu.Lock()
}

// Close stops the window's internal timer permanently. Call when the
// stream shuts down.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
