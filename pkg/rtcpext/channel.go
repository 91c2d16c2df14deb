/*
【ファイル概要: channel.go】
ECN Report の送受信チャンネル Channel を提供します。

受信側（レポート生成側）:
  - 直近に閉じた ecn.Window の Result と ecn.Estimator の出力を保持し、
    RTCPコンパウンドパケットのタイマーと window-close イベントの
    「どちらか早い方」で ECNReport を送出する。

送信側（フィードバック受信側）:
  - 着信RTCPパケット列からECNReportを抽出し、RateState.ApplyFeedback
    へ渡す。冪等なCloseでticker/goroutineを止める。
*/
package rtcpext

import (
	"sync"
	"time"

	"github.com/pion/rtcp"

	"github.com/jworuna/uvgRTP-ecn/pkg/ecn"
	"github.com/jworuna/uvgRTP-ecn/pkg/pacer"
)

// CompoundInterval is the RTCP compound-packet timer fallback: if no
// window has closed by the time this elapses, the channel still emits
// whatever it last had.
const CompoundInterval = 5 * time.Second

// Channel owns both halves of the ECN feedback loop for one stream.
type Channel struct {
	mu sync.Mutex

	ssrc   uint32
	latest ECNReport
	have   bool

	send func(rtcp.Packet) error

	ticker *time.Ticker
	closed bool
	done   chan struct{}

	rateState *pacer.RateState
	onReport  func(ECNReport)
}

// NewChannel creates a Channel for one stream. send is called whenever
// an ECNReport should go out on the RTCP socket; rateState, if non-nil,
// is updated whenever an inbound ECNReport is handled (the sender side
// of the loop). A stream that only sends reports (pure receiver) passes
// a nil rateState; a stream that only consumes them (pure sender)
// passes a no-op send. onReport, if non-nil, is invoked with every
// decoded inbound report regardless of rateState.
func NewChannel(ssrc uint32, rateState *pacer.RateState, send func(rtcp.Packet) error, onReport func(ECNReport)) *Channel {
	c := &Channel{
		ssrc:      ssrc,
		send:      send,
		rateState: rateState,
		onReport:  onReport,
		ticker:    time.NewTicker(CompoundInterval),
		done:      make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Channel) run() {
	for {
		select {
		case <-c.ticker.C:
			c.emit()
		case <-c.done:
			return
		}
	}
}

// OnWindowClose should be registered as the ecn.Window's onClose
// callback (wired together at stream construction), and the
// ecn.Estimator passed alongside so the report carries the latest
// capacity estimate too.
func (c *Channel) OnWindowClose(result ecn.Result, estimator *ecn.Estimator) {
	c.mu.Lock()
	c.latest = ECNReport{
		SSRC:              c.ssrc,
		PacketCountTW:     uint32(result.PacketCount),
		ECTCECountTW:      uint32(result.ECNCECount),
		CapacityKbits:     uint32(estimator.CapacityKbits()),
		EarlyFeedbackMode: result.EarlyFeedbackMode(),
	}
	c.have = true
	c.mu.Unlock()

	// window-close はコンパウンドタイマーより早いイベントとして、
	// ここで即座に送出する。
	c.emit()
}

func (c *Channel) emit() {
	c.mu.Lock()
	if !c.have {
		c.mu.Unlock()
		return
	}
	report := c.latest
	c.mu.Unlock()

	_ = c.send(report.Encode())
}

// HandleInbound should be called with every RTCP packet received on the
// control socket; non-ECN packets are ignored. Must not block: ApplyFeedback
// only locks RateState briefly to update it and broadcast the pacer's
// condition variable.
func (c *Channel) HandleInbound(p rtcp.Packet, nowUs int64) {
	report, ok := DecodeECNReport(p)
	if !ok {
		return
	}
	if c.rateState != nil {
		c.rateState.ApplyFeedback(int64(report.CapacityKbits), report.EarlyFeedbackMode, nowUs)
	}
	if c.onReport != nil {
		c.onReport(report)
	}
}

// Close stops the emission ticker. Idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.ticker.Stop()
	close(c.done)
	return nil
}
