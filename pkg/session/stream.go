/*
【ファイル概要: stream.go】
単一の送受信RTPストリームを表す Stream を提供します。internal/dgram、
pkg/rtppacket、pkg/frame(+codecs)、pkg/pacer、pkg/ecn、pkg/rtcpext を
ここで結線します。

ゴルーチンのライフサイクル（recvLoop の起動と sync.WaitGroup での合流、
context.Context によるキャンセル）は Stream.Start/Close が管理します。
*/
package session

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jworuna/uvgRTP-ecn/internal/dgram"
	"github.com/jworuna/uvgRTP-ecn/internal/metrics"
	"github.com/jworuna/uvgRTP-ecn/pkg/ecn"
	"github.com/jworuna/uvgRTP-ecn/pkg/frame"
	"github.com/jworuna/uvgRTP-ecn/pkg/frame/codecs"
	"github.com/jworuna/uvgRTP-ecn/pkg/pacer"
	"github.com/jworuna/uvgRTP-ecn/pkg/rtcpext"
	"github.com/jworuna/uvgRTP-ecn/pkg/rtppacket"
)

// DefaultAggregationWindow is RCCECNAggregationTimeWindow's default when
// StreamConfig leaves it at zero.
const DefaultAggregationWindow = 100 * time.Millisecond

// DefaultSamplesPerFrame is SamplesPerFrame's default when StreamConfig
// leaves it at zero: 90kHz/30fps, a common video clock-rate/frame-rate
// pairing.
const DefaultSamplesPerFrame = 3000

// StreamConfig configures one Stream. Flags is a bitmask of StreamFlags
// (see flags.go); RCCECNAggregationTimeWindow is a typed field here
// rather than a generic key/value option.
type StreamConfig struct {
	LocalAddr  *net.UDPAddr
	RemoteAddr *net.UDPAddr

	PayloadType uint8
	ClockRate   uint32
	MTU         int

	Flags                       StreamFlags
	RCCECNAggregationTimeWindow time.Duration

	// SamplesPerFrame is how many ClockRate ticks the RTP timestamp
	// advances for each PushFrame call. Leave at zero to use
	// DefaultSamplesPerFrame.
	SamplesPerFrame uint32

	Fragmenter codecs.Fragmenter

	// OnECNReport, if set, is invoked with every inbound ECN report this
	// stream decodes.
	OnECNReport func(rtcpext.ECNReport)

	// Registerer, if non-nil, turns on Prometheus export of this
	// stream's capacity/early-feedback/CE gauges under StreamID. Purely
	// observational; no control flow depends on it.
	Registerer prometheus.Registerer
	StreamID   string
}

// Stream is one paced RTP/RTCP endpoint: a producer calls PushFrame,
// which runs the pacer on the calling goroutine to flush probing blocks
// onto the datagram socket, and (when RCERTCP is set) a receive
// goroutine and an RTCP emission goroutine maintain the ECN feedback
// loop.
type Stream struct {
	cfg StreamConfig

	conn       *dgram.Conn
	packetizer *rtppacket.Packetizer
	rateState  *pacer.RateState
	window     *ecn.Window
	estimator  *ecn.Estimator
	channel    *rtcpext.Channel
	metrics    *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewStream validates cfg.Flags, then opens the datagram socket and
// wires the rest of the components. The receive goroutine does not run
// until Start is called; the RTCP channel's emission goroutine
// (RCERTCP) and the aggregation window's timer (RCEECNTraffic) start
// here.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if err := validateFlags(cfg); err != nil {
		return nil, err
	}

	if cfg.RCCECNAggregationTimeWindow <= 0 {
		cfg.RCCECNAggregationTimeWindow = DefaultAggregationWindow
	}
	if cfg.SamplesPerFrame == 0 {
		cfg.SamplesPerFrame = DefaultSamplesPerFrame
	}
	if cfg.Fragmenter == nil {
		cfg.Fragmenter = codecs.Generic{}
	}

	ect := dgram.ECNECT1
	if cfg.Flags.Has(RCEECNECT0) {
		ect = dgram.ECNECT0
	}

	if cfg.RemoteAddr == nil {
		// RCEReceiveOnly ストリームにはピアが存在しないため、
		// ダイヤル時だけ使う未接続プレースホルダを与える
		// (IPv4/IPv6判定とnet.ListenUDPのネットワーク種別選択にのみ使う)。
		cfg.RemoteAddr = &net.UDPAddr{IP: net.IPv4zero}
	}

	var opts []dgram.Option
	if cfg.Flags.Has(RCEECNTraffic) {
		opts = append(opts, dgram.WithECT(ect))
	}
	if cfg.Flags.Has(RCESystemCallClustering) {
		opts = append(opts, dgram.WithSystemCallClustering())
	}

	conn, err := dgram.Dial(cfg.LocalAddr, cfg.RemoteAddr, opts...)
	if err != nil {
		return nil, err
	}

	packetizer, err := rtppacket.NewPacketizer(cfg.PayloadType, cfg.ClockRate)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Stream{
		cfg:        cfg,
		conn:       conn,
		packetizer: packetizer,
		rateState:  pacer.NewRateState(),
		estimator:  ecn.NewEstimator(),
		metrics:    metrics.New(cfg.Registerer, cfg.StreamID),
		ctx:        ctx,
		cancel:     cancel,
	}

	if cfg.Flags.Has(RCERTCP) {
		s.channel = rtcpext.NewChannel(packetizer.SSRC(), s.rateState, s.sendRTCP, cfg.OnECNReport)
	}
	if cfg.Flags.Has(RCEECNTraffic) {
		s.window = ecn.NewWindow(cfg.RCCECNAggregationTimeWindow, s.onWindowClose)
	}

	return s, nil
}

func validateFlags(cfg StreamConfig) error {
	if cfg.Flags.Has(RCESendOnly) && cfg.Flags.Has(RCEReceiveOnly) {
		return ErrSendAndReceiveOnly
	}
	if cfg.Flags.Has(RCEReceiveOnly) && cfg.LocalAddr == nil {
		return ErrReceiveOnlyRequiresLocalAddr
	}
	if cfg.Flags.Has(RCESendOnly) && cfg.RemoteAddr == nil {
		return ErrSendOnlyRequiresRemoteAddr
	}
	if cfg.Flags.Has(RCEECNTraffic) && !cfg.Flags.Has(RCERTCP) {
		return ErrECNRequiresRTCP
	}
	return nil
}

// Start launches the stream's background goroutines. Safe to call at
// most once.
func (s *Stream) Start() {
	if s.cfg.Flags.Has(RCERTCP) || s.cfg.Flags.Has(RCEECNTraffic) {
		s.wg.Add(1)
		go s.recvLoop()
	}
}

// PushFrame fragments payload per cfg.Fragmenter, paces it into
// probing blocks, and blocks until the whole frame has been sent (or
// the stream is closed, or sending fails).
func (s *Stream) PushFrame(payload []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	s.mu.Unlock()

	fragments, err := s.cfg.Fragmenter.Fragment(s.cfg.MTU, payload)
	if err != nil {
		return err
	}

	tx := frame.NewTransaction(s.packetizer, false)
	tx.Init(s.cfg.SamplesPerFrame)

	for _, f := range fragments {
		if err := tx.EnqueueBuffers(f.Buffers, false, f.SetMarker); err != nil {
			tx.Release()
			return err
		}
	}

	return pacer.Run(s.ctx, tx, s.rateState, s.conn)
}

// rtcpPacketTypeFloor and rtcpPacketTypeCeil bound the RTCP packet
// types (RFC 5761 section 4's demultiplexing rule: a second octet in
// 192..223 identifies an RTCP packet sharing the same socket; an RTP
// packet's second octet, marker bit included, falls outside that range
// for payload types 96..127).
const (
	rtcpPacketTypeFloor = 192
	rtcpPacketTypeCeil  = 223
)

func (s *Stream) recvLoop() {
	defer s.wg.Done()

	buf := make([]byte, 1500)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		n, e, _, err := s.conn.RecvECN(buf)
		if err != nil {
			return
		}
		if n < 2 {
			continue
		}

		if buf[1] >= rtcpPacketTypeFloor && buf[1] <= rtcpPacketTypeCeil {
			s.HandleRTCP(buf[:n])
			continue
		}

		if s.window == nil {
			continue
		}

		var h rtppacket.Header
		if err := h.Unmarshal(buf[:n]); err != nil {
			continue
		}

		now := time.Now()
		s.window.Observe(h.SequenceNumber, n, e, h.Sentinel)
		s.estimator.Observe(n, h.Sentinel, now)
		if e.IsCE() {
			s.metrics.AddCEMarked(1)
		}
	}
}

func (s *Stream) onWindowClose(result ecn.Result) {
	s.metrics.SetPacketsInBlock(result.PacketCount)
	s.metrics.SetEarlyFeedbackMode(result.EarlyFeedbackMode())
	s.metrics.SetCapacityKbits(s.estimator.CapacityKbits())
	if s.channel != nil {
		s.channel.OnWindowClose(result, s.estimator)
	}
}

func (s *Stream) sendRTCP(p rtcp.Packet) error {
	raw, err := rtcp.Marshal([]rtcp.Packet{p})
	if err != nil {
		return err
	}
	return s.conn.Send([][]byte{raw})
}

// HandleRTCP decodes raw as a compound RTCP packet and dispatches any
// ECN reports it carries. recvLoop calls this for datagrams demuxed off
// the shared socket; exported so a caller running RTCP on a separate
// socket can feed it directly instead.
func (s *Stream) HandleRTCP(raw []byte) {
	if s.channel == nil {
		return
	}
	packets, err := rtcp.Unmarshal(raw)
	if err != nil {
		return
	}
	now := time.Now().UnixMicro()
	for _, p := range packets {
		s.channel.HandleInbound(p, now)
	}
}

// Close tears down the stream: cancels the context, stops the pacer's
// condition-variable waits, closes the socket, and joins the
// background goroutines. Idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.rateState.Shutdown()
	if s.window != nil {
		s.window.Close()
	}
	if s.channel != nil {
		_ = s.channel.Close()
	}
	err := s.conn.Close()
	s.wg.Wait()
	return err
}
