/*
【ファイル概要: conn.go】
RTP/RTCPストリームが使うデータグラムソケットを提供します。

送信時にはscatter-gatherされたバッファ列を1つのデータグラムとして
書き込み、ECNコードポイントを制御メッセージ経由で添付します。
*/
package dgram

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// MaxBatchSize は1回のバッチ送信で書き込むデータグラムの上限です。
const MaxBatchSize = 1024

// Conn は1つのUDPソケットをラップし、per-datagramのECN制御メッセージと
// バッチ送信に対応します。
type Conn struct {
	udp    *net.UDPConn
	v6     bool
	remote net.Addr

	p4 *ipv4.PacketConn
	p6 *ipv6.PacketConn

	ect            ECN
	clusterBatches bool
	fallbackWide   bool
}

// Option configures a Conn at Dial time.
type Option func(*Conn)

// WithECT selects which ECN-capable-transport codepoint outgoing
// datagrams carry. Default is ECT(1).
func WithECT(e ECN) Option {
	return func(c *Conn) { c.ect = e }
}

// WithSystemCallClustering records the RCE_SYSTEM_CALL_CLUSTERING
// setting on the Conn. Send and SendVectored do not consult it: they
// always write one datagram per call. SendBatch is available whether or
// not this option is set.
func WithSystemCallClustering() Option {
	return func(c *Conn) { c.clusterBatches = true }
}

// Dial binds a local UDP socket and fixes the remote peer address. It
// enables per-datagram ECN control messages where the platform supports
// them, falling back to a one-time whole-socket setsockopt otherwise.
func Dial(local, remote *net.UDPAddr, opts ...Option) (*Conn, error) {
	udpConn, err := net.ListenUDP(udpNetwork(remote), local)
	if err != nil {
		return nil, errors.Join(ErrSocketError, err)
	}

	c := &Conn{
		udp:    udpConn,
		v6:     remote.IP.To4() == nil,
		remote: remote,
		ect:    ECNECT1,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.enableControlMessages(); err != nil {
		// per-datagramのECN制御に失敗した場合、ソケット全体への
		// setsockoptにフォールバックする。
		c.fallbackWide = true
		if err := setSocketWideECN(udpConn, c.ect, c.v6); err != nil {
			udpConn.Close()
			return nil, errors.Join(ErrSocketError, err)
		}
	}

	return c, nil
}

func udpNetwork(remote *net.UDPAddr) string {
	if remote.IP.To4() == nil {
		return "udp6"
	}
	return "udp4"
}

func (c *Conn) enableControlMessages() error {
	if c.v6 {
		c.p6 = ipv6.NewPacketConn(c.udp)
		return c.p6.SetControlMessage(ipv6.FlagTrafficClass, true)
	}
	c.p4 = ipv4.NewPacketConn(c.udp)
	return c.p4.SetControlMessage(ipv4.FlagTOS, true)
}

// Send writes one datagram assembled from buffers, concatenated in
// order, marked with the configured ECT codepoint.
func (c *Conn) Send(buffers [][]byte) error {
	payload := joinBuffers(buffers)

	if c.fallbackWide {
		_, err := c.udp.WriteTo(payload, c.remote)
		return wrapSendError(err)
	}

	if c.v6 {
		cm := &ipv6.ControlMessage{TrafficClass: tosWithECN(0, c.ect)}
		_, err := c.p6.WriteTo(payload, cm, c.remote)
		return wrapSendError(err)
	}

	cm := &ipv4.ControlMessage{TOS: tosWithECN(0, c.ect)}
	_, err := c.p4.WriteTo(payload, cm, c.remote)
	return wrapSendError(err)
}

// SendVectored implements pacer.Sender.
func (c *Conn) SendVectored(buffers [][]byte) error {
	return c.Send(buffers)
}

// SendBatch writes up to MaxBatchSize datagrams in one syscall via
// WriteBatch (sendmmsg on Linux), each individually stamped with the
// configured ECT codepoint. Callers with more than MaxBatchSize
// datagrams must split across multiple calls.
func (c *Conn) SendBatch(datagrams [][]byte) (int, error) {
	if len(datagrams) == 0 {
		return 0, nil
	}
	if len(datagrams) > MaxBatchSize {
		return 0, errors.Join(ErrSendError, errors.New("dgram: batch exceeds MaxBatchSize"))
	}
	if c.fallbackWide {
		return c.sendBatchFallback(datagrams)
	}

	if c.v6 {
		msgs := make([]ipv6.Message, len(datagrams))
		for i, d := range datagrams {
			msgs[i] = ipv6.Message{
				Buffers: [][]byte{d},
				Addr:    c.remote,
				OOB:     (&ipv6.ControlMessage{TrafficClass: tosWithECN(0, c.ect)}).Marshal(),
			}
		}
		n, err := c.p6.WriteBatch(msgs, 0)
		return n, wrapSendError(err)
	}

	msgs := make([]ipv4.Message, len(datagrams))
	for i, d := range datagrams {
		msgs[i] = ipv4.Message{
			Buffers: [][]byte{d},
			Addr:    c.remote,
			OOB:     (&ipv4.ControlMessage{TOS: tosWithECN(0, c.ect)}).Marshal(),
		}
	}
	n, err := c.p4.WriteBatch(msgs, 0)
	return n, wrapSendError(err)
}

func (c *Conn) sendBatchFallback(datagrams [][]byte) (int, error) {
	for i, d := range datagrams {
		if _, err := c.udp.WriteTo(d, c.remote); err != nil {
			return i, wrapSendError(err)
		}
	}
	return len(datagrams), nil
}

// RecvECN reads one datagram into buf and reports the ECN codepoint it
// carried, read from the TOS/Traffic-Class control message. When the
// platform fell back to whole-socket marking, the control message is
// unavailable and ECNNonECT is returned; callers that depend on ingress
// ECN observation should check SupportsIngressECN first.
func (c *Conn) RecvECN(buf []byte) (int, ECN, net.Addr, error) {
	if c.fallbackWide {
		n, addr, err := c.udp.ReadFrom(buf)
		return n, ECNNonECT, addr, wrapRecvError(err)
	}

	if c.v6 {
		n, cm, addr, err := c.p6.ReadFrom(buf)
		if err != nil {
			return n, ECNNonECT, addr, wrapRecvError(err)
		}
		return n, ecnFromTOS(cm.TrafficClass), addr, nil
	}

	n, cm, addr, err := c.p4.ReadFrom(buf)
	if err != nil {
		return n, ECNNonECT, addr, wrapRecvError(err)
	}
	return n, ecnFromTOS(cm.TOS), addr, nil
}

// SupportsIngressECN reports whether RecvECN can observe the peer's
// ECN marking on this platform.
func (c *Conn) SupportsIngressECN() bool { return !c.fallbackWide }

// SetReadDeadline bounds the next RecvECN call so that a stream
// shutdown can interrupt a blocked receive loop.
func (c *Conn) SetReadDeadline(d time.Time) error {
	return c.udp.SetReadDeadline(d)
}

// Close closes the underlying socket. Pending reads return
// ErrInterrupted.
func (c *Conn) Close() error {
	return c.udp.Close()
}

// WaitClosed blocks until ctx is cancelled, then closes the socket.
// Intended to be run in its own goroutine so stream shutdown can
// interrupt a blocked recv loop by cancelling ctx.
func (c *Conn) WaitClosed(ctx context.Context) {
	<-ctx.Done()
	c.Close()
}

func joinBuffers(buffers [][]byte) []byte {
	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	out := make([]byte, 0, total)
	for _, b := range buffers {
		out = append(out, b...)
	}
	return out
}

func wrapSendError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrSendError, err)
}

func wrapRecvError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.EINTR) {
		return ErrInterrupted
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrInterrupted
	}
	return err
}
