package session

import (
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jworuna/uvgRTP-ecn/pkg/rtppacket"
)

func loopback(t *testing.T, port int) *net.UDPAddr {
	t.Helper()
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestNewStreamRejectsSendAndReceiveOnly(t *testing.T) {
	_, err := NewStream(StreamConfig{
		Flags: RCESendOnly | RCEReceiveOnly,
	})
	assert.ErrorIs(t, err, ErrSendAndReceiveOnly)
}

func TestNewStreamRejectsECNWithoutRTCP(t *testing.T) {
	_, err := NewStream(StreamConfig{
		Flags:      RCEECNTraffic,
		RemoteAddr: loopback(t, 0),
	})
	assert.ErrorIs(t, err, ErrECNRequiresRTCP)
}

func TestNewStreamRejectsSendOnlyWithoutRemoteAddr(t *testing.T) {
	_, err := NewStream(StreamConfig{Flags: RCESendOnly})
	assert.ErrorIs(t, err, ErrSendOnlyRequiresRemoteAddr)
}

func TestNewStreamRejectsReceiveOnlyWithoutLocalAddr(t *testing.T) {
	_, err := NewStream(StreamConfig{Flags: RCEReceiveOnly})
	assert.ErrorIs(t, err, ErrReceiveOnlyRequiresLocalAddr)
}

func TestPushFrameSendsFragmentedPayloadToLoopbackPeer(t *testing.T) {
	recvSock, err := net.ListenUDP("udp4", loopback(t, 0))
	require.NoError(t, err)
	defer recvSock.Close()
	recvAddr := recvSock.LocalAddr().(*net.UDPAddr)

	sender, err := NewStream(StreamConfig{
		RemoteAddr:  recvAddr,
		PayloadType: 96,
		ClockRate:   90000,
		MTU:         1400,
	})
	require.NoError(t, err)
	defer sender.Close()
	sender.Start()

	require.NoError(t, recvSock.SetReadDeadline(time.Now().Add(2*time.Second)))

	done := make(chan error, 1)
	go func() { done <- sender.PushFrame([]byte("hello world")) }()

	buf := make([]byte, 1500)
	n, _, err := recvSock.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	require.NoError(t, <-done)
}

func TestPushFrameAdvancesRTPTimestampEachFrame(t *testing.T) {
	recvSock, err := net.ListenUDP("udp4", loopback(t, 0))
	require.NoError(t, err)
	defer recvSock.Close()
	recvAddr := recvSock.LocalAddr().(*net.UDPAddr)

	sender, err := NewStream(StreamConfig{
		RemoteAddr:  recvAddr,
		PayloadType: 96,
		ClockRate:   90000,
		MTU:         1400,
	})
	require.NoError(t, err)
	defer sender.Close()
	sender.Start()

	require.NoError(t, recvSock.SetReadDeadline(time.Now().Add(2*time.Second)))

	readHeaderTimestamp := func() uint32 {
		buf := make([]byte, 1500)
		n, _, err := recvSock.ReadFromUDP(buf)
		require.NoError(t, err)
		var h rtppacket.Header
		require.NoError(t, h.Unmarshal(buf[:n]))
		return h.Timestamp
	}

	done := make(chan error, 1)
	go func() { done <- sender.PushFrame([]byte("first frame")) }()
	first := readHeaderTimestamp()
	require.NoError(t, <-done)

	go func() { done <- sender.PushFrame([]byte("second frame")) }()
	second := readHeaderTimestamp()
	require.NoError(t, <-done)

	assert.Equal(t, first+DefaultSamplesPerFrame, second)
}

func TestPushFrameFailsOnClosedStream(t *testing.T) {
	s, err := NewStream(StreamConfig{
		RemoteAddr:  loopback(t, 1),
		PayloadType: 96,
		ClockRate:   90000,
		MTU:         1400,
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.PushFrame([]byte("x"))
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func gatherGauge(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestStreamRecordsMetricsWhenRegistererSet(t *testing.T) {
	reg := prometheus.NewRegistry()

	recvSock, err := net.ListenUDP("udp4", loopback(t, 0))
	require.NoError(t, err)
	recvAddr := recvSock.LocalAddr().(*net.UDPAddr)
	require.NoError(t, recvSock.Close())

	receiver, err := NewStream(StreamConfig{
		LocalAddr:                   recvAddr,
		PayloadType:                 96,
		ClockRate:                   90000,
		MTU:                         1400,
		Flags:                       RCERTCP | RCEECNTraffic,
		RCCECNAggregationTimeWindow: 50 * time.Millisecond,
		Registerer:                 reg,
		StreamID:                    "recv-test",
	})
	require.NoError(t, err)
	defer receiver.Close()
	receiver.Start()

	sender, err := NewStream(StreamConfig{
		RemoteAddr:  recvAddr,
		PayloadType: 96,
		ClockRate:   90000,
		MTU:         1400,
		Flags:       RCERTCP | RCEECNTraffic,
	})
	require.NoError(t, err)
	defer sender.Close()
	sender.Start()

	require.NoError(t, sender.PushFrame([]byte("hello world")))

	require.Eventually(t, func() bool {
		return gatherGauge(t, reg, "uvgrtp_ecn_packets_in_block") > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	s, err := NewStream(StreamConfig{
		RemoteAddr:  loopback(t, 1),
		PayloadType: 96,
		ClockRate:   90000,
		MTU:         1400,
	})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
