package dgram

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopbackAddr(t *testing.T) *net.UDPAddr {
	t.Helper()
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}
}

func TestDialSendRecvLoopback(t *testing.T) {
	recvLocal, err := net.ListenUDP("udp4", loopbackAddr(t))
	require.NoError(t, err)
	defer recvLocal.Close()
	recvAddr := recvLocal.LocalAddr().(*net.UDPAddr)
	recvLocal.Close()

	receiver, err := Dial(recvAddr, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer receiver.Close()

	sender, err := Dial(loopbackAddr(t), recvAddr, WithECT(ECNECT1))
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.Send([][]byte{[]byte("hello "), []byte("world")}))

	require.NoError(t, receiver.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1500)
	n, _, _, err := receiver.RecvECN(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))
}

func TestSendBatchRejectsOversizedBatch(t *testing.T) {
	sender, err := Dial(loopbackAddr(t), &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1})
	require.NoError(t, err)
	defer sender.Close()

	datagrams := make([][]byte, MaxBatchSize+1)
	for i := range datagrams {
		datagrams[i] = []byte("x")
	}

	_, err = sender.SendBatch(datagrams)
	assert.ErrorIs(t, err, ErrSendError)
}

func TestCloseInterruptsPendingRecv(t *testing.T) {
	receiver, err := Dial(loopbackAddr(t), &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1500)
		_, _, _, err := receiver.RecvECN(buf)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, receiver.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not interrupt pending recv")
	}
}
