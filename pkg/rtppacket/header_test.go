package rtppacket

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderMarshalUnmarshalRoundTrip(t *testing.T) {
	h := &Header{
		Padding:        false,
		Marker:         true,
		PayloadType:    96,
		SequenceNumber: 4242,
		Timestamp:      0xdeadbeef,
		SSRC:           0x1234abcd,
		Sentinel:       SentinelBlockStart,
	}

	buf := make([]byte, h.MarshalSize())
	n, err := h.Marshal(buf)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize+extensionSize, n)

	var got Header
	require.NoError(t, got.Unmarshal(buf))

	assert.Equal(t, h.Marker, got.Marker)
	assert.Equal(t, h.PayloadType, got.PayloadType)
	assert.Equal(t, h.SequenceNumber, got.SequenceNumber)
	assert.Equal(t, h.Timestamp, got.Timestamp)
	assert.Equal(t, h.SSRC, got.SSRC)
	assert.Equal(t, h.Sentinel, got.Sentinel)
	assert.True(t, got.Extension)
}

func TestHeaderFillParseFillIsByteIdentical(t *testing.T) {
	h := &Header{
		Marker:         false,
		PayloadType:    98,
		SequenceNumber: 7,
		Timestamp:      1000,
		SSRC:           0xaabbccdd,
		Sentinel:       SentinelNone,
	}

	first := make([]byte, h.MarshalSize())
	_, err := h.Marshal(first)
	require.NoError(t, err)

	var parsed Header
	require.NoError(t, parsed.Unmarshal(first))

	second := make([]byte, parsed.MarshalSize())
	_, err = parsed.Marshal(second)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second))
}

func TestHeaderUnmarshalRejectsBadVersion(t *testing.T) {
	buf := make([]byte, HeaderSize+extensionSize)
	buf[0] = 1 << 6 // version 1

	var h Header
	err := h.Unmarshal(buf)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestHeaderUnmarshalRejectsShortBuffer(t *testing.T) {
	var h Header
	err := h.Unmarshal(make([]byte, 4))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestSetSentinelMutatesInPlaceWithoutTouchingFixedFields(t *testing.T) {
	h := &Header{
		PayloadType:    96,
		SequenceNumber: 1,
		Timestamp:      1,
		SSRC:           1,
		Sentinel:       SentinelNone,
	}
	buf := make([]byte, h.MarshalSize())
	_, err := h.Marshal(buf)
	require.NoError(t, err)

	fixed := append([]byte(nil), buf[:HeaderSize]...)

	require.NoError(t, SetSentinel(buf, SentinelBlockEnd))

	assert.True(t, bytes.Equal(fixed, buf[:HeaderSize]))

	var parsed Header
	require.NoError(t, parsed.Unmarshal(buf))
	assert.Equal(t, SentinelBlockEnd, parsed.Sentinel)
}

func TestSentinelIsBoundary(t *testing.T) {
	assert.False(t, SentinelNone.IsBoundary())
	assert.True(t, SentinelBlockStart.IsBoundary())
	assert.True(t, SentinelBlockEnd.IsBoundary())
}

func TestReadExtensionIgnoresForeignProfile(t *testing.T) {
	buf := make([]byte, extensionSize)
	// A non-0xBEDE profile, as a peer that attached its own extension
	// data would send.
	buf[0], buf[1] = 0x10, 0x00
	buf[2], buf[3] = 0x00, 0x01
	buf[4] = 0x5 << 4

	assert.Equal(t, SentinelNone, readExtension(buf))
}
