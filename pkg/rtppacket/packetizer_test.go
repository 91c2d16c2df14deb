package rtppacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPacketizerAssignsDistinctSSRC(t *testing.T) {
	a, err := NewPacketizer(96, 90000)
	require.NoError(t, err)
	b, err := NewPacketizer(96, 90000)
	require.NoError(t, err)

	assert.NotEqual(t, a.SSRC(), b.SSRC())
}

func TestPacketizerUpdateSequenceIsMonotonicWithWraparound(t *testing.T) {
	p, err := NewPacketizer(96, 90000)
	require.NoError(t, err)
	p.sequenceNumber = 0xfffe

	var h Header
	first := p.UpdateSequence(&h)
	assert.Equal(t, uint16(0xfffe), first)

	second := p.UpdateSequence(&h)
	assert.Equal(t, uint16(0xffff), second)

	third := p.UpdateSequence(&h)
	assert.Equal(t, uint16(0), third, "sequence number must wrap silently at 16 bits")
}

func TestPacketizerFillHeaderCarriesCurrentTemplate(t *testing.T) {
	p, err := NewPacketizer(111, 8000)
	require.NoError(t, err)
	p.AdvanceTimestamp(160)

	var h Header
	p.FillHeader(&h)

	assert.Equal(t, uint8(111), h.PayloadType)
	assert.Equal(t, p.SSRC(), h.SSRC)
	assert.Equal(t, uint32(160), h.Timestamp)
}

func TestPacketizerIncSentPackets(t *testing.T) {
	p, err := NewPacketizer(96, 90000)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		p.IncSentPackets()
	}
	assert.Equal(t, uint64(5), p.SentPackets())
}
