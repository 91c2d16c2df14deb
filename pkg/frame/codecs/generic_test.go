package codecs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericFragmentFitsInOnePacket(t *testing.T) {
	frags, err := Generic{}.Fragment(1200, []byte("small payload"))
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.True(t, frags[0].SetMarker)
}

func TestGenericFragmentSplitsOversizePayload(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 25)
	frags, err := Generic{}.Fragment(10, payload)
	require.NoError(t, err)
	require.Len(t, frags, 3)

	var reassembled []byte
	for i, f := range frags {
		require.Len(t, f.Buffers, 1)
		reassembled = append(reassembled, f.Buffers[0]...)
		assert.Equal(t, i == len(frags)-1, f.SetMarker)
	}
	assert.True(t, bytes.Equal(payload, reassembled))
}

func TestGenericFragmentRejectsEmptyPayload(t *testing.T) {
	_, err := Generic{}.Fragment(100, nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestGenericFragmentRejectsBadMTU(t *testing.T) {
	_, err := Generic{}.Fragment(0, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidMTU)
}
