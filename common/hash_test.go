package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashJSONRoundTrip(t *testing.T) {
	var h Hash
	h[0] = 0xab
	h[31] = 0xcd

	out, err := json.Marshal(h)
	require.NoError(t, err)
	require.Equal(t, `"`+h.Hex()+`"`, string(out))

	var back Hash
	require.NoError(t, json.Unmarshal(out, &back))
	require.Equal(t, h, back)
}

func TestHexToHashRejectsInvalidInput(t *testing.T) {
	_, err := HexToHash("0xzz")
	require.Error(t, err)
}

func TestBytesToHashPadsAndTruncates(t *testing.T) {
	require.False(t, BytesToHash([]byte{0x01}).IsZero())
	long := make([]byte, 40)
	long[len(long)-1] = 0xff
	h := BytesToHash(long)
	require.Equal(t, byte(0xff), h[HashLength-1])
}
