package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	key := &Key{StartTime: time.Date(2024, time.June, 1, 10, 0, 0, 123, time.UTC), ID: "a|b"}

	decoded, err := DecodeToken(EncodeToken(key))
	require.NoError(t, err)
	require.True(t, key.StartTime.Equal(decoded.StartTime))
	require.Equal(t, "a|b", decoded.ID)

	empty, err := DecodeToken("  ")
	require.NoError(t, err)
	require.Nil(t, empty)
	require.Empty(t, EncodeToken(nil))
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	_, err := DecodeToken("not base64!")
	require.Error(t, err)
}

func TestKeyAfter(t *testing.T) {
	ts := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	k := &Key{StartTime: ts, ID: "m"}

	require.True(t, k.After(ts, "n"))
	require.False(t, k.After(ts, "m"))
	require.False(t, k.After(ts.Add(-time.Second), "z"))
	require.True(t, k.After(ts.Add(time.Second), "a"))

	var none *Key
	require.True(t, none.After(ts, ""))
}

func TestChunk(t *testing.T) {
	require.Equal(t, [][2]int{{0, 25}, {25, 50}, {50, 53}}, Chunk(53, 25))
	require.Empty(t, Chunk(0, 25))
	require.Equal(t, [][2]int{{0, 3}}, Chunk(3, 0))
}
