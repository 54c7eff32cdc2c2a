package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageKeyRoundTrip(t *testing.T) {
	k := GenMessageKey("general", 1700000000000000042, "0190a1b2-c3d4")
	assert.Equal(t, "c:general:m:01700000000000000042:0190a1b2-c3d4", k)

	p, err := ParseMessageKey(k)
	require.NoError(t, err)
	assert.Equal(t, &MessageKeyParts{ChannelID: "general", TS: 1700000000000000042, MessageID: "0190a1b2-c3d4"}, p)
}

func TestMessageKeysSortByTime(t *testing.T) {
	early := GenMessageKey("general", 9, "z")
	late := GenMessageKey("general", 10, "a")
	assert.Less(t, early, late)
}

func TestReactionKey(t *testing.T) {
	k := GenReactionKey("m1", 7)
	assert.Equal(t, "r:m1:00000000000000000007", k)
	p, err := ParseReactionKey(k)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), p.Seq)
	assert.Equal(t, "m1", p.MessageID)
}

func TestReactionKeysSortBySeq(t *testing.T) {
	prev := GenReactionKey("m1", 999999)
	for _, seq := range []uint64{1000000, 1000001, 1 << 40} {
		k := GenReactionKey("m1", seq)
		assert.Less(t, prev, k)
		p, err := ParseReactionKey(k)
		require.NoError(t, err)
		assert.Equal(t, seq, p.Seq)
		prev = k
	}

	_, err := ParseReactionKey("r:m1:000007")
	assert.Error(t, err)
}

func TestChannelMeta(t *testing.T) {
	id, ok := ParseChannelMeta(GenChannelMeta("dm_u1_u%5F2"))
	assert.True(t, ok)
	assert.Equal(t, "dm_u1_u%5F2", id)

	_, ok = ParseChannelMeta(GenMessageKey("general", 1, "x"))
	assert.False(t, ok)
}

func TestValidateID(t *testing.T) {
	for _, good := range []string{"general", "dm_a_b", "0190a1b2-c3d4-7e5f", "u%5Fx"} {
		assert.NoError(t, ValidateID(good), good)
	}
	for _, bad := range []string{"", "a:b", "has space"} {
		assert.Error(t, ValidateID(bad), bad)
	}
}

func TestUpperBound(t *testing.T) {
	assert.Equal(t, []byte("c:general:m;"), UpperBound("c:general:m:"))
	assert.Nil(t, UpperBound("\xff\xff"))
}
