package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePacketRoundTrip(t *testing.T) {
	var body [BodyLen]byte
	copy(body[:], []byte("hello window"))

	for _, seq := range []uint64{0, 1, BodyLen - 1, BodyLen, 1 << 62, 1<<63 - 1} {
		pkt := CreatePacket(Data, seq, body)
		assert.Equal(t, seq, pkt.Seq(), "seq round-trips for %d", seq)
		assert.Equal(t, body, pkt.Body(), "body round-trips for %d", seq)
		assert.Equal(t, Data, pkt.Flags())
	}
}

func TestCreateHeaderZeroesBody(t *testing.T) {
	pkt := CreateHeader(Ack, 42)
	assert.Equal(t, Ack, pkt.Flags())
	assert.Equal(t, uint64(42), pkt.Seq())
	var zero [BodyLen]byte
	assert.Equal(t, zero, pkt.Body())
}

func TestCalculateIndex(t *testing.T) {
	assert.Equal(t, 0, CalculateIndex(100, 100))
	assert.Equal(t, 1, CalculateIndex(100+BodyLen, 100))
	assert.Equal(t, 4, CalculateIndex(100+4*BodyLen, 100))
}

func TestFilenameAsBodyRoundTrip(t *testing.T) {
	name := strings.Repeat("a", BodyLen-2)
	body, err := FilenameAsBody(name)
	require.NoError(t, err)
	got, err := FilenameFromBody(body)
	require.NoError(t, err)
	assert.Equal(t, name, got)
}

func TestFilenameAsBodyTooLong(t *testing.T) {
	name := strings.Repeat("a", BodyLen-1)
	_, err := FilenameAsBody(name)
	assert.Error(t, err)
}

func TestFilenameAsBodyShort(t *testing.T) {
	body, err := FilenameAsBody("hello.txt")
	require.NoError(t, err)
	got, err := FilenameFromBody(body)
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", got)
	assert.Equal(t, CR, body[len("hello.txt")])
	assert.Equal(t, LF, body[len("hello.txt")+1])
}

func TestFlagClassification(t *testing.T) {
	assert.True(t, Ack.IsAck())
	assert.True(t, Fin.IsAck())
	assert.True(t, SynAck.IsAck())
	assert.False(t, Data.IsAck())

	assert.True(t, Get.IsControl())
	assert.True(t, Post.IsControl())
	assert.False(t, Data.IsControl())
	assert.False(t, Ack.IsControl())
}
