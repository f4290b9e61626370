package ctrlchan

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udprelay/gateway/internal/wire"
)

func loopbackPair(t *testing.T) (*net.UDPConn, *net.UDPConn) {
	t.Helper()
	a, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	b, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	aAddr := a.LocalAddr().(*net.UDPAddr)
	bAddr := b.LocalAddr().(*net.UDPAddr)
	a.Close()
	b.Close()

	ca, err := net.DialUDP("udp", aAddr, bAddr)
	require.NoError(t, err)
	cb, err := net.DialUDP("udp", bAddr, aAddr)
	require.NoError(t, err)

	t.Cleanup(func() { ca.Close(); cb.Close() })
	return ca, cb
}

func TestSendAndAwaitMatchesExpectedFlag(t *testing.T) {
	client, server := loopbackPair(t)

	go func() {
		buf := make([]byte, wire.MTU)
		n, _ := server.Read(buf)
		if n < wire.HeaderLen {
			return
		}
		reply := wire.CreateHeader(wire.SynAck, 1234)
		server.Write(reply[:])
	}()

	req := wire.CreateHeader(wire.Get, 0)
	reply, err := SendAndAwait(client, req, wire.SynAck, 250*time.Millisecond, nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1234), reply.Seq())
}

func TestSendAndAwaitRetriesOnMismatchThenRecovers(t *testing.T) {
	client, server := loopbackPair(t)

	go func() {
		buf := make([]byte, wire.MTU)
		// first reply: wrong flags, should be ignored
		n, _ := server.Read(buf)
		if n < wire.HeaderLen {
			return
		}
		bad := wire.CreateHeader(wire.Ack, 0)
		server.Write(bad[:])

		// second request retransmitted after mismatch; reply correctly
		n, _ = server.Read(buf)
		if n < wire.HeaderLen {
			return
		}
		good := wire.CreateHeader(wire.SynAck, 99)
		server.Write(good[:])
	}()

	req := wire.CreateHeader(wire.Get, 0)
	reply, err := SendAndAwait(client, req, wire.SynAck, 250*time.Millisecond, nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(99), reply.Seq())
}

func TestSendAndAwaitFailsOn404(t *testing.T) {
	client, server := loopbackPair(t)

	go func() {
		buf := make([]byte, wire.MTU)
		n, _ := server.Read(buf)
		if n < wire.HeaderLen {
			return
		}
		notFound := wire.CreateHeader(wire.Flag404, 0)
		server.Write(notFound[:])
	}()

	req := wire.CreateHeader(wire.Get, 0)
	_, err := SendAndAwait(client, req, wire.SynAck, 250*time.Millisecond, nil, nil)
	require.Error(t, err)
}
