package sendwindow

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udprelay/gateway/internal/config"
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

func TestNewFillsWindowFromSmallFile(t *testing.T) {
	data := bytes.Repeat([]byte{'x'}, wire.BodyLen/2)
	w, err := New(bytes.NewReader(data))
	require.NoError(t, err)
	require.True(t, w.slots[0].present)
	require.False(t, w.slots[1].present)
}

func TestNewFillsFullWindowFromLargeFile(t *testing.T) {
	data := bytes.Repeat([]byte{'y'}, config.WindowSize*wire.BodyLen+10)
	w, err := New(bytes.NewReader(data))
	require.NoError(t, err)
	for i := 0; i < config.WindowSize; i++ {
		require.True(t, w.slots[i].present)
		require.EqualValues(t, i*wire.BodyLen, w.slots[i].seq)
	}
}

func TestRunSendsAndTerminatesOnFin(t *testing.T) {
	sender, receiver := loopbackPair(t)
	data := bytes.Repeat([]byte{'z'}, wire.BodyLen+5)

	done := make(chan error, 1)
	go func() {
		done <- Run(sender, bytes.NewReader(data), 250*time.Millisecond, nil, nil)
	}()

	var buf [wire.MTU]byte
	received := make(map[uint64][]byte)
	for len(received) < 2 {
		n, err := receiver.Read(buf[:])
		require.NoError(t, err)
		var pkt wire.Packet
		copy(pkt[:], buf[:n])
		body := pkt.Body()
		received[pkt.Seq()] = append([]byte(nil), body[:]...)
	}

	ack := wire.CreateHeader(wire.Ack, wire.BodyLen+5)
	_, err := receiver.Write(ack[:])
	require.NoError(t, err)

	fin := wire.CreateHeader(wire.Fin, wire.BodyLen+5)
	_, err = receiver.Write(fin[:])
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate after FIN")
	}
}
