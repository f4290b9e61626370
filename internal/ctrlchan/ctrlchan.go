// Package ctrlchan implements the synchronous request/response control
// channel used for the handshake frames: emit a packet,
// block for a reply up to a fixed timeout, and retry until a reply with the
// expected flags arrives or a wire-level error frame is seen.
//
// Grounded on the teacher's sendREQAndGetMeta retry-until-reply loop
// (internal/clientudp/clientudp.go), generalized from a META-specific wait
// into a reusable any-expected-flag helper matching spec.md §4.2.
package ctrlchan

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udprelay/gateway/internal/metrics"
	"github.com/udprelay/gateway/internal/wire"
	"github.com/udprelay/gateway/internal/xfererr"
)

// SendAndAwait repeatedly sends pkt over conn, waiting up to timeout for a
// reply, until a reply's flags equal expected. A reply carrying FLAG_404 or
// FLAG_500 fails immediately regardless of expected. Socket send errors are
// ignored (UDP is lossy by design); only receive errors cause a retry
// rather than propagating. There is no retry bound — the caller (the
// dispatcher) is responsible for bounding total request time if desired.
func SendAndAwait(conn *net.UDPConn, pkt wire.Packet, expected wire.Flag, timeout time.Duration, m *metrics.Collectors, log *logrus.Entry) (wire.Packet, error) {
	var buf [wire.MTU]byte
	first := true

	for {
		if !first && m != nil {
			m.ControlRetries.Inc()
		}
		first = false

		_, _ = conn.Write(pkt[:])

		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		n, err := conn.Read(buf[:])
		if err != nil {
			if log != nil {
				log.WithError(err).Debug("control channel: read timeout, retransmitting")
			}
			continue
		}
		if n < wire.HeaderLen {
			if log != nil {
				log.WithField("bytes", n).Debug("control channel: short reply, retransmitting")
			}
			continue
		}

		var reply wire.Packet
		copy(reply[:], buf[:])
		flags := reply.Flags()

		switch flags {
		case wire.Flag404:
			return wire.Packet{}, xfererr.NotFound("peer reported resource does not exist")
		case wire.Flag500:
			return wire.Packet{}, xfererr.Internal("peer reported a server error")
		}

		if flags == expected {
			return reply, nil
		}

		if log != nil {
			log.WithField("got", flags.String()).WithField("want", expected.String()).Debug("control channel: flag mismatch, retransmitting")
		}
	}
}
