// Package recvwindow implements the sliding-window receive engine: accept
// up to W out-of-order DATA packets within the window, flush the
// contiguous prefix to disk as it becomes available, and cumulative-ACK
// the next expected byte.
//
// Grounded on the teacher's client-side receiveData/runNackRounds
// (internal/clientudp/clientudp.go) and closely on the Rust original's
// protocol/receive/{mod,buffer}.rs, whose save/add/ack split this package
// mirrors directly.
package recvwindow

import (
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/udprelay/gateway/internal/config"
	"github.com/udprelay/gateway/internal/metrics"
	"github.com/udprelay/gateway/internal/wire"
	"github.com/udprelay/gateway/internal/xfererr"
)

type slot struct {
	present bool
	seq     uint64
	body    [wire.BodyLen]byte
}

// Window is a receiver-side sliding window writing a single incoming file
// to disk as bytes arrive in order. It is not safe for concurrent use.
type Window struct {
	file     io.Writer
	size     uint64 // total expected file size
	received uint64 // distinct bytes admitted so far
	start    uint64 // next expected byte offset
	slots    [config.WindowSize]slot
}

// New constructs a Window that writes to file, expecting size total bytes.
func New(file io.Writer, size uint64) *Window {
	return &Window{file: file, size: size}
}

// IsEmpty reports whether no byte has been received yet.
func (w *Window) IsEmpty() bool {
	return w.received == 0
}

// dataSize returns how many bytes the slot at the current start should
// hold: BodyLen, unless that would overrun the file's declared size.
func (w *Window) dataSize() int {
	if w.start+wire.BodyLen >= w.size {
		return int(w.size - w.start)
	}
	return wire.BodyLen
}

// flush writes every contiguous occupied leading slot to disk, sliding the
// window forward past each one, and returns the new start offset to ACK.
func (w *Window) flush() (uint64, error) {
	for i := 0; i < config.WindowSize; i++ {
		if !w.slots[0].present {
			break
		}

		n := w.dataSize()
		body := w.slots[0].body
		if _, err := w.file.Write(body[:n]); err != nil {
			return 0, xfererr.WrapInternal(err, "write received data to disk")
		}

		copy(w.slots[:config.WindowSize-1], w.slots[1:])
		w.slots[config.WindowSize-1] = slot{}
		w.start += wire.BodyLen
	}
	return w.start, nil
}

// outcome reports whether a just-admitted packet completed the transfer.
type outcome int

const (
	// More indicates the transfer is still in progress.
	More outcome = iota
	// Done indicates every byte of the file has now been received.
	Done
)

// add inserts a DATA packet's payload into the window. Packets before the
// window are stale duplicates and dropped; packets beyond the window or
// already occupying their slot are dropped too.
func (w *Window) add(pkt wire.Packet) (outcome, error) {
	seq := pkt.Seq()
	if seq < w.start {
		return More, nil
	}

	index := wire.CalculateIndex(seq, w.start)
	if index < 0 || index >= config.WindowSize || w.slots[index].present {
		return More, nil
	}

	w.slots[index] = slot{present: true, seq: seq, body: pkt.Body()}
	w.received += wire.BodyLen

	if w.received >= w.size {
		return Done, nil
	}
	return More, nil
}

// Run drives the receive engine to completion over conn, which must
// already be connected to the peer, writing size total bytes to file. It
// blocks until every byte has been received and the final FIN has been
// sent, or a wire-level/transport error terminates it early.
func Run(conn *net.UDPConn, file io.Writer, size uint64, filename string, timeout time.Duration, m *metrics.Collectors, log *logrus.Entry) error {
	w := New(file, size)

	var buf [wire.MTU]byte
	for {
		ackSeq, err := w.flush()
		if err != nil {
			return err
		}
		ack := wire.CreateHeader(wire.Ack, ackSeq)
		if _, err := conn.Write(ack[:]); err != nil {
			return xfererr.WrapInternal(err, "send cumulative ack")
		}

		for i := 0; i < config.WindowSize; i++ {
			_ = conn.SetReadDeadline(time.Now().Add(timeout))
			n, err := conn.Read(buf[:])
			if err != nil {
				// timeout: break out to re-flush/re-ack and re-listen
				break
			}
			if n < wire.HeaderLen {
				continue
			}

			var pkt wire.Packet
			copy(pkt[:], buf[:n])
			flags := pkt.Flags()

			if flags != wire.Data {
				if w.IsEmpty() {
					// peer hasn't seen our first ACK yet; ignore and keep waiting
					continue
				}
				return xfererr.Internal("unexpected flag %s while receiving data", flags)
			}

			before := w.received
			result, err := w.add(pkt)
			if err != nil {
				return err
			}
			if m != nil && w.received > before {
				m.SegmentsReceived.Inc()
			}
			if result == Done {
				ackSeq, err = w.flush()
				if err != nil {
					return err
				}
				if m != nil {
					m.BytesReceived.Add(float64(w.received))
				}
				return w.terminate(conn, ackSeq, filename)
			}
		}
	}
}

// terminate sends the final FIN carrying the agreed-on filename as its
// body, echoing the send engine's handshake on the way out.
func (w *Window) terminate(conn *net.UDPConn, ackSeq uint64, filename string) error {
	body, err := wire.FilenameAsBody(filename)
	if err != nil {
		return err
	}
	fin := wire.CreatePacket(wire.Fin, ackSeq, body)
	_, err = conn.Write(fin[:])
	return err
}
