// Package sendwindow implements the sliding-window send engine: hold up to
// W unacknowledged packets in flight, retransmit the whole window on a
// fixed timeout, and slide it forward as cumulative ACKs arrive.
//
// Grounded on the teacher's segment-emission loop in
// internal/serverudp/serverudp.go (handleREQ/handleNACK), generalized from
// a fire-and-forget-then-NACK scheme into the spec's go-back-N window, and
// on the Rust original's protocol/send/{mod,buffer}.rs, which this package
// follows closely for fill/send/adjust semantics.
package sendwindow

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

// Window is a sender-side sliding window over a single file being
// transferred. It is not safe for concurrent use.
type Window struct {
	file  io.Reader
	slots [config.WindowSize]slot
	start uint64 // next byte expected to be acked
}

// New constructs a Window reading from file and fills the initial slots.
func New(file io.Reader) (*Window, error) {
	w := &Window{file: file}
	if err := w.fillWindow(); err != nil {
		return nil, err
	}
	return w, nil
}

// fillWindow tops up every empty slot from the file, preserving already
// occupied slots and their byte offsets.
func (w *Window) fillWindow() error {
	index := w.start
	for i := range w.slots {
		if w.slots[i].present {
			index = w.slots[i].seq + wire.BodyLen
			continue
		}

		var buf [wire.BodyLen]byte
		n, err := io.ReadFull(w.file, buf[:])
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return xfererr.WrapInternal(err, "read file for send window")
		}
		if n == 0 {
			return nil
		}

		w.slots[i] = slot{present: true, seq: index, body: buf}
		index += wire.BodyLen

		if n < wire.BodyLen {
			break
		}
	}
	return nil
}

// IsDone reports whether every byte of the file has been acknowledged.
func (w *Window) IsDone() bool {
	return !w.slots[0].present
}

// transmit sends every occupied slot over conn.
func (w *Window) transmit(conn *net.UDPConn, m *metrics.Collectors) {
	for i := range w.slots {
		if !w.slots[i].present {
			return
		}
		pkt := wire.CreatePacket(wire.Data, w.slots[i].seq, w.slots[i].body)
		n, err := conn.Write(pkt[:])
		if err != nil {
			continue
		}
		if m != nil {
			m.SegmentsSent.Inc()
			m.BytesSent.Add(float64(n))
		}
	}
}

// adjust slides the window forward in response to an ACK/FIN reply
// carrying the next expected byte offset, then refills the freed slots.
//
// live tracks how many leading slots are still meaningful, mirroring the
// original's shrinking Vec: a slot beyond live is an unfilled pad, not a
// genuine gap, and the two must be told apart when deciding whether the
// window has been fully drained.
func (w *Window) adjust(ackSeq uint64) error {
	live := 0
	for _, s := range w.slots {
		if s.present {
			live++
		}
	}

	for i := 0; i < config.WindowSize; i++ {
		if live == 0 {
			return w.fillWindow()
		}
		if w.slots[0].seq >= ackSeq {
			w.start = w.slots[0].seq
			return w.fillWindow()
		}

		copy(w.slots[:config.WindowSize-1], w.slots[1:])
		w.slots[config.WindowSize-1] = slot{}
		live--

		if live == 0 {
			w.start += wire.BodyLen
			return w.fillWindow()
		}
		if !w.slots[0].present {
			return w.fillWindow()
		}
		w.start = w.slots[0].seq
	}
	return w.fillWindow()
}

// Run drives the send engine to completion over conn, which must already
// be connected to the peer. It blocks until the transfer finishes (a FIN
// is echoed back) or a wire-level/transport error terminates it early.
func Run(conn *net.UDPConn, file io.Reader, timeout time.Duration, m *metrics.Collectors, log *logrus.Entry) error {
	w, err := New(file)
	if err != nil {
		return err
	}

	var buf [wire.MTU]byte
	for {
		w.transmit(conn, m)

		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		n, err := conn.Read(buf[:])
		if err != nil {
			if m != nil {
				m.Retransmissions.Inc()
			}
			if log != nil {
				log.Debug("send window: read timeout, retransmitting window")
			}
			continue
		}
		if n < wire.HeaderLen {
			continue
		}

		var reply wire.Packet
		copy(reply[:], buf[:])
		flags := reply.Flags()

		if !flags.IsAck() {
			// peer closed the control channel early; nothing more to send
			return nil
		}

		ackSeq := reply.Seq()
		if err := w.adjust(ackSeq); err != nil {
			return err
		}

		if flags == wire.Fin {
			_, _ = conn.Write(reply[:])
			if !w.IsDone() {
				if log != nil {
					log.Warn("send window: received FIN before all data was sent")
				}
			}
			return nil
		}
	}
}
