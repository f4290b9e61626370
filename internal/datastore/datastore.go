// Package datastore implements the connection dispatcher that sits in
// front of the send/receive engines: one UDP datagram at a time, classify
// its flags, open the requested file, and hand the now-connected socket to
// whichever engine the request calls for.
//
// Grounded on the teacher's serverudp.dispatchCtrl/packetLoop and the Rust
// original's main.rs (receive_connections/determine_op), which this
// package follows for the rebind-per-transfer, one-at-a-time connection
// model described in spec.md §5.
package datastore

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/udprelay/gateway/internal/config"
	"github.com/udprelay/gateway/internal/ctrlchan"
	"github.com/udprelay/gateway/internal/metrics"
	"github.com/udprelay/gateway/internal/recvwindow"
	"github.com/udprelay/gateway/internal/sendwindow"
	"github.com/udprelay/gateway/internal/wire"
	"github.com/udprelay/gateway/internal/xfererr"
)

// Server accepts one transfer at a time on a fixed UDP port, dispatching
// each to the send or receive engine.
type Server struct {
	Host    string
	Port    int
	BaseDir string
	Timeout time.Duration
	Metrics *metrics.Collectors
	Log     *logrus.Entry
}

// Run serves forever, handling one connection to completion before
// accepting the next, matching the "no concurrent transfers sharing one
// socket" non-goal.
func (s *Server) Run() error {
	for {
		if err := s.serveOnce(); err != nil {
			s.Log.WithError(err).Warn("connection handling failed")
		}
	}
}

func (s *Server) listenAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(s.Host), Port: s.Port}
}

// serveOnce waits for the next request datagram on an unconnected,
// infinite-timeout listening socket, then rebinds a fresh socket connected
// to that peer for the duration of the transfer — mirroring the Rust
// original's bind/recv/connect/handle/drop cycle.
func (s *Server) serveOnce() error {
	laddr := s.listenAddr()
	listener, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return xfererr.WrapInternal(err, "bind datastore listening socket")
	}
	_ = listener.SetReadBuffer(config.DefaultReadBuffer)
	_ = listener.SetWriteBuffer(config.DefaultWriteBuffer)

	var buf [wire.MTU]byte
	_ = listener.SetReadDeadline(time.Time{})
	n, peer, err := listener.ReadFromUDP(buf[:])
	listener.Close()
	if err != nil {
		return xfererr.WrapInternal(err, "receive initial datagram")
	}
	if n < wire.HeaderLen {
		return nil
	}

	conn, err := net.DialUDP("udp", laddr, peer)
	if err != nil {
		return xfererr.WrapInternal(err, "connect to peer")
	}
	defer conn.Close()
	_ = conn.SetReadBuffer(config.DefaultReadBuffer)
	_ = conn.SetWriteBuffer(config.DefaultWriteBuffer)
	_ = conn.SetReadDeadline(time.Now().Add(s.Timeout))

	var pkt wire.Packet
	copy(pkt[:], buf[:n])

	id := xid.New()
	log := s.Log.WithField("conn", id.String()).WithField("peer", peer.String())

	if err := s.dispatch(conn, pkt, log); err != nil {
		s.sendError(conn, err, log)
		return err
	}
	return nil
}

func (s *Server) dispatch(conn *net.UDPConn, pkt wire.Packet, log *logrus.Entry) error {
	switch pkt.Flags() {
	case wire.Get:
		return s.handleGet(conn, pkt, log)
	case wire.Post:
		return s.handlePost(conn, pkt, log)
	case wire.Fin:
		log.Debug("stale FIN received, echoing to clean up peer")
		_, err := conn.Write(pkt[:])
		return err
	case wire.Ack:
		log.Debug("stale ACK received, replying FIN")
		fin := wire.CreateHeader(wire.Fin, pkt.Seq())
		_, err := conn.Write(fin[:])
		return err
	default:
		return xfererr.Internal("unrecognized initiating flag %s", pkt.Flags())
	}
}

func (s *Server) handleGet(conn *net.UDPConn, pkt wire.Packet, log *logrus.Entry) error {
	filename, err := wire.FilenameFromBody(pkt.Body())
	if err != nil {
		return xfererr.WrapInternal(err, "parse GET filename")
	}
	log = log.WithField("filename", filename)

	path, err := s.resolvePath(filename)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return xfererr.WrapNotFound(err, filename+" does not exist")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return xfererr.WrapInternal(err, "stat "+filename)
	}

	log.WithField("size", info.Size()).Info("GET")

	synack := wire.CreateHeader(wire.SynAck, uint64(info.Size()))
	if _, err := ctrlchan.SendAndAwait(conn, synack, wire.Ack, s.Timeout, s.Metrics, log); err != nil {
		return err
	}

	if s.Metrics != nil {
		s.Metrics.ActiveTransfers.Inc()
		defer s.Metrics.ActiveTransfers.Dec()
	}

	return sendwindow.Run(conn, file, s.Timeout, s.Metrics, log)
}

func (s *Server) handlePost(conn *net.UDPConn, pkt wire.Packet, log *logrus.Entry) error {
	filename, err := wire.FilenameFromBody(pkt.Body())
	if err != nil {
		return xfererr.WrapInternal(err, "parse POST filename")
	}
	size := pkt.Seq()
	log = log.WithField("filename", filename).WithField("size", size)

	path, err := s.resolvePath(filename)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return xfererr.WrapInternal(err, "create "+filename)
	}

	log.Info("POST")

	if s.Metrics != nil {
		s.Metrics.ActiveTransfers.Inc()
		defer s.Metrics.ActiveTransfers.Dec()
	}

	err = recvwindow.Run(conn, file, size, filename, s.Timeout, s.Metrics, log)
	file.Close()
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// resolvePath confines filename to s.BaseDir, rejecting any path that
// escapes it after cleaning — adapted from the teacher's handleREQ guard.
func (s *Server) resolvePath(filename string) (string, error) {
	clean := filepath.Clean(filename)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || filepath.IsAbs(clean) {
		return "", xfererr.Internal("invalid path %q", filename)
	}
	return filepath.Join(s.BaseDir, clean), nil
}

func (s *Server) sendError(conn *net.UDPConn, err error, log *logrus.Entry) {
	var flag wire.Flag
	switch xfererr.KindOf(err) {
	case xfererr.DNE:
		flag = wire.Flag404
	default:
		flag = wire.Flag500
	}
	log.WithError(err).Warn("transfer failed")
	pkt := wire.CreateHeader(flag, 0)
	_, _ = conn.Write(pkt[:])
	if s.Metrics != nil {
		kind := "server"
		if flag == wire.Flag404 {
			kind = "dne"
		}
		s.Metrics.TransferErrors.WithLabelValues(kind).Inc()
	}
}
