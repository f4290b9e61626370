// Package proxy implements the HTTP/1.x front-end: it accepts GET/POST
// over TCP via net/http, and for each request opens an ephemeral UDP
// socket connected to the datastore to run the handshake and the
// appropriate engine.
//
// Grounded on the Rust original's proxy_server/src/main.rs and
// server_handle/mod.rs (request parsing out of scope per spec.md §1, so
// this layer is rebuilt around net/http rather than translating the
// original's hand-rolled line reader) and on the teacher's
// clientudp.transferOnce for the request/engine hand-off shape.
package proxy

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/udprelay/gateway/internal/ctrlchan"
	"github.com/udprelay/gateway/internal/metrics"
	"github.com/udprelay/gateway/internal/recvwindow"
	"github.com/udprelay/gateway/internal/sendwindow"
	"github.com/udprelay/gateway/internal/wire"
	"github.com/udprelay/gateway/internal/xfererr"
)

// Handler is an http.Handler that translates GET/POST requests into
// transfers against a single datastore endpoint.
type Handler struct {
	DatastoreAddr *net.UDPAddr
	Timeout       time.Duration
	Metrics       *metrics.Collectors
	Log           *logrus.Entry
}

// NewMux builds the full routing table, including the Prometheus
// exposition endpoint from the domain stack, gathered from reg.
func NewMux(h *Handler, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", h)
	return mux
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New()
	log := h.Log.WithField("request", reqID.String()).WithField("path", r.URL.Path)

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, log)
	case http.MethodPost:
		h.handlePost(w, r, log)
	default:
		log.WithField("method", r.Method).Debug("rejecting unsupported method")
		http.Error(w, "unsupported method", http.StatusBadRequest)
	}
}

func (h *Handler) dial() (*net.UDPConn, error) {
	conn, err := net.DialUDP("udp", nil, h.DatastoreAddr)
	if err != nil {
		return nil, xfererr.WrapInternal(err, "dial datastore")
	}
	return conn, nil
}

func requestFilename(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/")
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, log *logrus.Entry) {
	filename := requestFilename(r)
	if filename == "" {
		http.Error(w, "missing file path", http.StatusBadRequest)
		return
	}
	log = log.WithField("filename", filename)

	conn, err := h.dial()
	if err != nil {
		log.WithError(err).Error("dial failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer conn.Close()

	body, err := wire.FilenameAsBody(filename)
	if err != nil {
		http.Error(w, "path too long", http.StatusBadRequest)
		return
	}
	req := wire.CreatePacket(wire.Get, 0, body)

	synack, err := ctrlchan.SendAndAwait(conn, req, wire.SynAck, h.Timeout, h.Metrics, log)
	if err != nil {
		writeWireError(w, err, log)
		return
	}
	size := synack.Seq()

	scratch, err := os.CreateTemp("", "udprelay-get-*")
	if err != nil {
		log.WithError(err).Error("scratch file creation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	scratchPath := scratch.Name()
	defer os.Remove(scratchPath)

	if h.Metrics != nil {
		h.Metrics.ActiveTransfers.Inc()
		defer h.Metrics.ActiveTransfers.Dec()
	}

	err = recvwindow.Run(conn, scratch, size, filename, h.Timeout, h.Metrics, log)
	scratch.Close()
	if err != nil {
		writeWireError(w, err, log)
		return
	}

	f, err := os.Open(scratchPath)
	if err != nil {
		log.WithError(err).Error("reopen scratch file failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Length", strconv.FormatUint(size, 10))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
	log.Info("GET completed")
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request, log *logrus.Entry) {
	filename := requestFilename(r)
	if filename == "" {
		http.Error(w, "missing file path", http.StatusBadRequest)
		return
	}
	if r.ContentLength < 0 {
		http.Error(w, "Content-Length required", http.StatusBadRequest)
		return
	}
	log = log.WithField("filename", filename).WithField("size", r.ContentLength)

	scratch, err := os.CreateTemp("", "udprelay-post-*")
	if err != nil {
		log.WithError(err).Error("scratch file creation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	scratchPath := scratch.Name()
	defer os.Remove(scratchPath)

	n, err := io.CopyN(scratch, r.Body, r.ContentLength)
	if err != nil || n != r.ContentLength {
		scratch.Close()
		log.WithError(err).Error("short read staging upload body")
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		scratch.Close()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := h.dial()
	if err != nil {
		scratch.Close()
		log.WithError(err).Error("dial failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer conn.Close()

	body, err := wire.FilenameAsBody(filename)
	if err != nil {
		scratch.Close()
		http.Error(w, "path too long", http.StatusBadRequest)
		return
	}
	req := wire.CreatePacket(wire.Post, uint64(r.ContentLength), body)

	if _, err := ctrlchan.SendAndAwait(conn, req, wire.Ack, h.Timeout, h.Metrics, log); err != nil {
		scratch.Close()
		writeWireError(w, err, log)
		return
	}

	if h.Metrics != nil {
		h.Metrics.ActiveTransfers.Inc()
		defer h.Metrics.ActiveTransfers.Dec()
	}

	err = sendwindow.Run(conn, scratch, h.Timeout, h.Metrics, log)
	scratch.Close()
	if err != nil {
		writeWireError(w, err, log)
		return
	}

	// The system's historical "200 CREATED" status line is non-standard
	// (canonically 201 Created, which net/http's WriteHeader cannot be made
	// to emit instead) and is reproduced literally over a hijacked
	// connection rather than silently fixed, since it is documented
	// upload-success behaviour, not a bug.
	writeCreated(w, filename, r.ContentLength, log)
	log.Info("POST completed")
}

func writeCreated(w http.ResponseWriter, filename string, size int64, log *logrus.Entry) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		w.Header().Set("Location", "/"+filename)
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		return
	}
	conn, buf, err := hijacker.Hijack()
	if err != nil {
		log.WithError(err).Error("hijack failed, cannot emit non-standard status line")
		return
	}
	defer conn.Close()
	fmt.Fprintf(buf, "HTTP/1.1 200 CREATED\r\nLocation: /%s\r\nContent-Length: %d\r\n\r\n", filename, size)
	buf.Flush()
}

func writeWireError(w http.ResponseWriter, err error, log *logrus.Entry) {
	switch xfererr.KindOf(err) {
	case xfererr.DNE:
		log.WithError(err).Debug("not found")
		http.Error(w, "not found", http.StatusNotFound)
	default:
		log.WithError(err).Error("transfer failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
