//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/lstoll/netrelay/blob/main/connecttunnel/tunnel.go
//

package nop

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewHTTPConnectNegotiator returns a new [*HTTPConnectNegotiator].
//
// The cfg argument contains the common configuration for nop operations.
//
// The proxy argument is the proxy configuration; proxy.Kind is ignored here
// (the caller has already dispatched on it via [NewProxyNegotiator]).
//
// The logger argument is the [SLogger] to use for structured logging.
func NewHTTPConnectNegotiator(cfg *Config, proxy *ProxyConfig, logger SLogger) *HTTPConnectNegotiator {
	return &HTTPConnectNegotiator{
		Authorization: proxy.Authorization,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// HTTPConnectNegotiator performs the HTTP CONNECT tunnel handshake: it
// writes
//
//	CONNECT host:port HTTP/1.1\r\nHost: host:port\r\n[Proxy-Authorization: ...\r\n]\r\n
//
// and treats any 2xx status as success. A 407 status is
// [ErrKindProxyAuthenticationRequired]; any other non-2xx status is
// [ErrKindInvalidProxyResponse]. Bytes following the status line's header
// block are returned untouched as the start of the tunnel.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Negotiate].
type HTTPConnectNegotiator struct {
	// Authorization carries optional Proxy-Authorization credentials.
	//
	// Set by [NewHTTPConnectNegotiator] from [ProxyConfig.Authorization].
	Authorization ProxyAuthorization

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewHTTPConnectNegotiator] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewHTTPConnectNegotiator] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewHTTPConnectNegotiator] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ ProxyNegotiator = &HTTPConnectNegotiator{}

// Negotiate implements [ProxyNegotiator].
//
// Entry logs the handshake start and installs the deadline watcher,
// [op.handshake] drives the request/response exchange, and the watcher
// firing first is what turns a generic I/O error into
// [ErrKindHTTPProxyHandshakeTimeout].
func (op *HTTPConnectNegotiator) Negotiate(ctx context.Context, conn net.Conn, realTarget Target) (net.Conn, error) {
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logHandshakeStart(conn, t0, deadline)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	result, err := op.handshake(conn, realTarget)
	if err != nil {
		if ctx.Err() != nil && !stop() {
			// The deadline watcher already fired and closed conn; report
			// the stage-specific timeout instead of the raw I/O error.
			err = NewConnectError(ErrKindHTTPProxyHandshakeTimeout, "", ctx.Err())
		}
		op.logHandshakeDone(conn, t0, deadline, err)
		conn.Close()
		return nil, err
	}

	op.logHandshakeDone(conn, t0, deadline, nil)
	return result, nil
}

// handshake writes the CONNECT request and parses the response status line,
// returning the tunnel connection (with any buffered trailing bytes
// preserved) on success.
func (op *HTTPConnectNegotiator) handshake(conn net.Conn, realTarget Target) (net.Conn, error) {
	authority := realTarget.Authority()

	request := "CONNECT " + authority + " HTTP/1.1\r\nHost: " + authority + "\r\n"
	if header, ok := op.authorizationHeader(); ok {
		request += header + "\r\n"
	}
	request += "\r\n"

	if _, err := conn.Write([]byte(request)); err != nil {
		return nil, NewConnectError(ErrKindPosix, "writing CONNECT request", err)
	}

	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, &http.Request{Method: "CONNECT"})
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, NewConnectError(ErrKindRemoteConnectionClosed, "proxy closed connection", err)
		}
		return nil, NewConnectError(ErrKindInvalidProxyResponse, "malformed CONNECT response", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusProxyAuthRequired {
		return nil, NewConnectError(ErrKindProxyAuthenticationRequired, resp.Status, nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewConnectError(ErrKindInvalidProxyResponse, resp.Status, nil)
	}

	// Any bytes already buffered by bufio.Reader past the header block are
	// opaque tunnel bytes from the target, not proxy framing: preserve them.
	if reader.Buffered() > 0 {
		return &bufferedConn{Conn: conn, reader: reader}, nil
	}
	return conn, nil
}

func (op *HTTPConnectNegotiator) authorizationHeader() (string, bool) {
	if user, pass, ok := op.Authorization.IsBasic(); ok {
		encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
		return "Proxy-Authorization: Basic " + encoded, true
	}
	if token, ok := op.Authorization.IsBearer(); ok {
		return "Proxy-Authorization: Bearer " + token, true
	}
	return "", false
}

func (op *HTTPConnectNegotiator) logHandshakeStart(conn net.Conn, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"httpProxyHandshakeStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
	)
}

func (op *HTTPConnectNegotiator) logHandshakeDone(conn net.Conn, t0 time.Time, deadline time.Time, err error) {
	op.Logger.Info(
		"httpProxyHandshakeDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}

// bufferedConn prepends bytes already read into a [*bufio.Reader] to the
// next Read calls, so tunnel bytes buffered while parsing the CONNECT
// response status line are not lost.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

// Read implements [net.Conn].
func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}
