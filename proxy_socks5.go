//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/WhileEndless/go-rawhttp/blob/main/pkg/transport/transport.go
// (connectViaSOCKS5Proxy), which wraps golang.org/x/net/proxy.SOCKS5
// "instead of manual implementation for reliability and RFC compliance".
//
// Wire protocol: RFC 1928 (SOCKS Protocol Version 5) and RFC 1929
// (Username/Password Authentication for SOCKS V5), implemented by
// golang.org/x/net/proxy rather than hand-rolled here; see DESIGN.md.
//

package nop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/bassosimone/safeconn"
	netproxy "golang.org/x/net/proxy"
)

// NewSOCKS5Negotiator returns a new [*SOCKS5Negotiator].
//
// The cfg argument contains the common configuration for nop operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewSOCKS5Negotiator(cfg *Config, proxy *ProxyConfig, logger SLogger) *SOCKS5Negotiator {
	return &SOCKS5Negotiator{
		Authorization: proxy.Authorization,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// SOCKS5Negotiator performs the RFC 1928 SOCKSv5 handshake: greet ->
// method-select -> (optional RFC 1929 username/password sub-negotiation) ->
// CONNECT request carrying the real target's domain name or IP literal
// directly (never a pre-resolved address — the SOCKS5 server resolves
// domains itself).
//
// The wire exchange itself is delegated to [golang.org/x/net/proxy.SOCKS5]
// rather than hand-rolled: it is already a direct dependency of this module
// (pulled in for HTTP/2) and is the client every proxy-aware stack in the
// pack reaches for instead of re-implementing RFC 1928/1929 byte-by-byte.
// [pinnedDialer] adapts it to negotiate over the conn [Bootstrap.Connect]
// already established against the proxy, rather than dialing a second one.
//
// Unix-domain-socket targets are rejected with [ErrUnixSocketNotProxyable]
// before any I/O.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Negotiate].
type SOCKS5Negotiator struct {
	// Authorization carries optional username/password credentials for the
	// RFC 1929 sub-negotiation.
	//
	// Set by [NewSOCKS5Negotiator] from [ProxyConfig.Authorization].
	Authorization ProxyAuthorization

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewSOCKS5Negotiator] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewSOCKS5Negotiator] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewSOCKS5Negotiator] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ ProxyNegotiator = &SOCKS5Negotiator{}

// Negotiate implements [ProxyNegotiator].
func (op *SOCKS5Negotiator) Negotiate(ctx context.Context, conn net.Conn, realTarget Target) (net.Conn, error) {
	if realTarget.IsUnix() {
		conn.Close()
		return nil, ErrUnixSocketNotProxyable
	}

	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logHandshakeStart(conn, t0, deadline)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	tunnel, err := op.handshake(conn, realTarget)
	if err != nil {
		if ctx.Err() != nil && !stop() {
			// The deadline watcher already fired and closed conn; report
			// the stage-specific timeout instead of the raw I/O error.
			err = NewConnectError(ErrKindSOCKSHandshakeTimeout, "", ctx.Err())
		}
		op.logHandshakeDone(conn, t0, deadline, err)
		conn.Close()
		return nil, err
	}

	op.logHandshakeDone(conn, t0, deadline, nil)
	return tunnel, nil
}

// handshake builds a [golang.org/x/net/proxy.Dialer] around conn via
// [pinnedDialer] and lets it drive the RFC 1928/1929 exchange, returning the
// same conn (now past the handshake) as the tunnel.
func (op *SOCKS5Negotiator) handshake(conn net.Conn, realTarget Target) (net.Conn, error) {
	var auth *netproxy.Auth
	if user, pass, ok := op.Authorization.IsBasic(); ok && user != "" {
		auth = &netproxy.Auth{User: user, Password: pass}
	}

	dialer, err := netproxy.SOCKS5("tcp", safeconn.RemoteAddr(conn), auth, pinnedDialer{conn})
	if err != nil {
		return nil, NewConnectError(ErrKindInvalidProxyResponse, "constructing SOCKS5 dialer", err)
	}

	tunnel, err := dialer.Dial("tcp", realTarget.Authority())
	if err != nil {
		return nil, classifySOCKS5Error(err)
	}
	return tunnel, nil
}

// pinnedDialer is a [golang.org/x/net/proxy.Dialer] whose Dial returns an
// already-connected conn instead of opening one. [SOCKS5Negotiator.handshake]
// uses it so golang.org/x/net/proxy negotiates over the conn
// [Bootstrap.Connect] already established against the proxy, rather than
// dialing a second connection of its own.
type pinnedDialer struct {
	conn net.Conn
}

// Dial implements [golang.org/x/net/proxy.Dialer].
func (d pinnedDialer) Dial(network, addr string) (net.Conn, error) {
	return d.conn, nil
}

// classifySOCKS5Error maps a golang.org/x/net/proxy SOCKS5 failure onto this
// package's [ErrKind] taxonomy. The library exposes no typed errors for this,
// so this matches against the substring its own source uses for every
// authentication-related failure ("no acceptable authentication methods",
// "socks authentication failed"); a proxy that hangs up mid-handshake is
// [ErrKindRemoteConnectionClosed]; anything else is a malformed or rejected
// CONNECT reply.
func classifySOCKS5Error(err error) error {
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "auth") {
		return NewConnectError(ErrKindProxyAuthenticationRequired, err.Error(), err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || strings.HasSuffix(lower, "eof") {
		return NewConnectError(ErrKindRemoteConnectionClosed, "proxy closed connection", err)
	}
	return NewConnectError(ErrKindInvalidProxyResponse, err.Error(), err)
}

func (op *SOCKS5Negotiator) logHandshakeStart(conn net.Conn, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"socksHandshakeStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
	)
}

func (op *SOCKS5Negotiator) logHandshakeDone(conn net.Conn, t0 time.Time, deadline time.Time, err error) {
	op.Logger.Info(
		"socksHandshakeDone",
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
