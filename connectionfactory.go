//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/netx/blob/master/internal/internal.go
//

package nop

import (
	"context"
	"net"
)

// HTTPConnectionRequester receives lifecycle callbacks from
// [*ConnectionFactory.MakeConnection] so a caller can drive connection-pool
// bookkeeping without inspecting [*HTTPConn] internals.
//
// WaitingForConnectivity is never invoked by [PosixBootstrap]: Go's
// net.Dialer has no equivalent of Apple Network.framework's
// "waiting for connectivity" state, so there is nothing to report. The
// method is kept so an alternative [Bootstrap] with such a signal (e.g. one
// built on a platform networking framework reachable via cgo) has somewhere
// to report it.
type HTTPConnectionRequester interface {
	// HTTP1Created is called when conn negotiated HTTP/1.1.
	HTTP1Created(conn *HTTPConn)

	// HTTP2Created is called when conn negotiated HTTP/2. maximumStreams is
	// [Config.MaximumUsesPerConnection], forwarded unevaluated.
	HTTP2Created(conn *HTTPConn, maximumStreams int)

	// FailedToCreate is called when connection establishment failed.
	FailedToCreate(err error)

	// WaitingForConnectivity is called when the underlying transport
	// reports it is waiting for network connectivity to become available.
	WaitingForConnectivity()
}

// NewConnectionFactory returns a new [*ConnectionFactory].
//
// The cfg argument contains the common configuration for nop operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewConnectionFactory(cfg *Config, logger SLogger) *ConnectionFactory {
	return &ConnectionFactory{
		Bootstrap:       NewPosixBootstrap(cfg, logger),
		Config:          cfg,
		Logger:          logger,
		SslContextCache: NewSslContextCache(),
	}
}

// ConnectionFactory is the top-level orchestrator: it composes [Bootstrap],
// [ProxyNegotiator], TLS/ALPN negotiation, and [SslContextCache] behind one
// deadline to produce a channel ([MakeChannel]) or a ready-to-use
// [*HTTPConn] ([MakeConnection]).
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [MakeChannel] or
// [MakeConnection].
type ConnectionFactory struct {
	// Bootstrap builds the transport-level connection. Set by
	// [NewConnectionFactory] to [*PosixBootstrap].
	Bootstrap Bootstrap

	// Config contains the common configuration for nop operations.
	Config *Config

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	Logger SLogger

	// SslContextCache caches built [*tls.Config] values. Set by
	// [NewConnectionFactory].
	SslContextCache *SslContextCache
}

// MakeChannel establishes the transport-level channel for key: it dials
// (through a proxy, when configured and key.Scheme is proxyable), then
// performs a TLS/ALPN handshake when key.Scheme.UsesTLS(). The returned
// [NegotiatedProtocolKind] is always [NegotiatedHTTP1_1] for a plaintext
// channel.
//
// The ctx deadline governs establishment only: on success the deadline
// watcher installed right after dialing is detached, so the returned channel
// outlives ctx and is owned solely by the caller. To correlate the log
// events of one establishment, attach a [NewSpanID] value to the logger
// before constructing the factory.
func (f *ConnectionFactory) MakeChannel(ctx context.Context, key PoolKey) (net.Conn, NegotiatedProtocolKind, error) {
	conn, err := f.dial(ctx, key)
	if err != nil {
		return nil, 0, err
	}

	watched, err := f.wrapObservedCancelable(ctx, conn)
	if err != nil {
		return nil, 0, err
	}
	conn = watched

	if f.Config.Proxy != nil && key.Scheme.Proxyable() {
		conn, err = f.negotiateProxy(ctx, conn, key.Target)
		if err != nil {
			return nil, 0, err
		}
	}

	if !key.Scheme.UsesTLS() {
		watched.Detach()
		return conn, NegotiatedHTTP1_1, nil
	}

	tconn, kind, err := f.negotiateTLS(ctx, conn, key)
	if err != nil {
		return nil, 0, err
	}
	watched.Detach()
	return tconn, kind, nil
}

// dial chooses the dial target (the proxy's own address when a proxy is
// configured for a proxyable scheme, the real target otherwise) and hands it
// to [Bootstrap.Connect].
func (f *ConnectionFactory) dial(ctx context.Context, key PoolKey) (net.Conn, error) {
	dialTarget := key.Target
	if f.Config.Proxy != nil && key.Scheme.Proxyable() {
		dialTarget = f.Config.Proxy.Target()
	}
	opts := BootstrapOptions{EnableMultipath: f.Config.EnableMultipath}
	return f.Bootstrap.Connect(ctx, dialTarget, opts)
}

// wrapObservedCancelable wraps conn with [*ObserveConnFunc] (structured I/O
// logging) and [*CancelWatchFunc] (closes conn when ctx is done), the same
// two stages every example pipeline installs right after dialing. It returns
// the concrete watched wrapper so [MakeChannel] can detach the watcher once
// establishment succeeds and ownership transfers to the caller.
func (f *ConnectionFactory) wrapObservedCancelable(ctx context.Context, conn net.Conn) (*cancelWatchedConn, error) {
	pipe := Compose2[net.Conn, net.Conn, net.Conn](NewObserveConnFunc(f.Config, f.Logger), NewCancelWatchFunc())
	wrapped, err := pipe.Call(ctx, conn)
	if err != nil {
		return nil, err
	}
	return wrapped.(*cancelWatchedConn), nil
}

func (f *ConnectionFactory) negotiateProxy(ctx context.Context, conn net.Conn, realTarget Target) (net.Conn, error) {
	negotiator, err := NewProxyNegotiator(f.Config, f.Config.Proxy, f.Logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return negotiator.Negotiate(ctx, conn, realTarget)
}

// negotiateTLS resolves the SNI to present (explicit override, else the
// target's domain name, else none for an IP literal), fetches a shared
// [*tls.Config] from [SslContextCache], and performs the handshake.
func (f *ConnectionFactory) negotiateTLS(ctx context.Context, conn net.Conn, key PoolKey) (net.Conn, NegotiatedProtocolKind, error) {
	tlsConfig, err := f.SslContextCache.Get(f.sslContextParams(key))
	if err != nil {
		conn.Close()
		return nil, 0, err
	}

	handshakeOp := NewTLSHandshakeFunc(f.Config, tlsConfig, f.Logger)
	tconn, err := handshakeOp.Call(ctx, conn)
	if err != nil {
		return nil, 0, err
	}

	kind, err := matchALPNToHTTPVersion(tconn.ConnectionState().NegotiatedProtocol)
	if err != nil {
		tconn.Close()
		return nil, 0, err
	}
	return tconn, kind, nil
}

// sslContextParams builds the [SslContextParams] for key: SNI and ALPN are
// always owned by this package (per-connection [PoolKey] and
// [Config.TLSPolicy] respectively), while verification policy, trust roots,
// client identity, and version bounds come from [Config.TLSConfig].
func (f *ConnectionFactory) sslContextParams(key PoolKey) SslContextParams {
	params := SslContextParams{
		ServerName: resolveSNI(key),
		NextProtos: alpnTokensForPolicy(f.Config.TLSPolicy),
	}
	if tc := f.Config.TLSConfig; tc != nil {
		params.InsecureSkipVerify = tc.InsecureSkipVerify
		params.RootCAs = tc.RootCAs
		params.Certificates = tc.Certificates
		params.MinVersion = tc.MinVersion
		params.MaxVersion = tc.MaxVersion
	}
	return params
}

// resolveSNI resolves the server name to present in a handshake: an explicit
// override wins, then the target's domain name; an IP-literal target with no
// override presents no SNI at all.
func resolveSNI(key PoolKey) string {
	if key.SNIOverride != "" {
		return key.SNIOverride
	}
	if domain, ok := key.Target.Domain(); ok {
		return domain
	}
	return ""
}

// MakeConnection builds a channel via [MakeChannel] and wraps it into an
// [*HTTPConn], reporting the outcome to requester. FailedToCreate,
// HTTP1Created, and HTTP2Created are mutually exclusive and exactly one
// fires per call.
func (f *ConnectionFactory) MakeConnection(
	ctx context.Context, key PoolKey, requester HTTPConnectionRequester) (*HTTPConn, error) {
	conn, kind, err := f.MakeChannel(ctx, key)
	if err != nil {
		requester.FailedToCreate(err)
		return nil, err
	}

	debugInit := f.Config.HTTP1DebugInitializer
	if kind == NegotiatedHTTP2 {
		debugInit = f.Config.HTTP2DebugInitializer
	}
	if debugInit != nil {
		if err := debugInit(conn); err != nil {
			conn.Close()
			requester.FailedToCreate(err)
			return nil, err
		}
	}

	httpConnOp := NewHTTPConnFunc(f.Config, kind, f.Logger)
	hc, err := httpConnOp.Call(ctx, conn)
	if err != nil {
		requester.FailedToCreate(err)
		return nil, err
	}

	if kind == NegotiatedHTTP2 {
		requester.HTTP2Created(hc, f.Config.MaximumUsesPerConnection)
	} else {
		requester.HTTP1Created(hc)
	}
	return hc, nil
}
