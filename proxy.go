// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"context"
	"net"
)

// ProxyKind selects which proxy sub-protocol [ProxyConfig] configures.
type ProxyKind int

const (
	// ProxyKindHTTP uses the HTTP CONNECT method.
	ProxyKindHTTP ProxyKind = iota

	// ProxyKindSOCKS5 uses SOCKSv5 (RFC 1928/1929).
	ProxyKindSOCKS5
)

// ProxyAuthorization carries proxy credentials. Exactly one of Basic or
// Bearer is meaningful for a given value; use [NewBasicAuthorization] or
// [NewBearerAuthorization] to construct one.
type ProxyAuthorization struct {
	kind  proxyAuthKind
	user  string
	pass  string
	token string
}

type proxyAuthKind int

const (
	proxyAuthNone proxyAuthKind = iota
	proxyAuthBasic
	proxyAuthBearer
)

// NewBasicAuthorization returns a username/password [ProxyAuthorization].
// Used by SOCKS5 RFC 1929 sub-negotiation and by the HTTP CONNECT
// Proxy-Authorization header.
func NewBasicAuthorization(user, pass string) ProxyAuthorization {
	return ProxyAuthorization{kind: proxyAuthBasic, user: user, pass: pass}
}

// NewBearerAuthorization returns a bearer-token [ProxyAuthorization]. HTTP
// CONNECT only: SOCKS5 has no bearer-token sub-negotiation.
func NewBearerAuthorization(token string) ProxyAuthorization {
	return ProxyAuthorization{kind: proxyAuthBearer, token: token}
}

// IsBasic reports whether this is a username/password authorization and
// returns the credentials.
func (a ProxyAuthorization) IsBasic() (user, pass string, ok bool) {
	return a.user, a.pass, a.kind == proxyAuthBasic
}

// IsBearer reports whether this is a bearer-token authorization and returns
// the token.
func (a ProxyAuthorization) IsBearer() (token string, ok bool) {
	return a.token, a.kind == proxyAuthBearer
}

// IsSet reports whether any authorization was configured.
func (a ProxyAuthorization) IsSet() bool {
	return a.kind != proxyAuthNone
}

// ProxyConfig configures an upstream HTTP CONNECT or SOCKS5 proxy.
type ProxyConfig struct {
	// Kind selects the proxy sub-protocol.
	Kind ProxyKind

	// Host is the proxy server's hostname or IP literal.
	Host string

	// Port is the proxy server's port.
	Port uint16

	// Authorization carries optional proxy credentials.
	Authorization ProxyAuthorization
}

// Target returns the proxy's own connection [Target] (always the IP/domain
// variant, never Unix — a Unix-domain socket cannot proxy network traffic).
func (p *ProxyConfig) Target() Target {
	if net.ParseIP(p.Host) != nil {
		return NewIPTarget(p.Host, p.Port)
	}
	return NewDomainTarget(p.Host, p.Port)
}

// ProxyNegotiator performs a proxy handshake over an already-connected plain
// channel (the TCP connection to the proxy server itself, produced by
// [Bootstrap.Connect] against [ProxyConfig.Target]), establishing a tunnel to
// realTarget. On success the returned [net.Conn] carries opaque tunnel bytes
// to/from realTarget; on failure the input channel has already been closed.
//
// Implementations install a deadline watcher at construction/entry using
// [context.AfterFunc] against ctx's deadline (mirroring [*CancelWatchFunc]),
// so that an unresponsive proxy fails with the implementation's
// stage-specific timeout [ErrKind] rather than hanging until some outer
// timeout notices.
type ProxyNegotiator interface {
	Negotiate(ctx context.Context, conn net.Conn, realTarget Target) (net.Conn, error)
}

// NewProxyNegotiator returns the [ProxyNegotiator] appropriate for cfg.Kind.
func NewProxyNegotiator(cfg *Config, proxy *ProxyConfig, logger SLogger) (ProxyNegotiator, error) {
	switch proxy.Kind {
	case ProxyKindHTTP:
		return NewHTTPConnectNegotiator(cfg, proxy, logger), nil
	case ProxyKindSOCKS5:
		return NewSOCKS5Negotiator(cfg, proxy, logger), nil
	default:
		return nil, NewConnectError(ErrKindInvalidProxyResponse, "unknown proxy kind", nil)
	}
}
