// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"time"
)

// TLSPolicy selects which ALPN tokens [ConnectionFactory] advertises during
// the TLS handshake for HTTPS targets.
type TLSPolicy int

const (
	// TLSPolicyAuto advertises ["h2", "http/1.1"], letting the server pick.
	TLSPolicyAuto TLSPolicy = iota

	// TLSPolicyHTTP1Only advertises ["http/1.1"] only; "h2" is never offered.
	TLSPolicyHTTP1Only
)

// TLSConfig carries the default TLS parameters [ConnectionFactory] applies to
// every TLS handshake: verification policy, trust roots, client identity, and
// minimum/maximum protocol version.
//
// ALPN is deliberately absent: the tokens advertised are always derived from
// [Config.TLSPolicy], never set by the caller. SNI is likewise derived per
// connection from the [PoolKey] (explicit override, else the target domain).
//
// The zero value means "verify against the system roots, no client
// certificate, TLS 1.2 floor".
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool

	// RootCAs, when non-nil, overrides the system root pool.
	RootCAs *x509.CertPool

	// Certificates carries client certificates for mutual TLS.
	Certificates []tls.Certificate

	// MinVersion is the minimum TLS version. Zero means TLS 1.2.
	MinVersion uint16

	// MaxVersion is the maximum TLS version. Zero means the highest the
	// TLS engine supports.
	MaxVersion uint16
}

// Config holds common configuration for nop operations.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by [*ConnectFunc] and [*PosixBootstrap].
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// Proxy configures an HTTP CONNECT or SOCKS5 proxy for "http"/"https"
	// targets. Nil means no proxy.
	//
	// Set by [NewConfig] to nil.
	Proxy *ProxyConfig

	// TLSPolicy selects the ALPN tokens advertised during the TLS
	// handshake.
	//
	// Set by [NewConfig] to [TLSPolicyAuto].
	TLSPolicy TLSPolicy

	// TLSConfig carries the default TLS parameters (verification policy,
	// trust roots, client identity, min/max version) applied to every TLS
	// handshake. Nil means the [TLSConfig] zero-value defaults.
	//
	// Set by [NewConfig] to nil.
	TLSConfig *TLSConfig

	// EnableMultipath requests MPTCP for TCP connections.
	//
	// Set by [NewConfig] to false.
	EnableMultipath bool

	// DNSResolver resolves domain [Target]s. Nil means [SystemResolver].
	//
	// Set by [NewConfig] to nil.
	DNSResolver Resolver

	// HTTP1DebugInitializer, if non-nil, runs on the channel after an
	// HTTP/1.1 connection is established; its failure fails connection
	// creation.
	//
	// Set by [NewConfig] to nil.
	HTTP1DebugInitializer func(net.Conn) error

	// HTTP2DebugInitializer, if non-nil, runs on the channel after an
	// HTTP/2 connection is established; its failure fails connection
	// creation.
	//
	// Set by [NewConfig] to nil.
	HTTP2DebugInitializer func(net.Conn) error

	// MaximumUsesPerConnection caps how many streams/requests an HTTP/2
	// connection serves before the HTTP layer should retire it. Zero means
	// unbounded; this package only carries the value, it does not enforce
	// it (that is HTTP-layer connection-pool policy, a Non-goal here).
	//
	// Set by [NewConfig] to 0.
	MaximumUsesPerConnection int

	// Decompression is an opaque policy token forwarded to the HTTP layer.
	// This package never interprets it.
	//
	// Set by [NewConfig] to "".
	Decompression string
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: DefaultErrClassifier,
		TimeNow:       time.Now,
		TLSPolicy:     TLSPolicyAuto,
	}
}
