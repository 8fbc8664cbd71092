// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Scheme identifies the wire protocol and transport family of a [Target].
type Scheme string

const (
	SchemeHTTP      Scheme = "http"
	SchemeHTTPS     Scheme = "https"
	SchemeHTTPUnix  Scheme = "http+unix"
	SchemeHTTPSUnix Scheme = "https+unix"
	SchemeUnix      Scheme = "unix"
)

// UsesTLS reports whether establishing a [Target] with this [Scheme] requires
// a TLS handshake after the transport-level connection is established.
func (s Scheme) UsesTLS() bool {
	switch s {
	case SchemeHTTPS, SchemeHTTPSUnix:
		return true
	default:
		return false
	}
}

// Proxyable reports whether a proxy (HTTP CONNECT or SOCKS5) may be used to
// reach a [Target] with this [Scheme]. Unix-domain schemes are never proxyable.
func (s Scheme) Proxyable() bool {
	switch s {
	case SchemeHTTP, SchemeHTTPS:
		return true
	default:
		return false
	}
}

// targetKind tags the variant held by a [Target].
type targetKind int

const (
	targetKindIP targetKind = iota
	targetKindDomain
	targetKindUnix
)

// Target is a normalized connection destination: either an IP address and
// port, a domain name and port, or a filesystem Unix-domain socket path.
//
// The zero value is not a valid [Target]; construct one with [NewTarget],
// [NewIPTarget], [NewDomainTarget], or [NewUnixTarget].
//
// Invariant: a [Target] of domain kind never holds an IP literal; use
// [NewTarget] (or parse the host yourself) to route IP literals to the IP
// variant instead.
type Target struct {
	kind   targetKind
	ip     string // dotted-quad or bracketed-free IPv6 literal
	domain string // lowercased ASCII domain name
	path   string // Unix-domain socket path
	port   uint16
}

// NewIPTarget returns a [Target] addressing a literal IP address and port.
func NewIPTarget(ip string, port uint16) Target {
	return Target{kind: targetKindIP, ip: ip, port: port}
}

// NewDomainTarget returns a [Target] addressing a domain name and port.
//
// The domain is lowercased. Callers responsible for non-ASCII input must
// punycode it before calling this function; this package never does so.
func NewDomainTarget(domain string, port uint16) Target {
	return Target{kind: targetKindDomain, domain: strings.ToLower(domain), port: port}
}

// NewUnixTarget returns a [Target] addressing a filesystem Unix-domain socket.
func NewUnixTarget(path string) Target {
	return Target{kind: targetKindUnix, path: path}
}

// IsIP reports whether this [Target] is the IP-literal variant.
func (t Target) IsIP() bool { return t.kind == targetKindIP }

// IsDomain reports whether this [Target] is the domain-name variant.
func (t Target) IsDomain() bool { return t.kind == targetKindDomain }

// IsUnix reports whether this [Target] is the Unix-domain-socket variant.
func (t Target) IsUnix() bool { return t.kind == targetKindUnix }

// IP returns the IP literal and true if this is the IP variant.
func (t Target) IP() (string, bool) { return t.ip, t.kind == targetKindIP }

// Domain returns the domain name and true if this is the domain variant.
func (t Target) Domain() (string, bool) { return t.domain, t.kind == targetKindDomain }

// Path returns the Unix-domain socket path and true if this is the Unix variant.
func (t Target) Path() (string, bool) { return t.path, t.kind == targetKindUnix }

// Port returns the port number. Zero for the Unix variant.
func (t Target) Port() uint16 { return t.port }

// Authority returns the "host:port" (or IP-literal equivalent) string used
// for HTTP CONNECT requests and Host headers. It panics if
// called on the Unix variant, which has no network authority.
func (t Target) Authority() string {
	switch t.kind {
	case targetKindIP:
		return net.JoinHostPort(t.ip, strconv.Itoa(int(t.port)))
	case targetKindDomain:
		return net.JoinHostPort(t.domain, strconv.Itoa(int(t.port)))
	default:
		panic("nop: Target.Authority called on a Unix-domain-socket target")
	}
}

// String implements [fmt.Stringer].
func (t Target) String() string {
	switch t.kind {
	case targetKindIP:
		return t.Authority()
	case targetKindDomain:
		return t.Authority()
	case targetKindUnix:
		return "unix:" + t.path
	default:
		return "invalid-target"
	}
}

// PoolKey identifies a connection's reusability bucket. Two requests whose
// [PoolKey]s are equal (Go structural equality — this type is comparable and
// usable directly as a map key) may share the same underlying connection.
//
// Equality intentionally ignores path, query, headers, and body: those carry
// per-request semantics that do not affect which transport-level connection
// is suitable.
type PoolKey struct {
	Scheme Scheme
	Target Target
	// SNIOverride, when non-empty, is the SNI presented in the TLS ClientHello
	// in place of the target's domain name (or IP literal, which would
	// otherwise omit SNI entirely). Preserved separately from Target so a
	// caller can dial 10.0.0.1:443 while presenting SNI "api.example.com".
	SNIOverride string
	// TLSFingerprint distinguishes otherwise equal keys by TLS ClientHello
	// fingerprint. It takes part in PoolKey equality only: [NewTarget] leaves
	// it empty, and [ConnectionFactory] does not read it.
	TLSFingerprint string
}

// NewTarget parses rawURL plus an optional SNI override into a [Target],
// [Scheme], and [PoolKey]. Bracketed IPv6 literals and dotted-quad IPv4
// hosts become the IP variant; every other host becomes the domain variant.
// Default ports (80 for http, 443 for https) are applied when the URL omits
// one. Unix schemes carry the URL path as the
// socket path and ignore host/port entirely.
func NewTarget(rawURL string, sniOverride string) (Target, Scheme, PoolKey, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, "", PoolKey{}, fmt.Errorf("nop: invalid URL: %w", err)
	}

	scheme := Scheme(strings.ToLower(u.Scheme))
	switch scheme {
	case SchemeHTTP, SchemeHTTPS:
		target, err := newNetworkTarget(u, scheme)
		if err != nil {
			return Target{}, "", PoolKey{}, err
		}
		return finishTarget(target, scheme, sniOverride)

	case SchemeHTTPUnix, SchemeHTTPSUnix, SchemeUnix:
		target := NewUnixTarget(u.Path)
		return finishTarget(target, scheme, sniOverride)

	default:
		return Target{}, "", PoolKey{}, fmt.Errorf("nop: unsupported scheme %q", u.Scheme)
	}
}

func finishTarget(target Target, scheme Scheme, sniOverride string) (Target, Scheme, PoolKey, error) {
	key := PoolKey{Scheme: scheme, Target: target, SNIOverride: sniOverride}
	return target, scheme, key, nil
}

func newNetworkTarget(u *url.URL, scheme Scheme) (Target, error) {
	host := u.Hostname()
	if host == "" {
		return Target{}, fmt.Errorf("nop: URL %q has no host", u.String())
	}

	port := defaultPort(scheme)
	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Target{}, fmt.Errorf("nop: invalid port %q: %w", p, err)
		}
		port = uint16(n)
	}

	if net.ParseIP(host) != nil {
		return NewIPTarget(host, port), nil
	}
	return NewDomainTarget(host, port), nil
}

func defaultPort(scheme Scheme) uint16 {
	if scheme.UsesTLS() {
		return 443
	}
	return 80
}
