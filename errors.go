// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"errors"
	"fmt"
)

// ErrKind enumerates the connection-establishment and transaction error
// taxonomy. Callers switch on [ConnectError.Kind] rather than matching
// error strings.
type ErrKind int

const (
	// ErrKindUnknown is the zero value and never returned by this package.
	ErrKindUnknown ErrKind = iota

	// ErrKindConnectTimeout: transport connect did not complete by the
	// pipeline deadline, including the case where the deadline was already
	// in the past on entry.
	ErrKindConnectTimeout

	// ErrKindSOCKSHandshakeTimeout: the SOCKS5 negotiator's deadline fired
	// before the handshake completed.
	ErrKindSOCKSHandshakeTimeout

	// ErrKindHTTPProxyHandshakeTimeout: the HTTP CONNECT negotiator's
	// deadline fired before the handshake completed.
	ErrKindHTTPProxyHandshakeTimeout

	// ErrKindTLSHandshakeTimeout: the TLS negotiator's deadline fired
	// before the handshake completed.
	ErrKindTLSHandshakeTimeout

	// ErrKindInvalidProxyResponse: HTTP CONNECT returned a non-2xx status
	// other than 407, or the SOCKS5 reply was malformed.
	ErrKindInvalidProxyResponse

	// ErrKindProxyAuthenticationRequired: HTTP CONNECT returned 407, or the
	// SOCKS5 server rejected the username/password sub-negotiation.
	ErrKindProxyAuthenticationRequired

	// ErrKindServerOfferedUnsupportedApplicationProtocol: ALPN negotiated
	// something other than "h2" or "http/1.1".
	ErrKindServerOfferedUnsupportedApplicationProtocol

	// ErrKindRemoteConnectionClosed: the channel went inactive before an
	// expected event.
	ErrKindRemoteConnectionClosed

	// ErrKindCancelled: the transaction was cancelled by its caller.
	ErrKindCancelled

	// ErrKindDeadlineExceeded: the transaction's deadline fired.
	ErrKindDeadlineExceeded

	// ErrKindTLS: a leaf TLS failure (certificate verification, protocol
	// mismatch) not otherwise classified above.
	ErrKindTLS

	// ErrKindPosix: a leaf POSIX/network failure not otherwise classified
	// above.
	ErrKindPosix
)

// String implements [fmt.Stringer].
func (k ErrKind) String() string {
	switch k {
	case ErrKindConnectTimeout:
		return "connectTimeout"
	case ErrKindSOCKSHandshakeTimeout:
		return "socksHandshakeTimeout"
	case ErrKindHTTPProxyHandshakeTimeout:
		return "httpProxyHandshakeTimeout"
	case ErrKindTLSHandshakeTimeout:
		return "tlsHandshakeTimeout"
	case ErrKindInvalidProxyResponse:
		return "invalidProxyResponse"
	case ErrKindProxyAuthenticationRequired:
		return "proxyAuthenticationRequired"
	case ErrKindServerOfferedUnsupportedApplicationProtocol:
		return "serverOfferedUnsupportedApplicationProtocol"
	case ErrKindRemoteConnectionClosed:
		return "remoteConnectionClosed"
	case ErrKindCancelled:
		return "cancelled"
	case ErrKindDeadlineExceeded:
		return "deadlineExceeded"
	case ErrKindTLS:
		return "tlsError"
	case ErrKindPosix:
		return "posixError"
	default:
		return "unknown"
	}
}

// ConnectError is the typed error returned by every stage of connection
// establishment and by [Transaction]. Detail carries a kind-specific
// human-readable description (e.g. the HTTP CONNECT status code, or the
// offered-but-unsupported ALPN token).
type ConnectError struct {
	Kind   ErrKind
	Detail string
	Cause  error
}

// Error implements error.
func (e *ConnectError) Error() string {
	if e.Detail == "" {
		if e.Cause != nil {
			return fmt.Sprintf("nop: %s: %v", e.Kind, e.Cause)
		}
		return "nop: " + e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("nop: %s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("nop: %s: %s", e.Kind, e.Detail)
}

// Unwrap implements the errors.Unwrap protocol.
func (e *ConnectError) Unwrap() error { return e.Cause }

// NewConnectError builds a [*ConnectError] with the given kind and cause.
func NewConnectError(kind ErrKind, detail string, cause error) *ConnectError {
	return &ConnectError{Kind: kind, Detail: detail, Cause: cause}
}

// IsKind reports whether err is a [*ConnectError] of the given kind.
func IsKind(err error, kind ErrKind) bool {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// Sentinel errors for conditions that are programmer errors or utility-level
// failures rather than part of the wire-facing [ErrKind] taxonomy.
var (
	// ErrNoCandidates is returned by [FirstSuccess] when called with no
	// candidate functions.
	ErrNoCandidates = errors.New("nop: no candidates")

	// ErrRejectedByPredicate is the internal failure recorded by
	// [FirstSuccess] for a successful call whose result the predicate
	// rejected.
	ErrRejectedByPredicate = errors.New("nop: result rejected by predicate")

	// ErrUnixSocketNotProxyable is returned by [SOCKS5Negotiator.Negotiate]
	// when the real target is a Unix-domain-socket [Target]. No check is
	// made when a negotiator or [ProxyConfig] is constructed.
	ErrUnixSocketNotProxyable = errors.New("nop: unix-domain-socket targets cannot be proxied")

	// ErrNoResolvedAddresses is returned by a [Resolver] implementation
	// that would otherwise return a zero-length, error-free result.
	ErrNoResolvedAddresses = errors.New("nop: resolver returned zero addresses")
)
