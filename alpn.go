// SPDX-License-Identifier: GPL-3.0-or-later

package nop

// NegotiatedProtocolKind identifies which HTTP version a [TlsNegotiator] (or
// the plaintext fast path) settled on.
type NegotiatedProtocolKind int

const (
	// NegotiatedHTTP1_1 means the connection should run HTTP/1.1.
	NegotiatedHTTP1_1 NegotiatedProtocolKind = iota

	// NegotiatedHTTP2 means the connection should run HTTP/2.
	NegotiatedHTTP2
)

// String implements [fmt.Stringer].
func (k NegotiatedProtocolKind) String() string {
	if k == NegotiatedHTTP2 {
		return "h2"
	}
	return "http/1.1"
}

// alpnTokensForPolicy returns the ALPN protocol list to advertise for the
// given [TLSPolicy], in preference order. "h2" is never included for
// [TLSPolicyHTTP1Only].
func alpnTokensForPolicy(policy TLSPolicy) []string {
	if policy == TLSPolicyHTTP1Only {
		return []string{"http/1.1"}
	}
	return []string{"h2", "http/1.1"}
}

// matchALPNToHTTPVersion maps a negotiated ALPN token to a
// [NegotiatedProtocolKind]. An empty string (no ALPN negotiated) and
// "http/1.1" both mean HTTP/1.1; "h2" means HTTP/2; anything else is
// [ErrKindServerOfferedUnsupportedApplicationProtocol].
func matchALPNToHTTPVersion(negotiated string) (NegotiatedProtocolKind, error) {
	switch negotiated {
	case "", "http/1.1":
		return NegotiatedHTTP1_1, nil
	case "h2":
		return NegotiatedHTTP2, nil
	default:
		return 0, NewConnectError(
			ErrKindServerOfferedUnsupportedApplicationProtocol, negotiated, nil)
	}
}
