//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/kisom/goutils/blob/master/lib/dialer.go
// (BaselineTLSConfig/StrictBaselineTLSConfig)
//

package nop

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SslContextCache builds and caches [*tls.Config] values keyed by their
// structural shape: two requests that would produce byte-identical
// [*tls.Config] values share the same cached instance instead of each
// constructing (and, for verification, parsing root pools from) its own.
//
// Concurrent requests for the same key are coalesced through
// [singleflight.Group] so that, e.g., a burst of connections to the same
// pool key dialing at once only builds the config once.
//
// The zero value is not ready to use; construct with [NewSslContextCache].
type SslContextCache struct {
	group singleflight.Group

	mu    sync.Mutex
	cache map[string]*tls.Config
}

// NewSslContextCache returns a new, empty [*SslContextCache].
func NewSslContextCache() *SslContextCache {
	return &SslContextCache{
		cache: make(map[string]*tls.Config),
	}
}

// SslContextParams describes the inputs that determine a [*tls.Config]'s
// shape. Two [SslContextParams] values that compare equal via
// [SslContextParams.cacheKey] produce (and share) the same cached
// [*tls.Config].
type SslContextParams struct {
	// ServerName is the SNI/verification hostname. Empty for IP-literal
	// targets with no explicit SNI override.
	ServerName string

	// NextProtos is the ALPN token list to advertise, in preference order.
	NextProtos []string

	// InsecureSkipVerify disables certificate verification. Used only when
	// a caller explicitly opts out of verification; never set by default.
	InsecureSkipVerify bool

	// RootCAs, when non-nil, overrides the system root pool.
	RootCAs *x509.CertPool

	// Certificates carries client certificates for mutual TLS. Nil means
	// no client certificate is presented.
	Certificates []tls.Certificate

	// MinVersion is the minimum TLS version. Zero means TLS 1.2.
	MinVersion uint16

	// MaxVersion is the maximum TLS version. Zero means the highest the
	// TLS engine supports.
	MaxVersion uint16
}

// cacheKey returns a string uniquely identifying params' shape for caching
// purposes. It does not need to be a true cryptographic hash: a simple
// structural fingerprint over the fields that affect handshake behavior is
// enough, since collisions between distinct configs would mean functionally
// identical handshake shapes anyway.
func (p SslContextParams) cacheKey() string {
	var b strings.Builder
	b.WriteString(p.ServerName)
	b.WriteByte('|')
	b.WriteString(strings.Join(p.NextProtos, ","))
	b.WriteByte('|')
	fmt.Fprintf(&b, "%v", p.InsecureSkipVerify)
	b.WriteByte('|')
	fmt.Fprintf(&b, "%p", p.RootCAs)
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d-%d", p.MinVersion, p.MaxVersion)
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d", len(p.Certificates))
	for _, cert := range p.Certificates {
		if len(cert.Certificate) > 0 {
			fmt.Fprintf(&b, ":%x", cert.Certificate[0])
		}
	}
	return b.String()
}

// Get returns the cached [*tls.Config] for params, building it with
// [tls.Config.Clone]-safe fresh state if this is the first request for this
// shape. The returned config is shared: callers must [tls.Config.Clone] it
// before mutating per-connection fields (as [*TLSHandshakeFunc] already does
// via [tls.Config.Time]).
func (c *SslContextCache) Get(params SslContextParams) (*tls.Config, error) {
	key := params.cacheKey()

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	result, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		if cached, ok := c.cache[key]; ok {
			c.mu.Unlock()
			return cached, nil
		}
		c.mu.Unlock()

		minVersion := params.MinVersion
		if minVersion == 0 {
			minVersion = tls.VersionTLS12
		}
		config := &tls.Config{
			ServerName:         params.ServerName,
			NextProtos:         params.NextProtos,
			InsecureSkipVerify: params.InsecureSkipVerify,
			RootCAs:            params.RootCAs,
			Certificates:       params.Certificates,
			MinVersion:         minVersion,
			MaxVersion:         params.MaxVersion,
		}

		c.mu.Lock()
		c.cache[key] = config
		c.mu.Unlock()
		return config, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*tls.Config), nil
}
