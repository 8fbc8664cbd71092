//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/netx/blob/master/internal/internal.go
//

package nop

import (
	"context"
	"net"
	"net/netip"
)

// Resolver maps a domain name and port to an ordered list of socket
// addresses. Implementations MUST return at least one address on success.
//
// The platform default ([SystemResolver]) is used when no custom resolver is
// configured. A caller may plug in any other transport via
// [Config.DNSResolver] to control the resolution transport explicitly; this
// package only ships [SystemResolver] itself, since nothing in this core's
// scope needs a DNS-over-{UDP,TCP,TLS,HTTPS} backend of its own.
type Resolver interface {
	Resolve(ctx context.Context, host string, port uint16) ([]netip.AddrPort, error)
}

// SystemResolver resolves domain names using the platform default resolver
// ([*net.Resolver]).
//
// The zero value is ready to use.
type SystemResolver struct {
	// Resolver is the underlying [*net.Resolver]. Defaults to
	// [net.DefaultResolver] when nil.
	Resolver *net.Resolver
}

var _ Resolver = SystemResolver{}

// Resolve implements [Resolver].
func (r SystemResolver) Resolve(ctx context.Context, host string, port uint16) ([]netip.AddrPort, error) {
	resolver := r.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrNoResolvedAddresses
	}
	out := make([]netip.AddrPort, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, netip.AddrPortFrom(addr.Unmap(), port))
	}
	return out, nil
}

// ResolveFunc adapts a [Resolver] into a [Func], so it can be composed into a
// pipeline with [Compose2] and friends. The input is ignored; the host/port
// to resolve are bound at construction time via [NewResolveFunc].
type ResolveFunc struct {
	// Resolver is the [Resolver] to use.
	Resolver Resolver

	// Host is the domain name to resolve.
	Host string

	// Port is the port to attach to every returned address.
	Port uint16
}

// NewResolveFunc returns a [*ResolveFunc] bound to the given host and port.
func NewResolveFunc(resolver Resolver, host string, port uint16) *ResolveFunc {
	return &ResolveFunc{Resolver: resolver, Host: host, Port: port}
}

var _ Func[Unit, []netip.AddrPort] = &ResolveFunc{}

// Call implements [Func].
func (op *ResolveFunc) Call(ctx context.Context, _ Unit) ([]netip.AddrPort, error) {
	return op.Resolver.Resolve(ctx, op.Host, op.Port)
}
