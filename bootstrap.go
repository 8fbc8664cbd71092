//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/cloudflare/cloudflared/blob/master/ingress/origin_service.go
//

package nop

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"time"
)

// BootstrapOptions configures a single [Bootstrap.Connect] call.
type BootstrapOptions struct {
	// EnableMultipath requests MPTCP for TCP targets, via
	// [*net.Dialer.SetMultipathTCP]. Ignored for Unix-domain targets.
	EnableMultipath bool
}

// Bootstrap builds outbound connections for a [Target], handling the three
// dialing shapes (IP literal, domain name requiring resolution, Unix-domain
// socket) behind one contract.
//
// Go has no Apple Network.framework binding, so there is exactly one
// implementation ([PosixBootstrap]) rather than a build-time choice between
// two. [PosixBootstrap] resolves every domain target through its [Resolver]
// ([SystemResolver] unless another is configured) and, when more than one
// address comes back, races them with [FirstSuccess]; it always dials IP
// addresses, never a hostname.
type Bootstrap interface {
	Connect(ctx context.Context, target Target, opts BootstrapOptions) (net.Conn, error)
}

// PosixBootstrap is the standard [Bootstrap] implementation, built on top of
// [*ConnectFunc]/[*ConnectPathFunc] for the actual dial and [Resolver] for
// domain lookups.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Connect].
type PosixBootstrap struct {
	// Connect4 dials the "tcp" network. Set by [NewPosixBootstrap].
	Connect4 *ConnectFunc

	// ConnectUnix dials a filesystem Unix-domain socket path. Set by
	// [NewPosixBootstrap].
	ConnectUnix *ConnectPathFunc

	// Resolver resolves domain targets. Set by [NewPosixBootstrap] from
	// [Config.DNSResolver], falling back to [SystemResolver].
	Resolver Resolver

	// TimeNow is the function to get the current time (configurable for
	// testing). Set by [NewPosixBootstrap] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Bootstrap = &PosixBootstrap{}

// NewPosixBootstrap returns a new [*PosixBootstrap].
//
// The cfg argument contains the common configuration for nop operations.
//
// The logger argument is the [SLogger] to use for structured logging of the
// underlying TCP/Unix dials.
func NewPosixBootstrap(cfg *Config, logger SLogger) *PosixBootstrap {
	resolver := cfg.DNSResolver
	if resolver == nil {
		resolver = SystemResolver{}
	}
	return &PosixBootstrap{
		Connect4:    NewConnectFunc(cfg, "tcp", logger),
		ConnectUnix: NewConnectPathFunc(cfg, logger),
		Resolver:    resolver,
		TimeNow:     cfg.TimeNow,
	}
}

// Connect implements [Bootstrap].
//
// A deadline already in the past on entry fails immediately with
// [ErrKindConnectTimeout] without attempting any I/O.
func (b *PosixBootstrap) Connect(ctx context.Context, target Target, opts BootstrapOptions) (net.Conn, error) {
	if deadline, ok := ctx.Deadline(); ok && !deadline.After(b.TimeNow()) {
		return nil, NewConnectError(ErrKindConnectTimeout, "deadline already in the past", ctx.Err())
	}

	connect := b.tcpConnectFunc(opts)

	switch {
	case target.IsUnix():
		path, _ := target.Path()
		conn, err := b.ConnectUnix.Call(ctx, path)
		return conn, translateDialError(err)

	case target.IsIP():
		ip, _ := target.IP()
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return nil, NewConnectError(ErrKindPosix, "invalid IP literal", err)
		}
		conn, err := connect.Call(ctx, netip.AddrPortFrom(addr, target.Port()))
		return conn, translateDialError(err)

	default:
		domain, _ := target.Domain()
		return b.connectDomain(ctx, connect, domain, target.Port())
	}
}

// tcpConnectFunc returns the [*ConnectFunc] to use for this call. When MPTCP
// is requested and the configured dialer is a [*net.Dialer], it dials through
// a per-call copy with MPTCP enabled, leaving the shared dialer untouched so
// concurrent Connect calls with different options never race on it.
func (b *PosixBootstrap) tcpConnectFunc(opts BootstrapOptions) *ConnectFunc {
	if !opts.EnableMultipath {
		return b.Connect4
	}
	base, ok := b.Connect4.Dialer.(*net.Dialer)
	if !ok {
		return b.Connect4
	}
	dialer := *base
	dialer.SetMultipathTCP(true)
	clone := *b.Connect4
	clone.Dialer = &dialer
	return &clone
}

// connectDomain resolves domain via b.Resolver and races the resulting
// addresses with [FirstSuccess], dialing each candidate concurrently and
// keeping the first to succeed.
func (b *PosixBootstrap) connectDomain(
	ctx context.Context, connect *ConnectFunc, domain string, port uint16) (net.Conn, error) {
	addrs, err := b.Resolver.Resolve(ctx, domain, port)
	if err != nil {
		return nil, translateDialError(err)
	}
	if len(addrs) == 1 {
		conn, err := connect.Call(ctx, addrs[0])
		return conn, translateDialError(err)
	}

	funcs := make([]Func[Unit, net.Conn], 0, len(addrs))
	for _, addr := range addrs {
		funcs = append(funcs, Apply[netip.AddrPort, net.Conn](connect, addr))
	}
	conn, err := FirstSuccess(ctx, funcs, func(net.Conn) bool { return true })
	return conn, translateDialError(err)
}

// translateDialError maps a raw dial error (possibly already a
// [*ConnectError] produced by a [Resolver]) into the [ErrKindConnectTimeout]
// or [ErrKindPosix] taxonomy.
func translateDialError(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return err
	}
	if isTimeoutLike(err) {
		return NewConnectError(ErrKindConnectTimeout, "", err)
	}
	return NewConnectError(ErrKindPosix, "", err)
}

// isTimeoutLike reports whether err indicates a deadline/timeout condition,
// covering both [context.DeadlineExceeded] and the broader [net.Error]
// Timeout() contract.
func isTimeoutLike(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
