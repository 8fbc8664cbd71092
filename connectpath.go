//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/cloudflare/cloudflared/blob/master/ingress/origin_service.go
//

package nop

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewConnectPathFunc returns a new [*ConnectPathFunc] for dialing a
// filesystem Unix-domain socket path.
//
// The cfg argument contains the common configuration for nop operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewConnectPathFunc(cfg *Config, logger SLogger) *ConnectPathFunc {
	return &ConnectPathFunc{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// ConnectPathFunc dials a Unix-domain socket at a filesystem path.
//
// This mirrors [*ConnectFunc] but takes a raw path string instead of a
// [netip.AddrPort], since a filesystem path has no address/port structure.
//
// Returns either a valid [net.Conn] or an error, never both.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ConnectPathFunc struct {
	// Dialer is the [Dialer] to use.
	//
	// Set by [NewConnectPathFunc] from [Config.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConnectPathFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewConnectPathFunc] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewConnectPathFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[string, net.Conn] = &ConnectPathFunc{}

// Call invokes the [*ConnectPathFunc] to connect to the given path.
func (op *ConnectPathFunc) Call(ctx context.Context, path string) (net.Conn, error) {
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logConnectStart(path, t0, deadline)
	conn, err := op.Dialer.DialContext(ctx, "unix", path)
	op.logConnectDone(path, t0, deadline, conn, err)
	return conn, err
}

func (op *ConnectPathFunc) logConnectStart(path string, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", "unix"),
		slog.String("remoteAddr", path),
		slog.Time("t", t0),
	)
}

func (op *ConnectPathFunc) logConnectDone(path string, t0 time.Time, deadline time.Time, conn net.Conn, err error) {
	op.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", "unix"),
		slog.String("remoteAddr", path),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
