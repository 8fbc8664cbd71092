// SPDX-License-Identifier: GPL-3.0-or-later

// Package nop provides the connection-establishment core for an asynchronous
// HTTP client: everything between "I have a URL" and "I have a channel ready
// to speak HTTP/1.1 or HTTP/2", plus the request/response state machine that
// rides on top of that channel.
//
// # Core Abstraction
//
// Most primitives still implement a single interface:
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// Each Func represents an atomic network operation with exactly one success
// mode and one failure mode. This design enables type-safe composition via
// [Compose2], [Compose3], etc., where the compiler verifies that outputs
// match inputs across pipeline stages.
//
// # Connection Establishment
//
//   - [Target]: a dial destination, one of an IP literal, a domain name
//     requiring resolution, or a Unix-domain socket path.
//   - [PoolKey]: the equality key a connection pool uses to decide whether an
//     idle channel may be reused for a new request.
//   - [Bootstrap] / [PosixBootstrap]: builds the transport-level connection
//     for a [Target], racing resolved addresses with [FirstSuccess] when a
//     domain name resolves to more than one.
//   - [Resolver]: maps a domain name to addresses; [SystemResolver] uses the
//     platform resolver. A caller may plug in any other transport via
//     [Config.DNSResolver] — this package does not ship DNS-over-X backends
//     of its own, since nothing in this core's scope needs one.
//   - [ProxyNegotiator] / [HTTPConnectNegotiator] / [SOCKS5Negotiator]:
//     tunnels a channel through an HTTP CONNECT or SOCKSv5 proxy before the
//     real target's handshake runs.
//   - [SslContextCache]: builds and caches [*tls.Config] values keyed by SNI,
//     ALPN policy, and the [TLSConfig] defaults (verification policy, trust
//     roots, client identity, version bounds), collapsing concurrent callers
//     that want the same configuration into a single build via singleflight.
//   - [ConnectionFactory]: the top-level orchestrator. [*ConnectionFactory.MakeChannel]
//     composes dial, proxy, and TLS/ALPN negotiation behind one deadline;
//     [*ConnectionFactory.MakeConnection] additionally wraps the result into
//     an [*HTTPConn] and reports the outcome to an [HTTPConnectionRequester].
//
// # HTTP
//
//   - [HTTPConn]: wraps a connection with an HTTP transport, performs round
//     trips with structured logging and transparent body observation
//     (created via [NewHTTPConnFunc]).
//   - [Transaction]: the request/response state machine that drives a single
//     HTTP exchange over a channel an [Executor] schedules independently of
//     request arrival order, including request-body back-pressure and a
//     bounded, pull-based response-body stream.
//
// # Composition utilities
//
//   - [Compose2] through [Compose8]: chain Funcs into pipelines
//   - [FuncAdapter]: wrap a function as a Func for ad-hoc custom behavior
//   - [Apply]: bind a fixed input to a Func
//   - [ConstFunc]: lift a pure value into a Func
//   - [FirstSuccess]: race a set of Funcs sharing an input, keeping the first
//     one whose output satisfies a predicate and cancelling the rest
//
// # Connection Lifecycle
//
// This package uses two ownership patterns for connection management:
//
// Dial and negotiation operations ([ConnectFunc], [TLSHandshakeFunc],
// [ProxyNegotiator] implementations) create or wrap connections and transfer
// ownership to the next stage on success. On error, they close the
// connection.
//
// Wrapper types (e.g. [HTTPConn]) OWN their underlying connection. The caller
// must call Close() when done, which closes the underlying connection. These
// can be composed into pipelines via their corresponding Func types.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with [log/slog]).
//
// By default, logging is disabled. Set the Logger field to a custom [*slog.Logger]
// to enable logging. Error classification is configurable via [ErrClassifier]; by
// default, [DefaultErrClassifier] classifies errors with the errclass package.
//
// Primitives emit two kinds of structured log events:
//
//   - Span events (*Start/*Done pairs): Record operation lifecycle including
//     timing and success/failure. Used for latency analysis and error tracking.
//
//   - Wire observations (read/write events emitted by [ObserveConnFunc]):
//     capture byte-level I/O for protocol debugging.
//
// The [SLogger] interface accepts any slog-compatible handler, enabling flexible
// post-processing. Handlers can filter, transform, or route events as needed.
//
// All events share a common set of fields: localAddr, remoteAddr, protocol,
// and t (timestamp); connectStart carries no localAddr. Completion events (*Done) additionally include t0 (start
// time), err, and errClass. I/O-level events (read, write, deadline changes)
// are emitted at [slog.LevelDebug]; all other events use [slog.LevelInfo].
// The structured log format is compatible with the RBMK data format specification
// (see https://github.com/rbmk-project/rbmk) and may evolve in minor ways as
// these packages mature.
//
// Use [NewSpanID] to generate a unique, time-ordered identifier (UUIDv7) for each
// operation, then attach it to the logger with [*slog.Logger.With]. All log entries
// from that operation will share the same spanID, enabling correlation across
// pipeline stages and simplifying log analysis.
//
// # Timeout and Context Philosophy
//
// This package is context-transparent: operations never modify the context they receive.
// The caller controls timeouts externally via [context.WithTimeout], [context.WithDeadline],
// or [signal.NotifyContext]. When the context is done (timeout, cancel, or signal),
// operations fail and the pipeline is interrupted.
//
// Connection lifecycle requires [CancelWatchFunc] to bind the context lifecycle to
// the connection: when the context is done, the connection is closed immediately,
// causing any in-progress I/O to fail. This enables responsive ^C handling via
// [signal.NotifyContext] and ensures that blocking I/O respects the context deadline.
// [ConnectionFactory] installs it automatically right after dialing and detaches
// it once establishment succeeds, so the channel it hands back is no longer tied
// to the establishment deadline; hand-rolled pipelines that bypass
// [ConnectionFactory] must include it themselves.
//
// A [*Transaction] carries its own deadline independently of the channel: see
// [*Transaction.DeadlineExceeded], which an [Executor] is expected to call
// when the request's own context is done, regardless of whether the
// underlying channel's context has expired.
//
// # Design Boundaries
//
// [Bootstrap] and [ConnectionFactory] do take on fan-out (racing resolved
// addresses via [FirstSuccess]) and multi-step orchestration (dial, proxy,
// TLS, ALPN), so that callers get a single entry point producing a ready
// channel. What remains out of scope, left to a higher-level connection pool
// built on top of this package:
//
//   - Retry and backoff logic
//   - Connection-pool eviction and reuse policy beyond [PoolKey] equality
//   - Request queuing and prioritization beyond what [Executor] exposes
package nop
