//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rafalfr/dnsproxy/blob/master/proxy/proxy.go
// (ExchangeParallel: race N upstreams, first usable answer wins)
//

package nop

import (
	"context"
	"io"
	"sync"
)

// FirstSuccess races N [Func] instances that take no input and completes with
// the first result satisfying predicate. If every call fails, or every
// result is rejected by predicate, FirstSuccess fails with the last error
// observed (a successful-but-rejected result counts as a failure for this
// purpose, using [ErrRejectedByPredicate]).
//
// Discarded successful results — rejected by predicate, or arriving after the
// winner — are closed when they implement [io.Closer], so racing dials does
// not leak the losing connections.
//
// This is the minimal building block for Happy-Eyeballs-style racing when the
// underlying transport does not provide it natively (see [PosixBootstrap],
// which uses this to race multiple resolver-returned addresses for a single
// domain target).
//
// The context passed to the losing calls is cancelled as soon as a winner is
// found, so well-behaved [Func] implementations (those that check ctx) stop
// promptly.
func FirstSuccess[T any](ctx context.Context, funcs []Func[Unit, T], predicate func(T) bool) (T, error) {
	var zero T
	if len(funcs) == 0 {
		return zero, ErrNoCandidates
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan raceOutcome[T], len(funcs))

	var wg sync.WaitGroup
	for _, fn := range funcs {
		wg.Add(1)
		go func(fn Func[Unit, T]) {
			defer wg.Done()
			value, err := fn.Call(raceCtx, Unit{})
			if err == nil && !predicate(value) {
				discard(value)
				err = ErrRejectedByPredicate
			}
			results <- raceOutcome[T]{value: value, err: err}
		}(fn)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for res := range results {
		if res.err == nil {
			cancel()
			go discardLosers(results)
			return res.value, nil
		}
		lastErr = res.err
	}
	return zero, lastErr
}

// raceOutcome carries one racer's result to the [FirstSuccess] selection loop.
type raceOutcome[T any] struct {
	value T
	err   error
}

// discardLosers drains results after a winner was picked, closing any
// successful-but-late values.
func discardLosers[T any](results chan raceOutcome[T]) {
	for res := range results {
		if res.err == nil {
			discard(res.value)
		}
	}
}

// discard closes a discarded successful result when it holds a resource.
func discard(value any) {
	if closer, ok := value.(io.Closer); ok {
		closer.Close()
	}
}
