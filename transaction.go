// SPDX-License-Identifier: GPL-3.0-or-later

package nop

import (
	"context"
	"io"
	"net/http"
	"sync"
)

// responseBodyStreamCapacity bounds how many unread chunks
// [ResponseBodyStream] buffers before it reports back-pressure to the
// producer. Chosen to absorb a few TCP reads worth of body without letting an
// unread response balloon memory.
const responseBodyStreamCapacity = 8

// TransactionState enumerates the lifecycle of a [Transaction]:
// Initialized -> Queued -> Executing{RequestStreaming} ->
// AwaitingResponseHead -> StreamingResponseBody -> Finished | Failed.
//
// AwaitingResponseHead is folded into Executing here: nothing observable
// distinguishes "request is being written" from "request is written, head
// not yet arrived" from the HTTP layer's point of view, so the smallest set
// of states a caller can actually observe transitions between wins.
type TransactionState int

const (
	TransactionInitialized TransactionState = iota
	TransactionQueued
	TransactionExecuting
	TransactionStreamingResponseBody
	TransactionFinished
	TransactionFailed
)

// String implements [fmt.Stringer].
func (s TransactionState) String() string {
	switch s {
	case TransactionInitialized:
		return "initialized"
	case TransactionQueued:
		return "queued"
	case TransactionExecuting:
		return "executing"
	case TransactionStreamingResponseBody:
		return "streamingResponseBody"
	case TransactionFinished:
		return "finished"
	case TransactionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RequestBodyKind tags the variant held by a [RequestBody].
type RequestBodyKind int

const (
	// RequestBodyNone means the request carries no body (e.g. GET).
	RequestBodyNone RequestBodyKind = iota

	// RequestBodyBuffered means the whole body is already in memory.
	RequestBodyBuffered

	// RequestBodyStreaming means the body is read incrementally from Stream.
	RequestBodyStreaming
)

// RequestBody describes the request body a [Transaction] drives over the
// connection.
//
// Construct with [NoRequestBody], [BufferedRequestBody], or
// [StreamingRequestBody].
type RequestBody struct {
	Kind     RequestBodyKind
	Buffered []byte
	Stream   io.Reader
}

// NoRequestBody returns a [RequestBody] carrying no data.
func NoRequestBody() RequestBody { return RequestBody{Kind: RequestBodyNone} }

// BufferedRequestBody returns a [RequestBody] wrapping an already-buffered payload.
func BufferedRequestBody(b []byte) RequestBody {
	return RequestBody{Kind: RequestBodyBuffered, Buffered: b}
}

// StreamingRequestBody returns a [RequestBody] that pumps data from r.
func StreamingRequestBody(r io.Reader) RequestBody {
	return RequestBody{Kind: RequestBodyStreaming, Stream: r}
}

// ExecutorAction is returned by [Transaction.WillExecuteRequest] to tell the
// HTTP layer whether to proceed with the request or abort it.
type ExecutorAction int

const (
	// ExecutorActionProceed means the executor should write the request as usual.
	ExecutorActionProceed ExecutorAction = iota

	// ExecutorActionCancel means the transaction was already cancelled; the
	// executor must abort without writing anything.
	ExecutorActionCancel
)

// Executor is consumed from the HTTP layer: it performs the actual writes,
// cancellation, and response-body demand signaling against the live
// connection on behalf of a [Transaction]. An HTTP/1.1 or HTTP/2 connection
// wrapper implements this interface; [Transaction] never touches the wire
// directly.
type Executor interface {
	// WriteRequestBodyPart writes one chunk of the request body.
	WriteRequestBodyPart(ctx context.Context, part []byte) error

	// FinishRequestBodyStream signals end-of-request-body.
	FinishRequestBodyStream(ctx context.Context) error

	// CancelRequest aborts the in-flight request. Called at most once per transaction.
	CancelRequest()

	// DemandResponseBodyStream asks the executor to resume reading response
	// body data after the consumer drained a paused [ResponseBodyStream].
	DemandResponseBodyStream()
}

// Scheduler is consumed from the HTTP layer: it owns whatever
// queueing/deadline-timer mechanism placed the transaction in flight.
type Scheduler interface {
	// CancelRequest cancels the scheduled request. Called at most once per transaction.
	CancelRequest()
}

// ResponseHead is the status line and headers delivered by
// [Transaction.ReceiveResponseHead].
type ResponseHead struct {
	StatusCode int
	Proto      string
	Header     http.Header
}

// Response is the value a [Transaction] hands to its creator once the
// response head has arrived: the head plus the body stream that will
// receive subsequent [Transaction.ReceiveResponseBodyParts] calls.
type Response struct {
	Head ResponseHead
	Body *ResponseBodyStream
}

// ResponseBodyStream is the bounded async source the response body rides on:
// the producer ([Transaction.ReceiveResponseBodyParts]) pushes chunks, the
// consumer ([ResponseBodyStream.Read]) pulls them. When the buffered chunk
// count reaches [responseBodyStreamCapacity], push reports back-pressure
// ("stopProducing"); once the consumer drains the buffer below capacity,
// [Executor.DemandResponseBodyStream] is called exactly once to resume the
// producer ("produceMore").
type ResponseBodyStream struct {
	mu       sync.Mutex
	executor Executor
	capacity int
	chunks   [][]byte
	closed   bool
	err      error
	wake     chan struct{}
	paused   bool
}

func newResponseBodyStream(executor Executor, capacity int) *ResponseBodyStream {
	return &ResponseBodyStream{
		executor: executor,
		capacity: capacity,
		wake:     make(chan struct{}),
	}
}

// push appends chunk to the buffer and reports whether the stream is now at
// or over capacity (the caller should stop producing until demand resumes).
func (s *ResponseBodyStream) push(chunk []byte) (stopProducing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.chunks = append(s.chunks, chunk)
	s.signal()
	if len(s.chunks) >= s.capacity {
		s.paused = true
	}
	return s.paused
}

// finish marks the stream as complete (with or without err). Idempotent:
// subsequent calls no-op, giving "finished exactly once" for free.
func (s *ResponseBodyStream) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	s.signal()
}

func (s *ResponseBodyStream) signal() {
	close(s.wake)
	s.wake = make(chan struct{})
}

// Read blocks until a chunk is available, the stream finishes, or ctx is
// done. A nil chunk with a nil error means the stream finished cleanly.
func (s *ResponseBodyStream) Read(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if len(s.chunks) > 0 {
			chunk := s.chunks[0]
			s.chunks = s.chunks[1:]
			resumed := s.paused && len(s.chunks) < s.capacity
			if resumed {
				s.paused = false
			}
			executor := s.executor
			s.mu.Unlock()
			if resumed && executor != nil {
				executor.DemandResponseBodyStream()
			}
			return chunk, nil
		}
		if s.closed {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		wake := s.wake
		s.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// pendingWrite is the suspended body-write continuation: a request-body
// chunk waiting for [Transaction.ResumeRequestBodyStream] (or
// [Transaction.Fail]/[Transaction.DeadlineExceeded]) to settle it.
type pendingWrite struct {
	part   []byte
	result chan error
}

// Transaction drives a single HTTP request/response exchange over an
// established connection. It is exclusively owned by the task that created
// it, but its internal state is guarded by a mutex so the owning goroutine,
// the executing connection's goroutine, and a deadline timer's goroutine may
// all call into it concurrently.
//
// Construct with [NewTransaction].
type Transaction struct {
	// Request is the outgoing request. Transaction never mutates it.
	Request *http.Request

	// Body is the request body variant driving [Transaction.ResumeRequestBodyStream].
	Body RequestBody

	mu            sync.Mutex
	state         TransactionState
	executor      Executor
	scheduler     Scheduler
	cancelled     bool
	executorAbort bool
	startStreamed bool
	paused        bool
	pendingWrite  *pendingWrite
	bodyStream    *ResponseBodyStream

	respOnce sync.Once
	respCh   chan struct{}
	respVal  *Response
	respErr  error
}

// HTTPSchedulableRequest is the subset of [*Transaction] a [Scheduler]
// needs to place a transaction in a queue and later cancel or time it out.
type HTTPSchedulableRequest interface {
	MarkQueued()
	DeadlineExceeded()
	Cancel()
}

// HTTPExecutableRequest is the subset of [*Transaction] an HTTP/1.1 or
// HTTP/2 connection wrapper needs to drive a transaction end-to-end once it
// starts executing.
type HTTPExecutableRequest interface {
	WillExecuteRequest(executor Executor) ExecutorAction
	ResumeRequestBodyStream(ctx context.Context, allocator func() []byte)
	PauseRequestBodyStream()
	ReceiveResponseHead(head ResponseHead) (*Response, error)
	ReceiveResponseBodyParts(buf []byte) (stopProducing bool, err error)
	SucceedRequest(trailing []byte)
	Fail(err error)
}

var _ HTTPSchedulableRequest = (*Transaction)(nil)
var _ HTTPExecutableRequest = (*Transaction)(nil)

// NewTransaction returns a new [*Transaction] in the Initialized state.
func NewTransaction(req *http.Request, body RequestBody) *Transaction {
	return &Transaction{
		Request: req,
		Body:    body,
		state:   TransactionInitialized,
		respCh:  make(chan struct{}),
	}
}

// State returns the transaction's current [TransactionState].
func (t *Transaction) State() TransactionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetScheduler records the [Scheduler] responsible for this transaction's
// queueing/deadline timer, consulted by [Transaction.Fail] and
// [Transaction.DeadlineExceeded].
func (t *Transaction) SetScheduler(scheduler Scheduler) {
	t.mu.Lock()
	t.scheduler = scheduler
	t.mu.Unlock()
}

// MarkQueued transitions Initialized -> Queued.
func (t *Transaction) MarkQueued() {
	t.mu.Lock()
	if t.state == TransactionInitialized {
		t.state = TransactionQueued
	}
	t.mu.Unlock()
}

// WillExecuteRequest transitions Queued -> Executing and records executor.
//
// If the transaction was already cancelled, it returns
// [ExecutorActionCancel] (instructing the caller to abort the executor
// without writing anything) and resolves the response promise with
// [ErrKindCancelled] if it has not already resolved.
func (t *Transaction) WillExecuteRequest(executor Executor) ExecutorAction {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		t.resolveResponse(nil, NewConnectError(ErrKindCancelled, "", nil))
		return ExecutorActionCancel
	}
	t.executor = executor
	if t.state == TransactionInitialized || t.state == TransactionQueued {
		t.state = TransactionExecuting
	}
	t.mu.Unlock()
	return ExecutorActionProceed
}

// ResumeRequestBodyStream implements producer-side credit.
//
// For a streaming body, the first call starts the request-body pump
// goroutine ("startStream"); it is started at most once per transaction.
// Subsequent calls (once the pump is already running and has been paused by
// [Transaction.PauseRequestBodyStream]) resume the suspended write.
//
// For a buffered body, this writes the single chunk and signals
// end-of-stream. For no body, this is a no-op.
func (t *Transaction) ResumeRequestBodyStream(ctx context.Context, allocator func() []byte) {
	t.mu.Lock()
	switch t.Body.Kind {
	case RequestBodyStreaming:
		if !t.startStreamed {
			t.startStreamed = true
			t.mu.Unlock()
			go t.pumpRequestBody(ctx, allocator)
			return
		}
		t.paused = false
		pw := t.pendingWrite
		t.pendingWrite = nil
		executor := t.executor
		t.mu.Unlock()
		if pw != nil && executor != nil {
			pw.result <- executor.WriteRequestBodyPart(ctx, pw.part)
		}

	case RequestBodyBuffered:
		executor := t.executor
		buffered := t.Body.Buffered
		t.mu.Unlock()
		if executor == nil {
			return
		}
		if err := executor.WriteRequestBodyPart(ctx, buffered); err != nil {
			t.Fail(err)
			return
		}
		if err := executor.FinishRequestBodyStream(ctx); err != nil {
			t.Fail(err)
		}

	default:
		t.mu.Unlock()
	}
}

// PauseRequestBodyStream flips an internal flag so subsequent
// [Transaction.writeNextRequestPart] calls suspend instead of writing
// immediately.
func (t *Transaction) PauseRequestBodyStream() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

// pumpRequestBody is the single producer task that iterates Body.Stream,
// writing each part via writeNextRequestPart, avoiding the re-entrancy a
// callback-driven pump would risk.
func (t *Transaction) pumpRequestBody(ctx context.Context, allocator func() []byte) {
	if allocator == nil {
		allocator = func() []byte { return make([]byte, 32*1024) }
	}
	for {
		buf := allocator()
		n, readErr := t.Body.Stream.Read(buf)
		if n > 0 {
			if writeErr := t.writeNextRequestPart(ctx, buf[:n]); writeErr != nil {
				// The pump exits silently; the failure is already on the
				// primary error path via whatever called Fail.
				return
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				t.Fail(readErr)
				return
			}
			break
		}
	}
	t.mu.Lock()
	executor := t.executor
	t.mu.Unlock()
	if executor != nil {
		if err := executor.FinishRequestBodyStream(ctx); err != nil {
			t.Fail(err)
		}
	}
}

// writeNextRequestPart writes part via the executor directly
// ("writeAndContinue") unless the stream is currently paused, in which case
// it suspends until [Transaction.ResumeRequestBodyStream] resumes it or the
// transaction fails ("writeAndWait").
func (t *Transaction) writeNextRequestPart(ctx context.Context, part []byte) error {
	t.mu.Lock()
	if !t.paused {
		executor := t.executor
		t.mu.Unlock()
		if executor == nil {
			return nil
		}
		return executor.WriteRequestBodyPart(ctx, part)
	}
	pw := &pendingWrite{part: part, result: make(chan error, 1)}
	t.pendingWrite = pw
	t.mu.Unlock()

	select {
	case err := <-pw.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReceiveResponseHead transitions Executing -> StreamingResponseBody,
// constructs the [*Response] value, and resolves the response promise
// exactly once.
//
// Calling it a second time, or after the transaction has already finished or
// failed, is an out-of-order transition (a programmer error); it returns
// [ErrKindRemoteConnectionClosed] rather than constructing a second
// response, since the only caller that could trigger it is a buggy
// HTTP-layer connection wrapper.
func (t *Transaction) ReceiveResponseHead(head ResponseHead) (*Response, error) {
	t.mu.Lock()
	if t.state == TransactionStreamingResponseBody || t.state == TransactionFinished || t.state == TransactionFailed {
		t.mu.Unlock()
		return nil, NewConnectError(ErrKindRemoteConnectionClosed, "response head received out of order", nil)
	}
	t.state = TransactionStreamingResponseBody
	stream := newResponseBodyStream(t.executor, responseBodyStreamCapacity)
	t.bodyStream = stream
	t.mu.Unlock()

	resp := &Response{Head: head, Body: stream}
	t.resolveResponse(resp, nil)
	return resp, nil
}

// ReceiveResponseBodyParts forwards buf to the response body stream. The
// returned stopProducing flag is the stream's back-pressure signal: when true,
// the caller must stop reading more body off the wire until the consumer
// drains the stream, at which point [Executor.DemandResponseBodyStream] is
// invoked to resume production.
func (t *Transaction) ReceiveResponseBodyParts(buf []byte) (stopProducing bool, err error) {
	t.mu.Lock()
	stream := t.bodyStream
	t.mu.Unlock()
	if stream == nil {
		return false, NewConnectError(ErrKindRemoteConnectionClosed, "response body received before response head", nil)
	}
	return stream.push(buf), nil
}

// SucceedRequest finishes the response stream, optionally yielding trailing
// first, and transitions to Finished. Terminal: idempotent with
// [Transaction.Fail] (whichever runs first wins).
func (t *Transaction) SucceedRequest(trailing []byte) {
	t.mu.Lock()
	if t.state == TransactionFinished || t.state == TransactionFailed {
		t.mu.Unlock()
		return
	}
	t.state = TransactionFinished
	stream := t.bodyStream
	t.mu.Unlock()

	if stream == nil {
		return
	}
	if len(trailing) > 0 {
		stream.push(trailing)
	}
	stream.finish(nil)
}

// Fail is terminal: it routes err to whichever of the response promise, the
// response body stream, or a suspended body-write continuation is currently
// live, and cancels any still-live scheduler/executor. Idempotent: a second
// call (from any of the three independent cancellation sources) no-ops.
func (t *Transaction) Fail(err error) {
	t.mu.Lock()
	if t.state == TransactionFinished || t.state == TransactionFailed {
		t.mu.Unlock()
		return
	}
	t.state = TransactionFailed
	pw := t.pendingWrite
	t.pendingWrite = nil
	stream := t.bodyStream
	executor := t.executor
	scheduler := t.scheduler
	t.mu.Unlock()

	if pw != nil {
		pw.result <- err
	}
	t.resolveResponse(nil, err)
	if stream != nil {
		stream.finish(err)
	}
	t.cancelOnce(executor, scheduler)
}

// DeadlineExceeded is raised by a timer owned by the [Scheduler]: it fails
// the transaction with [ErrKindDeadlineExceeded], which in turn cancels the
// scheduler/executor and fails the response promise and any suspended
// request-body continuation.
func (t *Transaction) DeadlineExceeded() {
	t.Fail(NewConnectError(ErrKindDeadlineExceeded, "", nil))
}

// Cancel marks the transaction cancelled from an external source. If
// execution has not started yet, the next [Transaction.WillExecuteRequest]
// call observes the cancellation and instructs its caller to abort. If
// execution is already underway, Cancel fails the transaction immediately.
func (t *Transaction) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	started := t.state != TransactionInitialized && t.state != TransactionQueued
	t.mu.Unlock()
	if started {
		t.Fail(NewConnectError(ErrKindCancelled, "", nil))
	}
}

// cancelOnce calls scheduler.CancelRequest and executor.CancelRequest at
// most once for the lifetime of the transaction.
func (t *Transaction) cancelOnce(executor Executor, scheduler Scheduler) {
	t.mu.Lock()
	if t.executorAbort {
		t.mu.Unlock()
		return
	}
	t.executorAbort = true
	t.mu.Unlock()
	if scheduler != nil {
		scheduler.CancelRequest()
	}
	if executor != nil {
		executor.CancelRequest()
	}
}

// resolveResponse resolves the response promise at most once; subsequent
// calls no-op.
func (t *Transaction) resolveResponse(resp *Response, err error) {
	t.respOnce.Do(func() {
		t.respVal, t.respErr = resp, err
		close(t.respCh)
	})
}

// Response blocks until the response head arrives, the transaction fails, or
// ctx is done. Safe to call more than once: every call after the promise
// resolves returns the same value immediately.
func (t *Transaction) Response(ctx context.Context) (*Response, error) {
	select {
	case <-t.respCh:
		return t.respVal, t.respErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
