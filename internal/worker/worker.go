// Package worker runs one background pass (ingestion or maintenance) at a
// time and carries the handshake that lets the pass suspend itself while a
// human answers a question. The worker posts a request to an inbox and
// blocks on its reply channel; the front end drains the inbox on its own
// loop and answers. At most one request is outstanding.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrRunActive is returned when a run is started while another is in flight.
var ErrRunActive = errors.New("a run is already active")

// ErrRunCanceled is returned from Ask when the run was canceled before the
// request was answered.
var ErrRunCanceled = errors.New("run canceled")

// Request is one question posted by the worker. The front end answers by
// calling exactly one of Answer or Fail.
type Request struct {
	Payload any
	reply   chan result
}

type result struct {
	value any
	err   error
}

// Answer completes the request with a value, unblocking the worker.
func (r *Request) Answer(value any) {
	r.reply <- result{value: value}
}

// Fail completes the request with an error.
func (r *Request) Fail(err error) {
	r.reply <- result{err: err}
}

// Inbox is the thread-safe channel between the worker and the front end.
type Inbox struct {
	requests chan *Request
}

// NewInbox creates an inbox. The channel is unbuffered: posting a request
// blocks the worker until the front end picks it up, which is exactly the
// one-outstanding-request contract.
func NewInbox() *Inbox {
	return &Inbox{requests: make(chan *Request)}
}

// Requests exposes the request stream for the front end to drain. The
// channel closes when the run finishes.
func (in *Inbox) Requests() <-chan *Request {
	return in.requests
}

// Ask posts a request and blocks until it is answered or the context is
// canceled. Only the worker goroutine calls Ask.
func (in *Inbox) Ask(ctx context.Context, payload any) (any, error) {
	req := &Request{Payload: payload, reply: make(chan result, 1)}

	select {
	case in.requests <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrRunCanceled, ctx.Err())
	}

	select {
	case res := <-req.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrRunCanceled, ctx.Err())
	}
}

// Runner owns the single worker goroutine. Starting a second run while one
// is active fails rather than queueing.
type Runner struct {
	mu     sync.Mutex
	active bool
	runID  string
	cancel context.CancelFunc
	done   chan struct{}
	inbox  *Inbox
	err    error
}

// NewRunner creates an idle runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Start launches fn on the worker goroutine and returns the run id. The
// inbox closes when fn returns, so front ends ranging over Requests()
// terminate cleanly.
func (r *Runner) Start(ctx context.Context, fn func(ctx context.Context, inbox *Inbox) error) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return "", ErrRunActive
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.active = true
	r.runID = uuid.NewString()
	r.cancel = cancel
	r.done = make(chan struct{})
	r.inbox = NewInbox()
	r.err = nil

	go func() {
		err := fn(runCtx, r.inbox)

		r.mu.Lock()
		r.err = err
		r.active = false
		close(r.inbox.requests)
		close(r.done)
		r.mu.Unlock()
		cancel()
	}()

	return r.runID, nil
}

// Inbox returns the current run's inbox, or nil when idle.
func (r *Runner) Inbox() *Inbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inbox
}

// Active reports whether a run is in flight.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Cancel asks the current run to stop. The worker observes the
// cancellation between units of work; rows already committed stay.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current run finishes and returns its error. Safe
// to call when idle.
func (r *Runner) Wait() error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
