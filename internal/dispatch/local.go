// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dispatch

import (
	"context"
	"sync"
)

// LocalPrimary is the primary end of an in-memory transport.
type LocalPrimary struct {
	workers     []*LocalWorker
	completions chan Message
}

// LocalWorker is one worker end of an in-memory transport.
type LocalWorker struct {
	id          int
	assign      chan Message
	completions chan<- Message
	done        chan struct{}

	mu      sync.Mutex
	pending string
	closed  bool
}

// NewLocal creates an in-memory transport with n workers.
func NewLocal(n int) (*LocalPrimary, []*LocalWorker) {
	p := &LocalPrimary{completions: make(chan Message, n)}
	for i := range n {
		p.workers = append(p.workers, &LocalWorker{
			id:          i,
			assign:      make(chan Message, 1),
			completions: p.completions,
			done:        make(chan struct{}),
		})
	}
	return p, p.workers
}

// Workers returns the number of workers.
func (p *LocalPrimary) Workers() int { return len(p.workers) }

// Send delivers msg to the worker with the given index.
func (p *LocalPrimary) Send(ctx context.Context, worker int, msg Message) error {
	if worker < 0 || worker >= len(p.workers) {
		return ErrWorkerGone
	}
	w := p.workers[worker]
	select {
	case <-w.done:
		return ErrWorkerGone
	default:
	}
	select {
	case w.assign <- msg:
		return nil
	case <-w.done:
		return ErrWorkerGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the next completion from any worker.
func (p *LocalPrimary) Recv(ctx context.Context) (Message, error) {
	select {
	case msg := <-p.completions:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Recv returns the next message from the primary.
func (w *LocalWorker) Recv(ctx context.Context) (Message, error) {
	select {
	case msg := <-w.assign:
		if msg.Kind == KindAssign {
			w.mu.Lock()
			w.pending = msg.Path
			w.mu.Unlock()
		}
		return msg, nil
	case <-w.done:
		return Message{}, ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Send reports a completion, stamped with this worker's index.
func (w *LocalWorker) Send(ctx context.Context, msg Message) error {
	msg.Worker = w.id
	select {
	case w.completions <- msg:
		w.mu.Lock()
		w.pending = ""
		w.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the worker as exited. An assignment it received but never
// answered is reported to the primary as failed.
func (w *LocalWorker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	pending := w.pending
	w.pending = ""
	close(w.done)
	w.mu.Unlock()

	// An assignment still buffered was never seen by the worker.
	select {
	case msg := <-w.assign:
		if msg.Kind == KindAssign && pending == "" {
			pending = msg.Path
		}
	default:
	}

	if pending != "" {
		w.completions <- gone(w.id, pending)
	}
}
