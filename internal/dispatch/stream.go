// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Conn is the primary's view of one worker stream: the worker's input and
// output.
type Conn struct {
	// W carries messages to the worker (its stdin).
	W io.WriteCloser

	// R carries messages from the worker (its stdout).
	R io.Reader
}

// StreamPrimary is the primary end of a JSON-lines transport. Each worker
// is reached over its own Conn.
type StreamPrimary struct {
	conns       []*streamConn
	completions chan Message
	done        chan struct{}
}

type streamConn struct {
	id  int
	w   io.WriteCloser
	enc *json.Encoder

	mu      sync.Mutex
	pending string
	gone    bool
}

// NewStreamPrimary starts a reader for each conn and returns the primary.
// When a worker's output ends while it holds an assignment, a failed
// completion is delivered in its place.
func NewStreamPrimary(conns []Conn) *StreamPrimary {
	p := &StreamPrimary{
		completions: make(chan Message, len(conns)),
		done:        make(chan struct{}),
	}

	var wg sync.WaitGroup
	for i, c := range conns {
		sc := &streamConn{id: i, w: c.W, enc: json.NewEncoder(c.W)}
		p.conns = append(p.conns, sc)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.read(sc, c.R)
		}()
	}
	go func() {
		wg.Wait()
		close(p.done)
	}()
	return p
}

func (p *StreamPrimary) read(sc *streamConn, r io.Reader) {
	dec := json.NewDecoder(bufio.NewReader(r))
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			break
		}
		if msg.Kind != KindCompleted {
			continue
		}
		msg.Worker = sc.id
		sc.mu.Lock()
		sc.pending = ""
		sc.mu.Unlock()
		p.completions <- msg
	}

	sc.mu.Lock()
	sc.gone = true
	pending := sc.pending
	sc.pending = ""
	sc.mu.Unlock()

	if pending != "" {
		p.completions <- gone(sc.id, pending)
	}
}

// Workers returns the number of workers.
func (p *StreamPrimary) Workers() int { return len(p.conns) }

// Send writes msg to one worker's input.
func (p *StreamPrimary) Send(ctx context.Context, worker int, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if worker < 0 || worker >= len(p.conns) {
		return ErrWorkerGone
	}
	sc := p.conns[worker]

	sc.mu.Lock()
	if sc.gone {
		sc.mu.Unlock()
		return ErrWorkerGone
	}
	if msg.Kind == KindAssign {
		sc.pending = msg.Path
	}
	sc.mu.Unlock()

	if err := sc.enc.Encode(msg); err != nil {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		if msg.Kind == KindAssign && sc.pending != msg.Path {
			// The reader already reported the unit as failed.
			return nil
		}
		sc.pending = ""
		return fmt.Errorf("%w: %v", ErrWorkerGone, err)
	}
	return nil
}

// Recv returns the next completion from any worker. It returns ErrClosed
// once every worker's output has ended and no completions remain.
func (p *StreamPrimary) Recv(ctx context.Context) (Message, error) {
	select {
	case msg := <-p.completions:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-p.done:
		select {
		case msg := <-p.completions:
			return msg, nil
		default:
			return Message{}, ErrClosed
		}
	}
}

// Close closes every worker's input, which ends idle workers.
func (p *StreamPrimary) Close() error {
	var errs []error
	for _, sc := range p.conns {
		if err := sc.w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StreamWorker is the worker end of a JSON-lines transport, usually bound
// to the process's stdin and stdout.
type StreamWorker struct {
	incoming chan Message
	readErr  error

	mu  sync.Mutex
	enc *json.Encoder
}

// NewStreamWorker reads messages from r and writes completions to w.
func NewStreamWorker(r io.Reader, w io.Writer) *StreamWorker {
	sw := &StreamWorker{
		incoming: make(chan Message),
		enc:      json.NewEncoder(w),
	}
	go func() {
		defer close(sw.incoming)
		dec := json.NewDecoder(bufio.NewReader(r))
		for {
			var msg Message
			if err := dec.Decode(&msg); err != nil {
				if !errors.Is(err, io.EOF) {
					sw.readErr = err
				}
				return
			}
			sw.incoming <- msg
		}
	}()
	return sw
}

// Recv returns the next message from the primary, or ErrClosed when the
// input ends.
func (sw *StreamWorker) Recv(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-sw.incoming:
		if !ok {
			if sw.readErr != nil {
				return Message{}, fmt.Errorf("%w: %v", ErrClosed, sw.readErr)
			}
			return Message{}, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Send writes msg to the primary.
func (sw *StreamWorker) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if err := sw.enc.Encode(msg); err != nil {
		return fmt.Errorf("writing completion: %w", err)
	}
	return nil
}
