// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dispatch carries the primary/worker protocol used to distribute
// work units. The primary sends Assign and Exit messages to individual
// workers; workers answer every Assign with exactly one Completed message on
// a channel shared by all workers.
//
// Two transports are provided: an in-memory one for goroutine workers and a
// JSON-lines stream for worker subprocesses.
package dispatch

import (
	"context"
	"errors"

	"github.com/pdiddy/property-extractor/pkg/types"
)

var (
	// ErrClosed is returned by Recv once the transport can deliver no more
	// messages.
	ErrClosed = errors.New("dispatch channel closed")

	// ErrWorkerGone is returned by Send when the target worker has exited.
	// It is also the error recorded in the synthetic completion produced for
	// a unit whose worker died before reporting.
	ErrWorkerGone = errors.New("worker gone")
)

// Kind discriminates protocol messages.
type Kind string

const (
	KindAssign    Kind = "assign"
	KindCompleted Kind = "completed"
	KindExit      Kind = "exit"
)

// Message is one protocol message.
type Message struct {
	Kind Kind `json:"kind"`

	// Path is the document path of an Assign message.
	Path string `json:"path,omitempty"`

	// Worker is the index of the worker that sent a Completed message. The
	// transport stamps it on receipt.
	Worker int `json:"worker"`

	// Result is the outcome carried by a Completed message.
	Result *types.UnitResult `json:"result,omitempty"`
}

// Assign asks a worker to process the document at path.
func Assign(path string) Message {
	return Message{Kind: KindAssign, Path: path}
}

// Completed reports the outcome of an assignment.
func Completed(result types.UnitResult) Message {
	return Message{Kind: KindCompleted, Result: &result}
}

// Exit tells an idle worker to terminate.
func Exit() Message {
	return Message{Kind: KindExit}
}

// Primary is the coordinating end of the protocol.
type Primary interface {
	// Workers returns the number of workers, indexed from zero.
	Workers() int

	// Send delivers an Assign or Exit message to one worker.
	Send(ctx context.Context, worker int, msg Message) error

	// Recv blocks until any worker reports a completion.
	Recv(ctx context.Context) (Message, error)
}

// Worker is the processing end of the protocol.
type Worker interface {
	// Recv blocks until the primary sends an Assign or Exit message.
	Recv(ctx context.Context) (Message, error)

	// Send reports a completion to the primary.
	Send(ctx context.Context, msg Message) error
}

// gone builds the completion reported for a unit whose worker exited
// without answering.
func gone(worker int, path string) Message {
	unit := types.NewWorkUnit(path)
	msg := Completed(types.UnitResult{
		Path:   unit.Path,
		Base:   unit.Base,
		Status: types.StatusFailed,
		Error:  ErrWorkerGone.Error(),
	})
	msg.Worker = worker
	return msg
}
