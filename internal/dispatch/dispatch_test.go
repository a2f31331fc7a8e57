// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dispatch

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/property-extractor/pkg/types"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLocal_RoundTrip(t *testing.T) {
	ctx := testCtx(t)
	p, workers := NewLocal(2)
	require.Len(t, workers, 2)
	assert.Equal(t, 2, p.Workers())

	require.NoError(t, p.Send(ctx, 1, Assign("/docs/b.xml")))

	msg, err := workers[1].Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindAssign, msg.Kind)
	assert.Equal(t, "/docs/b.xml", msg.Path)

	require.NoError(t, workers[1].Send(ctx, Completed(types.UnitResult{Path: msg.Path, Status: types.StatusExtracted})))

	done, err := p.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindCompleted, done.Kind)
	assert.Equal(t, 1, done.Worker)
	require.NotNil(t, done.Result)
	assert.Equal(t, types.StatusExtracted, done.Result.Status)
}

func TestLocal_ClosedWorkerReportsPendingUnit(t *testing.T) {
	ctx := testCtx(t)
	p, workers := NewLocal(1)

	require.NoError(t, p.Send(ctx, 0, Assign("/docs/a.xml")))
	_, err := workers[0].Recv(ctx)
	require.NoError(t, err)

	workers[0].Close()
	workers[0].Close()

	msg, err := p.Recv(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg.Result)
	assert.Equal(t, types.StatusFailed, msg.Result.Status)
	assert.Equal(t, "a", msg.Result.Base)
	assert.Equal(t, ErrWorkerGone.Error(), msg.Result.Error)

	assert.ErrorIs(t, p.Send(ctx, 0, Exit()), ErrWorkerGone)
	_, err = workers[0].Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLocal_ClosedWorkerReportsBufferedUnit(t *testing.T) {
	ctx := testCtx(t)
	p, workers := NewLocal(1)

	require.NoError(t, p.Send(ctx, 0, Assign("/docs/c.xml")))
	workers[0].Close()

	msg, err := p.Recv(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg.Result)
	assert.Equal(t, "/docs/c.xml", msg.Result.Path)
	assert.Equal(t, types.StatusFailed, msg.Result.Status)
}

func TestLocal_RecvHonoursContext(t *testing.T) {
	p, _ := NewLocal(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// pipeWorker connects a StreamWorker to a primary-side Conn.
func pipeWorker() (Conn, *StreamWorker, *io.PipeWriter) {
	toWorkerR, toWorkerW := io.Pipe()
	fromWorkerR, fromWorkerW := io.Pipe()
	return Conn{W: toWorkerW, R: fromWorkerR}, NewStreamWorker(toWorkerR, fromWorkerW), fromWorkerW
}

func TestStream_RoundTrip(t *testing.T) {
	ctx := testCtx(t)
	conn0, w0, out0 := pipeWorker()
	conn1, w1, out1 := pipeWorker()
	p := NewStreamPrimary([]Conn{conn0, conn1})
	assert.Equal(t, 2, p.Workers())

	serve := func(w *StreamWorker, out *io.PipeWriter) {
		defer out.Close()
		for {
			msg, err := w.Recv(ctx)
			if err != nil || msg.Kind == KindExit {
				return
			}
			unit := types.NewWorkUnit(msg.Path)
			_ = w.Send(ctx, Completed(types.UnitResult{
				Path: unit.Path, Base: unit.Base, Status: types.StatusExtracted, Records: 3,
			}))
		}
	}
	go serve(w0, out0)
	go serve(w1, out1)

	require.NoError(t, p.Send(ctx, 0, Assign("/docs/a.xml")))
	require.NoError(t, p.Send(ctx, 1, Assign("/docs/b.xml")))

	got := map[int]string{}
	for range 2 {
		msg, err := p.Recv(ctx)
		require.NoError(t, err)
		require.NotNil(t, msg.Result)
		assert.Equal(t, 3, msg.Result.Records)
		got[msg.Worker] = msg.Result.Base
	}
	assert.Equal(t, map[int]string{0: "a", 1: "b"}, got)

	require.NoError(t, p.Send(ctx, 0, Exit()))
	require.NoError(t, p.Send(ctx, 1, Exit()))

	_, err := p.Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, p.Close())
}

func TestStream_DeadWorkerYieldsFailedCompletion(t *testing.T) {
	ctx := testCtx(t)
	conn, w, out := pipeWorker()
	p := NewStreamPrimary([]Conn{conn})

	go func() {
		// Take the assignment, then die without answering.
		_, _ = w.Recv(ctx)
		out.Close()
	}()

	require.NoError(t, p.Send(ctx, 0, Assign("/docs/dead.xml")))

	msg, err := p.Recv(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg.Result)
	assert.Equal(t, types.StatusFailed, msg.Result.Status)
	assert.Equal(t, "dead", msg.Result.Base)

	_, err = p.Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Send(ctx, 0, Assign("/docs/next.xml")), ErrWorkerGone)
}

func TestStreamWorker_EOFIsClosed(t *testing.T) {
	r, wr := io.Pipe()
	w := NewStreamWorker(r, io.Discard)
	wr.Close()

	_, err := w.Recv(testCtx(t))
	assert.ErrorIs(t, err, ErrClosed)
}
