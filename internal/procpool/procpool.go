// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package procpool runs extraction workers as child processes. Each child
// speaks the dispatch stream protocol on its stdin and stdout; its stderr is
// passed through so worker logs reach the terminal.
package procpool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/pdiddy/property-extractor/internal/dispatch"
)

// shutdownGrace is how long Close waits for a worker before killing it.
var shutdownGrace = 10 * time.Second

// process is a started worker.
type process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Wait() error
	Kill() error
}

// executor abstracts process creation for testing.
type executor interface {
	LookPath(file string) (string, error)
	Start(name string, args []string) (process, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct {
	stderr io.Writer
}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Start(name string, args []string) (process, error) {
	cmd := exec.Command(name, args...)
	cmd.Stderr = o.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

type osProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
}

func (p *osProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *osProcess) Stdout() io.Reader     { return p.stdout }
func (p *osProcess) Wait() error           { return p.cmd.Wait() }
func (p *osProcess) Kill() error           { return p.cmd.Process.Kill() }

var defaultExec executor = &osExecutor{stderr: os.Stderr}

// Pool is a set of running worker processes and the primary end of their
// dispatch streams.
type Pool struct {
	procs   []process
	primary *dispatch.StreamPrimary
}

// Start launches n copies of bin with args and connects them to a stream
// primary. If any worker fails to start, those already started are killed.
func Start(bin string, args []string, n int) (*Pool, error) {
	return start(defaultExec, bin, args, n)
}

func start(ex executor, bin string, args []string, n int) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", n)
	}

	path, err := ex.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("worker binary %s not found: %w", bin, err)
	}

	pool := &Pool{}
	conns := make([]dispatch.Conn, 0, n)
	for i := range n {
		p, err := ex.Start(path, args)
		if err != nil {
			pool.kill()
			return nil, fmt.Errorf("starting worker %d: %w", i, err)
		}
		pool.procs = append(pool.procs, p)
		conns = append(conns, dispatch.Conn{W: p.Stdin(), R: p.Stdout()})
	}
	pool.primary = dispatch.NewStreamPrimary(conns)
	return pool, nil
}

// Primary returns the primary end of the workers' streams.
func (p *Pool) Primary() dispatch.Primary { return p.primary }

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.procs) }

// Close closes every worker's stdin and waits for it to exit. Workers that
// outlive shutdownGrace are killed.
func (p *Pool) Close() error {
	var errs []error
	if err := p.primary.Close(); err != nil {
		errs = append(errs, err)
	}

	for i, proc := range p.procs {
		done := make(chan error, 1)
		go func() { done <- proc.Wait() }()

		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, fmt.Errorf("worker %d: %w", i, err))
			}
		case <-time.After(shutdownGrace):
			proc.Kill()
			<-done
			errs = append(errs, fmt.Errorf("worker %d: killed after %s", i, shutdownGrace))
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) kill() {
	for _, proc := range p.procs {
		proc.Stdin().Close()
		proc.Kill()
		proc.Wait()
	}
}
