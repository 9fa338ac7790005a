// Package process runs the tracer tool as a child process and hands its
// standard output over a bounded channel that can be polled without
// blocking.
package process

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/maxgio92/tracegraph/internal/settings"
)

// newline is the chunk the tracer's line terminators are delivered as.
const newline = "\n"

type TraceProcess struct {
	cmd    *exec.Cmd
	output chan string
	exited chan struct{}
	killed chan struct{}

	startOnce sync.Once
	killOnce  sync.Once

	*TraceProcessOptions
}

func New(opts ...TraceProcessOption) *TraceProcess {
	p := &TraceProcess{
		TraceProcessOptions: &TraceProcessOptions{
			tracerPath:       settings.DefaultTracer,
			outputBufferSize: DefaultOutputBufferSize,
			logger:           log.Nop(),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "process").Logger()
	p.output = make(chan string, p.outputBufferSize)
	p.exited = make(chan struct{})
	p.killed = make(chan struct{})

	return p
}

// Start spawns the tracer with args in its own process group. The only
// failure reported is the spawn itself: anything going wrong inside the
// tracer afterwards is observable only through IsAlive.
func (p *TraceProcess) Start(args []string) error {
	if p.tracerPath == "" {
		return ErrTracerPathEmpty
	}
	err := ErrAlreadyStarted
	p.startOnce.Do(func() {
		err = p.start(args)
	})

	return err
}

func (p *TraceProcess) start(args []string) error {
	cmd := exec.Command(p.tracerPath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "failed to open tracer stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "failed to open tracer stderr")
	}
	if err := cmd.Start(); err != nil {
		close(p.exited)
		return errors.Wrapf(err, "failed to start tracer %s", p.tracerPath)
	}
	p.cmd = cmd
	p.logger.Debug().Int("pid", cmd.Process.Pid).Strs("args", args).Msg("tracer started")

	go p.reap(stdout, stderr)

	return nil
}

// reap drains both output streams and then waits for the child, so that
// liveness drops only once everything the tracer printed has been buffered.
func (p *TraceProcess) reap(stdout, stderr io.Reader) {
	defer close(p.exited)

	var g errgroup.Group
	g.Go(func() error {
		return p.pumpStdout(stdout)
	})
	g.Go(func() error {
		return p.pumpStderr(stderr)
	})
	if err := g.Wait(); err != nil {
		p.logger.Debug().Err(err).Msg("error reading tracer output")
	}

	if err := p.cmd.Wait(); err != nil {
		p.logger.Debug().Err(err).Msg("tracer exited")
		return
	}
	p.logger.Debug().Msg("tracer exited")
}

// pumpStdout delivers every line as its text, trimmed of spaces, followed by
// a lone newline chunk. A blank line is a lone newline chunk.
func (p *TraceProcess) pumpStdout(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if line := strings.Trim(scanner.Text(), " "); line != "" {
			if !p.send(line) {
				return nil
			}
		}
		if !p.send(newline) {
			return nil
		}
	}

	return scanner.Err()
}

// send blocks while the output buffer is full, unless the tracer gets killed.
func (p *TraceProcess) send(chunk string) bool {
	select {
	case p.output <- chunk:
		return true
	case <-p.killed:
		return false
	}
}

func (p *TraceProcess) pumpStderr(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.logger.Debug().Str("stream", "stderr").Msg(scanner.Text())
	}

	return scanner.Err()
}

// GetOutput returns the next buffered output chunk, if any is ready.
func (p *TraceProcess) GetOutput() (string, bool) {
	select {
	case out := <-p.output:
		return out, true
	default:
		return "", false
	}
}

// Buffered returns the number of output chunks waiting to be consumed and
// the capacity of the buffer.
func (p *TraceProcess) Buffered() (int, int) {
	return len(p.output), cap(p.output)
}

func (p *TraceProcess) IsAlive() bool {
	if p.cmd == nil {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Pid returns the pid of the tracer, or -1 if it was never started.
func (p *TraceProcess) Pid() int {
	if p.cmd == nil {
		return -1
	}

	return p.cmd.Process.Pid
}

// Terminate kills the whole tracer process group. It can be called any
// number of times and regardless of liveness.
func (p *TraceProcess) Terminate() error {
	if !p.IsAlive() {
		return nil
	}
	var err error
	p.killOnce.Do(func() {
		close(p.killed)
		err = syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			err = nil
		}
		if err != nil {
			err = errors.Wrap(err, "failed to kill tracer process group")
			if kerr := p.cmd.Process.Kill(); kerr == nil || errors.Is(kerr, os.ErrProcessDone) {
				err = nil
			}
		}
	})

	return err
}

// Join waits for the tracer to be reaped. It returns immediately if the
// tracer was never started.
func (p *TraceProcess) Join() {
	if p.cmd == nil {
		return
	}
	<-p.exited
}
