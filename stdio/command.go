package stdio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Process is a server subprocess whose stdin/stdout carry the session.
type Process struct {
	*Stream

	cmd      *exec.Cmd
	waitDone chan struct{}
	waitErr  error
}

// CommandConfig describes the server process to spawn.
type CommandConfig struct {
	Command string
	Args    []string
	// Env is appended to the current environment.
	Env []string
	Dir string
	// Stderr receives the server's stderr. Defaults to os.Stderr.
	Stderr io.Writer
}

// StartCommand spawns the configured process and wires its stdio to a Stream.
// The process is not bound to ctx; use Close to stop it.
func StartCommand(ctx context.Context, cfg CommandConfig, opts ...Option) (*Process, error) {
	if cfg.Command == "" {
		return nil, errors.New("stdio: command is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	cmd.Stderr = cfg.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("stdio: start %s: %w", cfg.Command, err)
	}

	p := &Process{
		Stream:   NewStream(stdout, stdin, opts...),
		cmd:      cmd,
		waitDone: make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.waitDone)
	}()
	return p, nil
}

// Close closes the process's stdin, which is the protocol's shutdown
// signal, then kills the process if it has not exited within grace.
func (p *Process) Close() error {
	return p.Shutdown(2 * time.Second)
}

// Shutdown is Close with an explicit grace period.
func (p *Process) Shutdown(grace time.Duration) error {
	closeErr := p.Stream.Close()
	select {
	case <-p.waitDone:
	case <-time.After(grace):
		_ = p.cmd.Process.Kill()
		<-p.waitDone
	}
	return closeErr
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.waitDone }

// ExitErr returns the result of waiting on the process. Only meaningful
// after Done is closed.
func (p *Process) ExitErr() error { return p.waitErr }
