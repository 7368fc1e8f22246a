// Package process manages an optional child node process owned by the
// connection.
package process

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/fd1az/chainsync/internal/apperror"
	"github.com/fd1az/chainsync/internal/logger"
)

const defaultStopTimeout = 15 * time.Second

// Config describes the node binary to launch.
type Config struct {
	Binary      string
	Args        []string
	DataDir     string
	StopTimeout time.Duration
}

// NodeProcess launches and supervises a local node binary. Stop sends
// SIGTERM and escalates to SIGKILL after StopTimeout.
type NodeProcess struct {
	cfg Config
	log logger.LoggerInterface

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan error
}

// New returns an unstarted process handle.
func New(cfg Config, log logger.LoggerInterface) *NodeProcess {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &NodeProcess{cfg: cfg, log: log}
}

// Start launches the node binary.
func (p *NodeProcess) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return nil
	}

	if p.cfg.DataDir != "" {
		if err := os.MkdirAll(p.cfg.DataDir, 0o700); err != nil {
			return apperror.New(apperror.CodeProcessStartFailed,
				apperror.WithCause(err),
				apperror.WithContext(p.cfg.DataDir))
		}
	}

	cmd := exec.Command(p.cfg.Binary, p.cfg.Args...)
	cmd.Dir = p.cfg.DataDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return apperror.New(apperror.CodeProcessStartFailed,
			apperror.WithCause(err),
			apperror.WithContext(p.cfg.Binary))
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	p.cmd = cmd
	p.done = done
	p.log.Info(ctx, "node process started",
		"binary", p.cfg.Binary, "pid", cmd.Process.Pid)
	return nil
}

// Stop terminates the node binary, escalating to SIGKILL when it does
// not exit within StopTimeout.
func (p *NodeProcess) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		return nil
	}

	pid := p.cmd.Process.Pid
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		p.cmd = nil
		return apperror.New(apperror.CodeProcessStopFailed,
			apperror.WithCause(err),
			apperror.WithContext(p.cfg.Binary))
	}

	select {
	case err := <-p.done:
		p.cmd = nil
		if err != nil && !isExpectedExit(err) {
			p.log.Warn(ctx, "node process exited with error", "pid", pid, "error", err.Error())
		}
		p.log.Info(ctx, "node process stopped", "pid", pid)
		return nil
	case <-time.After(p.cfg.StopTimeout):
		p.log.Warn(ctx, "node process did not exit, killing", "pid", pid)
		if err := p.cmd.Process.Kill(); err != nil {
			p.cmd = nil
			return apperror.New(apperror.CodeProcessStopFailed,
				apperror.WithCause(err),
				apperror.WithContext(p.cfg.Binary))
		}
		<-p.done
		p.cmd = nil
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the process is currently supervised.
func (p *NodeProcess) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

// isExpectedExit reports whether err is the normal outcome of killing
// a child with a termination signal.
func isExpectedExit(err error) bool {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	return status.Signaled() && (status.Signal() == syscall.SIGTERM || status.Signal() == syscall.SIGKILL)
}
