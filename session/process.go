package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// ProcessSpec is everything needed to start one child.
type ProcessSpec struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Columns int
	Rows    int
}

// ExitStatus is how a child ended. Code is -1 when it was killed by a signal.
type ExitStatus struct {
	Code   int
	Signal string
	Err    error
}

func (e ExitStatus) Success() bool {
	return e.Code == 0 && e.Err == nil
}

// ShellCode is the status a shell would report: the child's own code, 128+n
// for a child killed by signal n, and 1 for any other failure.
func (e ExitStatus) ShellCode() int {
	switch {
	case e.Success():
		return 0
	case e.Code > 0:
		return e.Code
	case e.Signal != "":
		if n := signalNumber(e.Signal); n > 0 {
			return 128 + n
		}
	}
	return 1
}

func (e ExitStatus) String() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("exit %d: %v", e.Code, e.Err)
	case e.Signal != "":
		return "killed by " + e.Signal
	}
	return fmt.Sprintf("exit %d", e.Code)
}

// Process is a running child. Read returns its merged output and io.EOF once
// the terminal side is gone.
type Process interface {
	io.ReadWriter
	Resize(columns, rows int) error
	// Signal delivers sig to the child's process group.
	Signal(sig os.Signal) error
	Kill() error
	// Wait blocks until the child exits. It may be called once.
	Wait() ExitStatus
	Close() error
	Pid() int
}

// Spawner starts processes. Tests substitute a scripted one.
type Spawner interface {
	Spawn(spec ProcessSpec) (Process, error)
}

// PTYSpawner runs children on a pseudo-terminal.
type PTYSpawner struct{}

func (PTYSpawner) Spawn(spec ProcessSpec) (Process, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(spec.Rows), Cols: uint16(spec.Columns)})
	if err != nil {
		return nil, err
	}
	return &ptyProcess{cmd: cmd, pty: f}, nil
}

type ptyProcess struct {
	cmd       *exec.Cmd
	pty       *os.File
	closeOnce sync.Once
	closeErr  error
}

func (p *ptyProcess) Read(b []byte) (int, error) {
	n, err := p.pty.Read(b)
	// Linux reports EIO on the master once the last slave fd is closed.
	if err != nil && (errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)) {
		err = io.EOF
	}
	return n, err
}

func (p *ptyProcess) Write(b []byte) (int, error) {
	return p.pty.Write(b)
}

func (p *ptyProcess) Resize(columns, rows int) error {
	return pty.Setsize(p.pty, &pty.Winsize{Rows: uint16(rows), Cols: uint16(columns)})
}

func (p *ptyProcess) Signal(sig os.Signal) error {
	if err := signalGroup(p.cmd.Process.Pid, sig); err != nil {
		return p.cmd.Process.Signal(sig)
	}
	return nil
}

func (p *ptyProcess) Kill() error {
	if err := signalGroup(p.cmd.Process.Pid, os.Kill); err != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

func (p *ptyProcess) Wait() ExitStatus {
	return exitStatus(p.cmd.Wait())
}

func (p *ptyProcess) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.pty.Close()
	})
	return p.closeErr
}

func (p *ptyProcess) Pid() int {
	return p.cmd.Process.Pid
}
