package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Executor runs one external engine process to completion.
type Executor interface {
	// Run blocks until the process exits or ctx ends. When ctx ends the
	// process and every child it spawned must be dead before Run returns.
	Run(ctx context.Context, binary string, args []string, stderr io.Writer) error
}

// waitDelay bounds how long Run waits for inherited pipes after a kill.
const waitDelay = 5 * time.Second

type commandExecutor struct{}

// CommandExecutor returns the os/exec backed executor. Each process runs in
// its own process group so cancellation kills ffmpeg and any helpers it forks.
func CommandExecutor() Executor {
	return commandExecutor{}
}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdin = nil
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	cmd.Cancel = func() error {
		return killGroup(cmd.Process)
	}
	cmd.WaitDelay = waitDelay
	return cmd.Run()
}

func killGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	if err := unix.Kill(-proc.Pid, unix.SIGKILL); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return proc.Kill()
	}
	return nil
}

// exitCode extracts the process exit status, or -1 when the process never
// exited normally.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
