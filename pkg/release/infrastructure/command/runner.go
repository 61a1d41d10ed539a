package command

import (
	"context"
	"errors"
	"io"
	"os/exec"

	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"
)

type Command struct {
	WorkDir    string
	Executable string
	Args       []string
	// Env entries are appended to the parent environment.
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type Runner interface {
	// Execute captures stdout.
	Execute(ctx context.Context, command Command) (string, error)
	// Run proxies the command streams and reports the exit code. The code is -1 when the process did not exit normally.
	Run(ctx context.Context, command Command) (int, error)
}

func NewCommandRunner(logger applogger.Logger) Runner {
	return &runner{
		logger: logger,
	}
}

type runner struct {
	logger applogger.Logger
}

func (r runner) Execute(ctx context.Context, command Command) (string, error) {
	cmd, err := r.command(ctx, command)
	if err != nil {
		return "", err
	}
	result, err := cmd.Output()
	return string(result), err
}

func (r runner) Run(ctx context.Context, command Command) (int, error) {
	cmd, err := r.command(ctx, command)
	if err != nil {
		return -1, err
	}
	cmd.Stdin = command.Stdin
	cmd.Stdout = command.Stdout
	cmd.Stderr = command.Stderr
	err = cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

func (r runner) command(ctx context.Context, command Command) (*exec.Cmd, error) {
	if command.Executable == "" {
		return nil, errors.New("command executable can not be empty")
	}
	// nolint:gosec
	cmd := exec.CommandContext(ctx, command.Executable, command.Args...)
	cmd.Dir = command.WorkDir
	if len(command.Env) > 0 {
		cmd.Env = append(cmd.Environ(), command.Env...)
	}
	r.logger.Debug(cmd.String())
	return cmd, nil
}

// ToolLocator resolves executables on PATH.
type ToolLocator struct{}

func NewToolLocator() ToolLocator {
	return ToolLocator{}
}

func (ToolLocator) LookPath(executable string) (string, error) {
	return exec.LookPath(executable)
}
