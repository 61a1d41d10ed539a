package builder

import (
	stdcontext "context"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/release/pkg/release/application/model"
	"github.com/tss-calculator/release/pkg/release/application/service"
	"github.com/tss-calculator/release/pkg/release/infrastructure/command"
)

// NestedBuildEnv marks the environment of a nested build so it can refuse to start another release.
const NestedBuildEnv = "RELEASE_NESTED_BUILD"

func NewNestedBuildRunner(
	logger applogger.Logger,
	projectDir string,
	config model.Build,
	runner command.Runner,
) service.NestedBuildRunner {
	return &nestedBuildRunner{
		logger:     logger,
		projectDir: projectDir,
		config:     config,
		runner:     runner,
	}
}

type nestedBuildRunner struct {
	logger     applogger.Logger
	projectDir string
	config     model.Build
	runner     command.Runner
}

func (builder nestedBuildRunner) Run(
	ctx stdcontext.Context,
	tasks []string,
	excludedTasks []string,
	streams service.Streams,
) (service.ExitStatus, error) {
	code, err := builder.runner.Run(ctx, command.Command{
		WorkDir:    builder.projectDir,
		Executable: builder.config.Executable,
		Args:       BuildArgs(builder.config.Args, tasks, excludedTasks),
		Env:        []string{NestedBuildEnv + "=1"},
		Stdin:      streams.Stdin,
		Stdout:     streams.Stdout,
		Stderr:     streams.Stderr,
	})
	status := service.ExitStatus(code)
	if err != nil {
		return status, errors.Wrapf(service.ErrNestedBuildFailed, "%v exited with status %d: %v", builder.config.Executable, code, err)
	}
	return status, nil
}

// BuildArgs appends the tasks and one "-x <task>" pair per excluded task to the base arguments.
func BuildArgs(baseArgs, tasks, excludedTasks []string) []string {
	args := make([]string, 0, len(baseArgs)+len(tasks)+2*len(excludedTasks))
	args = append(args, baseArgs...)
	args = append(args, tasks...)
	for _, task := range excludedTasks {
		args = append(args, "-x", task)
	}
	return args
}
