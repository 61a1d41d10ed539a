package main

import (
	stdcontext "context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/tss-calculator/release/pkg/release/application/service"
	"github.com/tss-calculator/release/pkg/release/infrastructure/builder"
	"github.com/tss-calculator/release/pkg/release/infrastructure/dependency"
)

func run(ctx stdcontext.Context, snapshot, skipBuild bool) error {
	dependencyContainer, err := dependency.ContainerFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = dependencyContainer.Release().Release(ctx, service.RunOptions{
		Snapshot:  snapshot,
		SkipBuild: skipBuild,
		Streams: service.Streams{
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		},
	})
	return err
}

func plan(ctx stdcontext.Context, w io.Writer, snapshot bool) error {
	dependencyContainer, err := dependency.ContainerFromContext(ctx)
	if err != nil {
		return err
	}
	releaseRun, err := dependencyContainer.Release().Plan(ctx, snapshot)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "branch:  %v\n", releaseRun.RequiredBranch)
	fmt.Fprintf(w, "current: %v\n", releaseRun.CurrentVersion)
	fmt.Fprintf(w, "release: %v\n", releaseRun.ReleaseVersion)
	fmt.Fprintf(w, "next:    %v\n", releaseRun.NextVersion)
	fmt.Fprintf(w, "target:  %v\n", releaseRun.TargetKind)
	fmt.Fprintf(w, "signing: %v\n", releaseRun.Credential)
	for _, module := range releaseRun.Modules {
		fmt.Fprintf(w, "stage:   %v -> %v\n", module.Name, module.StagingDir)
	}
	return nil
}

func refuseNestedRun() error {
	if os.Getenv(builder.NestedBuildEnv) != "" {
		return errors.Errorf("refusing to start a release from inside a nested build (%v is set)", builder.NestedBuildEnv)
	}
	return nil
}
