package main

import (
	stdcontext "context"
	"fmt"
	"io"

	"github.com/tss-calculator/release/pkg/release/infrastructure/dependency"
)

func version(ctx stdcontext.Context, w io.Writer, snapshot bool) error {
	dependencyContainer, err := dependency.ContainerFromContext(ctx)
	if err != nil {
		return err
	}
	releaseRun, err := dependencyContainer.Release().Versions(snapshot)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "current: %v\nrelease: %v\nnext:    %v\ntarget:  %v\n",
		releaseRun.CurrentVersion, releaseRun.ReleaseVersion, releaseRun.NextVersion, releaseRun.TargetKind)
	return nil
}
