package main

import (
	stdcontext "context"
	"fmt"
	"io"

	"github.com/tss-calculator/release/pkg/release/application/service"
	"github.com/tss-calculator/release/pkg/release/infrastructure/dependency"
)

func stagePaths(ctx stdcontext.Context, w io.Writer) error {
	dependencyContainer, err := dependency.ContainerFromContext(ctx)
	if err != nil {
		return err
	}
	config := dependencyContainer.Config()
	for _, module := range service.ResolveModules(config.Modules, config.OutputDir) {
		fmt.Fprintf(w, "%v\t%v\n", module.Name, module.StagingDir)
	}
	return nil
}
