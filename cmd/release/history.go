package main

import (
	stdcontext "context"
	"fmt"
	"io"
	"time"

	"github.com/tss-calculator/release/pkg/release/infrastructure/dependency"
)

func history(ctx stdcontext.Context, w io.Writer, limit int) error {
	dependencyContainer, err := dependency.ContainerFromContext(ctx)
	if err != nil {
		return err
	}
	records, err := dependencyContainer.Release().History(ctx, limit)
	if err != nil {
		return err
	}
	for _, record := range records {
		fmt.Fprintf(w, "%v  %v  %v -> %v  %v  %v\n",
			record.StartedAt.Local().Format(time.DateTime), record.ID,
			record.CurrentVersion, record.ReleaseVersion, record.TargetKind, record.State)
		if record.Error != "" {
			fmt.Fprintf(w, "    %v\n", record.Error)
		}
	}
	return nil
}
