package dependency

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/release/pkg/release/application/model"
	"github.com/tss-calculator/release/pkg/release/application/service"
	"github.com/tss-calculator/release/pkg/release/infrastructure/builder"
	"github.com/tss-calculator/release/pkg/release/infrastructure/command"
	"github.com/tss-calculator/release/pkg/release/infrastructure/journal"
	"github.com/tss-calculator/release/pkg/release/infrastructure/remote"
	"github.com/tss-calculator/release/pkg/release/infrastructure/scm"
	"github.com/tss-calculator/release/pkg/release/infrastructure/secret"
	"github.com/tss-calculator/release/pkg/release/infrastructure/signing"
	"github.com/tss-calculator/release/pkg/release/infrastructure/staging"
)

const remoteRequestTimeout = 5 * time.Minute

var dependencyContainer = struct{}{}

type Container interface {
	Config() model.Release
	Release() service.ReleaseOrchestrator
	Close() error
}

func NewDependencyContainer(
	logger applogger.Logger,
	releaseConfig model.Release,
) (Container, error) {
	sourceControl, err := scm.NewGitRepository(
		releaseConfig.ProjectDir,
		releaseConfig.VersionFile,
		releaseConfig.Git,
		releaseConfig.JournalPath,
	)
	if err != nil {
		return nil, err
	}
	db, err := journal.Open(releaseConfig.JournalPath)
	if err != nil {
		return nil, err
	}

	runner := command.NewCommandRunner(logger)
	artifactStore := staging.NewArtifactStore()
	nestedBuildRunner := builder.NewNestedBuildRunner(logger, releaseConfig.ProjectDir, releaseConfig.Build, runner)
	signingStrategySelector := service.NewSigningStrategySelector(releaseConfig.Signing, command.NewToolLocator())
	secrets := secret.NewSecretSource(releaseConfig.Signing.KeyringService, logger)
	artifactSigner := signing.NewArtifactSigner(logger, runner)
	remoteRepository := remote.NewRepositoryClient(logger, &http.Client{Timeout: remoteRequestTimeout})
	deploymentDispatcher := service.NewDeploymentDispatcher(releaseConfig.Repositories, logger, artifactStore, remoteRepository)
	releaseService := service.NewReleaseOrchestrator(
		releaseConfig,
		logger,
		sourceControl,
		nestedBuildRunner,
		artifactStore,
		signingStrategySelector,
		secrets,
		artifactSigner,
		deploymentDispatcher,
		journal.NewSQLiteJournal(db),
	)

	return &container{
		config:  releaseConfig,
		release: releaseService,
		db:      db,
	}, nil
}

type container struct {
	config  model.Release
	release service.ReleaseOrchestrator
	db      *sql.DB
}

func (c *container) Config() model.Release {
	return c.config
}

func (c *container) Release() service.ReleaseOrchestrator {
	return c.release
}

func (c *container) Close() error {
	return c.db.Close()
}

func ContainerFromContext(ctx context.Context) (Container, error) {
	v := ctx.Value(dependencyContainer)
	if c, ok := v.(Container); ok {
		return c, nil
	}
	return nil, errors.New("dependency container not found")
}

func ContainerToContext(ctx context.Context, c Container) context.Context {
	return context.WithValue(ctx, dependencyContainer, c)
}
