package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

type RemoteRepository interface {
	Upload(ctx context.Context, repository model.StagingRepository) (model.RemoteArtifactID, error)
	Close(ctx context.Context, repository model.StagingRepository, id model.RemoteArtifactID) error
	Status(ctx context.Context, repository model.StagingRepository, id model.RemoteArtifactID) (model.RepositoryState, error)
	Release(ctx context.Context, repository model.StagingRepository, id model.RemoteArtifactID) error
}

type DeploymentDispatcher interface {
	Deploy(ctx context.Context, run model.ReleaseRun) error
}

func NewDeploymentDispatcher(
	config model.Repositories,
	logger applogger.Logger,
	artifactStore ArtifactStore,
	remoteRepository RemoteRepository,
) DeploymentDispatcher {
	return &deploymentDispatcher{
		config:           config,
		logger:           logger,
		artifactStore:    artifactStore,
		remoteRepository: remoteRepository,
	}
}

type deploymentDispatcher struct {
	config model.Repositories

	logger           applogger.Logger
	artifactStore    ArtifactStore
	remoteRepository RemoteRepository
}

func (dispatcher deploymentDispatcher) Deploy(ctx context.Context, run model.ReleaseRun) error {
	_, err := collectStagedArtifacts(dispatcher.artifactStore, run.Modules)
	if err != nil {
		return err
	}
	kind := run.Target()
	remote := dispatcher.config.Remote(kind)
	sourcePaths := make([]string, 0, len(run.Modules))
	for _, module := range run.Modules {
		sourcePaths = append(sourcePaths, module.StagingDir)
	}
	repository := model.StagingRepository{
		Kind:        kind,
		EndpointURL: remote.URL,
		Credentials: remote.Credentials,
		SourcePaths: sourcePaths,
	}
	if kind == model.RepositoryKindSnapshot {
		return dispatcher.deploySnapshot(ctx, repository)
	}
	return dispatcher.deployRelease(ctx, repository, remote.Activation)
}

func (dispatcher deploymentDispatcher) deployRelease(ctx context.Context, repository model.StagingRepository, activation model.Activation) error {
	id, err := dispatcher.stage(ctx, repository)
	if err != nil {
		return err
	}
	if activation != model.ActivationRelease {
		dispatcher.logger.Info(fmt.Sprintf("staging repository \"%v\" left closed, promote it manually to publish", id))
		return nil
	}
	return dispatcher.release(ctx, repository, id)
}

func (dispatcher deploymentDispatcher) deploySnapshot(ctx context.Context, repository model.StagingRepository) error {
	id, err := dispatcher.stage(ctx, repository)
	if err != nil {
		return err
	}
	return dispatcher.release(ctx, repository, id)
}

// stage uploads and closes the staging repository; only content the remote has confirmed closed is finalized.
func (dispatcher deploymentDispatcher) stage(ctx context.Context, repository model.StagingRepository) (model.RemoteArtifactID, error) {
	id, err := dispatcher.upload(ctx, repository)
	if err != nil {
		return "", err
	}
	dispatcher.logger.Info(fmt.Sprintf("close staging repository \"%v\"...", id))
	err = dispatcher.remoteRepository.Close(ctx, repository, id)
	if err != nil {
		return "", &DeployError{Phase: DeployPhaseClose, Cause: err}
	}
	err = dispatcher.awaitClosed(ctx, repository, id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (dispatcher deploymentDispatcher) upload(ctx context.Context, repository model.StagingRepository) (model.RemoteArtifactID, error) {
	dispatcher.logger.Info(fmt.Sprintf("start upload to %v repository %v...", repository.Kind, repository.EndpointURL))
	start := time.Now()
	id, err := dispatcher.remoteRepository.Upload(ctx, repository)
	if err != nil {
		return "", &DeployError{Phase: DeployPhaseUpload, Cause: err}
	}
	dispatcher.logger.Info(fmt.Sprintf("uploaded staging repository \"%v\" in %v", id, time.Since(start).String()))
	return id, nil
}

func (dispatcher deploymentDispatcher) release(ctx context.Context, repository model.StagingRepository, id model.RemoteArtifactID) error {
	dispatcher.logger.Info(fmt.Sprintf("release staging repository \"%v\"...", id))
	err := dispatcher.remoteRepository.Release(ctx, repository, id)
	if err != nil {
		return &DeployError{Phase: DeployPhaseRelease, Cause: err}
	}
	return nil
}

func (dispatcher deploymentDispatcher) awaitClosed(ctx context.Context, repository model.StagingRepository, id model.RemoteArtifactID) error {
	pollCtx, cancel := context.WithTimeout(ctx, dispatcher.config.PollTimeout)
	defer cancel()
	ticker := time.NewTicker(dispatcher.config.PollInterval)
	defer ticker.Stop()
	timeout := &DeployError{
		Phase: DeployPhaseCloseTimeout,
		Cause: errors.Errorf("staging repository %v not closed within %v", id, dispatcher.config.PollTimeout),
	}
	for {
		state, err := dispatcher.remoteRepository.Status(pollCtx, repository, id)
		if err != nil {
			if ctx.Err() == nil && pollCtx.Err() != nil {
				return timeout
			}
			return &DeployError{Phase: DeployPhaseClose, Cause: err}
		}
		dispatcher.logger.Debug(fmt.Sprintf("staging repository \"%v\" is %v", id, state))
		switch state {
		case model.RepositoryStateClosed, model.RepositoryStateReleased:
			return nil
		case model.RepositoryStateFailed:
			return &DeployError{Phase: DeployPhaseClose, Cause: errors.Errorf("remote rejected close of staging repository %v", id)}
		}
		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return &DeployError{Phase: DeployPhaseClose, Cause: ctx.Err()}
			}
			return timeout
		case <-ticker.C:
		}
	}
}
