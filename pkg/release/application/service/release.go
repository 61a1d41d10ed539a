package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

type SourceControl interface {
	CurrentBranch() (string, error)
	IsClean() (bool, error)
	ReadVersion() (string, error)
	WriteVersion(version string) error
	Commit(message string) error
	Tag(name, message string) error
	Push(ctx context.Context, tagName string) error
}

type ExitStatus int

type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type NestedBuildRunner interface {
	// Run blocks until the nested build exits. A nonzero exit is reported as ErrNestedBuildFailed.
	Run(ctx context.Context, tasks []string, excludedTasks []string, streams Streams) (ExitStatus, error)
}

type Journal interface {
	Start(ctx context.Context, run model.ReleaseRun) error
	RecordTransition(ctx context.Context, runID model.RunID, transition model.Transition) error
	Finish(ctx context.Context, run model.ReleaseRun, runErr error) error
	List(ctx context.Context, limit int) ([]model.RunRecord, error)
}

type RunOptions struct {
	// Snapshot publishes the current snapshot version instead of cutting a release.
	Snapshot  bool
	SkipBuild bool
	Streams   Streams
}

type ReleaseOrchestrator interface {
	// Plan runs the precondition checks and resolves the run without building, signing or deploying.
	Plan(ctx context.Context, snapshot bool) (model.ReleaseRun, error)
	// Versions resolves the versions and modules of a run without any precondition check.
	Versions(snapshot bool) (model.ReleaseRun, error)
	Release(ctx context.Context, options RunOptions) (model.ReleaseRun, error)
	History(ctx context.Context, limit int) ([]model.RunRecord, error)
}

func NewReleaseOrchestrator(
	config model.Release,
	logger applogger.Logger,
	sourceControl SourceControl,
	nestedBuildRunner NestedBuildRunner,
	artifactStore ArtifactStore,
	signingStrategySelector SigningStrategySelector,
	secrets SecretSource,
	artifactSigner ArtifactSigner,
	deploymentDispatcher DeploymentDispatcher,
	journal Journal,
) ReleaseOrchestrator {
	return &releaseOrchestrator{
		config:                  config,
		logger:                  logger,
		sourceControl:           sourceControl,
		nestedBuildRunner:       nestedBuildRunner,
		artifactStore:           artifactStore,
		signingStrategySelector: signingStrategySelector,
		secrets:                 secrets,
		artifactSigner:          artifactSigner,
		deploymentDispatcher:    deploymentDispatcher,
		journal:                 journal,
	}
}

type releaseOrchestrator struct {
	config model.Release

	logger                  applogger.Logger
	sourceControl           SourceControl
	nestedBuildRunner       NestedBuildRunner
	artifactStore           ArtifactStore
	signingStrategySelector SigningStrategySelector
	secrets                 SecretSource
	artifactSigner          ArtifactSigner
	deploymentDispatcher    DeploymentDispatcher
	journal                 Journal
}

// releaseAttempt carries the mutable bookkeeping of one Release call.
type releaseAttempt struct {
	run            model.ReleaseRun
	recordedText   string
	versionWritten bool
}

func (service releaseOrchestrator) Plan(ctx context.Context, snapshot bool) (model.ReleaseRun, error) {
	run := model.ReleaseRun{
		RequiredBranch: service.config.RequiredBranch,
		State:          model.RunStateIdle,
	}
	_, err := service.verify(&run, snapshot)
	if err != nil {
		return run, err
	}
	run.Credential, err = service.signingStrategySelector.Select(service.secrets)
	return run, err
}

func (service releaseOrchestrator) Versions(snapshot bool) (model.ReleaseRun, error) {
	run := model.ReleaseRun{
		RequiredBranch: service.config.RequiredBranch,
		State:          model.RunStateIdle,
	}
	_, err := service.resolveVersions(&run, snapshot)
	return run, err
}

func (service releaseOrchestrator) Release(ctx context.Context, options RunOptions) (model.ReleaseRun, error) {
	attempt := &releaseAttempt{run: model.ReleaseRun{
		ID:             uuid.NewString(),
		RequiredBranch: service.config.RequiredBranch,
		State:          model.RunStateIdle,
		StartedAt:      time.Now().UTC(),
	}}
	if err := service.journal.Start(ctx, attempt.run); err != nil {
		service.logger.Error(err, fmt.Sprintf("failed to journal start of run %v", attempt.run.ID))
	}
	service.logger.Info(fmt.Sprintf("start release run %v on branch \"%v\"...", attempt.run.ID, service.config.RequiredBranch))
	start := time.Now()

	steps := []struct {
		state model.RunState
		do    func() error
	}{
		{model.RunStateBranchVerified, func() error { return service.verifyStep(attempt, options) }},
		{model.RunStateBuilt, func() error { return service.buildStep(ctx, attempt, options) }},
		{model.RunStateStaged, func() error { return service.stageStep(attempt) }},
		{model.RunStateSigned, func() error { return service.signStep(ctx, attempt) }},
		{model.RunStateDeployed, func() error { return service.deployStep(ctx, attempt) }},
		{model.RunStateVersionBumped, func() error { return service.bumpStep(ctx, attempt) }},
		{model.RunStateDone, func() error { return nil }},
	}
	for _, step := range steps {
		err := step.do()
		if err != nil {
			return attempt.run, service.fail(ctx, attempt, step.state, err)
		}
		service.transition(ctx, &attempt.run, step.state)
	}
	if err := service.journal.Finish(ctx, attempt.run, nil); err != nil {
		service.logger.Error(err, fmt.Sprintf("failed to journal end of run %v", attempt.run.ID))
	}
	service.logger.Info(fmt.Sprintf("released %v in %v", attempt.run.ReleaseVersion, time.Since(start).String()))
	return attempt.run, nil
}

func (service releaseOrchestrator) History(ctx context.Context, limit int) ([]model.RunRecord, error) {
	return service.journal.List(ctx, limit)
}

func (service releaseOrchestrator) verifyStep(attempt *releaseAttempt, options RunOptions) error {
	recordedText, err := service.verify(&attempt.run, options.Snapshot)
	attempt.recordedText = recordedText
	return err
}

// verify gates the run on branch and working tree, then fills in the versions and modules.
func (service releaseOrchestrator) verify(run *model.ReleaseRun, snapshot bool) (string, error) {
	branch, err := service.sourceControl.CurrentBranch()
	if err != nil {
		return "", err
	}
	err = VerifyBranch(branch, service.config.RequiredBranch)
	if err != nil {
		return "", err
	}
	if service.config.Git.RequireCleanWorkingTree {
		clean, err := service.sourceControl.IsClean()
		if err != nil {
			return "", err
		}
		if !clean {
			return "", ErrWorkingTreeDirty
		}
	}
	return service.resolveVersions(run, snapshot)
}

// resolveVersions reads the recorded version and derives the release and next versions from it.
func (service releaseOrchestrator) resolveVersions(run *model.ReleaseRun, snapshot bool) (string, error) {
	recordedText, err := service.sourceControl.ReadVersion()
	if err != nil {
		return "", err
	}
	current, err := model.ParseVersion(recordedText)
	if err != nil {
		return "", err
	}
	run.CurrentVersion = current
	if snapshot {
		if !current.Snapshot {
			return "", errors.Errorf("snapshot publish requires a snapshot version, got %v", current)
		}
		run.ReleaseVersion = current
		run.NextVersion = current
	} else {
		run.ReleaseVersion = ReleaseVersion(current)
		run.NextVersion = NextVersion(run.ReleaseVersion)
	}
	run.TargetKind = run.Target()
	run.Modules = ResolveModules(service.config.Modules, service.config.OutputDir)
	return recordedText, nil
}

// buildStep records the release version before spawning the nested build so the child process sees it.
func (service releaseOrchestrator) buildStep(ctx context.Context, attempt *releaseAttempt, options RunOptions) error {
	releaseText := attempt.run.ReleaseVersion.String()
	if releaseText != strings.TrimSpace(attempt.recordedText) {
		err := service.sourceControl.WriteVersion(releaseText)
		if err != nil {
			return err
		}
		attempt.versionWritten = true
	}
	if options.SkipBuild {
		service.logger.Info("skip nested build")
		return nil
	}
	service.logger.Info(fmt.Sprintf("start nested build of %v...", releaseText))
	start := time.Now()
	defer func() {
		service.logger.Info(fmt.Sprintf("done in %v", time.Since(start).String()))
	}()
	_, err := service.nestedBuildRunner.Run(ctx, service.config.Build.Tasks, service.config.Build.ExcludedTasks, options.Streams)
	return err
}

func (service releaseOrchestrator) stageStep(attempt *releaseAttempt) error {
	_, err := collectStagedArtifacts(service.artifactStore, attempt.run.Modules)
	return err
}

// signStep runs before any remote call so a signing failure never opens a staging repository.
func (service releaseOrchestrator) signStep(ctx context.Context, attempt *releaseAttempt) error {
	credential, err := service.signingStrategySelector.Select(service.secrets)
	if err != nil {
		return err
	}
	attempt.run.Credential = credential
	service.logger.Info(fmt.Sprintf("sign artifacts with %v", credential))
	artifacts, err := collectStagedArtifacts(service.artifactStore, attempt.run.Modules)
	if err != nil {
		return err
	}
	for _, module := range attempt.run.Modules {
		for _, artifact := range artifacts[module.Name] {
			if IsSignature(artifact) || IsChecksum(artifact) {
				continue
			}
			signature, err := service.artifactSigner.Sign(ctx, artifact, credential)
			if err != nil {
				return errors.Wrapf(err, "failed to sign %v", artifact)
			}
			service.logger.Debug(signature)
		}
	}
	return nil
}

func (service releaseOrchestrator) deployStep(ctx context.Context, attempt *releaseAttempt) error {
	err := service.deploymentDispatcher.Deploy(ctx, attempt.run)
	if err != nil {
		return err
	}
	attempt.versionWritten = false
	return nil
}

func (service releaseOrchestrator) bumpStep(ctx context.Context, attempt *releaseAttempt) error {
	err := service.persistVersions(ctx, attempt)
	if err != nil {
		err = errors.Wrap(ErrVersionPersistFailed, err.Error())
		service.logger.Error(err, fmt.Sprintf(
			"MANUAL INTERVENTION REQUIRED: %v was published but version state was not recorded",
			attempt.run.ReleaseVersion,
		))
	}
	return err
}

func (service releaseOrchestrator) persistVersions(ctx context.Context, attempt *releaseAttempt) error {
	run := attempt.run
	if run.Target() == model.RepositoryKindSnapshot {
		service.logger.Info(fmt.Sprintf("snapshot %v published, version unchanged", run.ReleaseVersion))
		return nil
	}
	gitConfig := service.config.Git
	if run.ReleaseVersion.String() != strings.TrimSpace(attempt.recordedText) {
		message, err := renderVersionTemplate(gitConfig.ReleaseCommitMessage, run.ReleaseVersion)
		if err != nil {
			return err
		}
		err = service.sourceControl.Commit(message)
		if err != nil {
			return err
		}
	}
	tagName, err := renderVersionTemplate(gitConfig.TagTemplate, run.ReleaseVersion)
	if err != nil {
		return err
	}
	err = service.sourceControl.Tag(tagName, fmt.Sprintf("release %v", run.ReleaseVersion))
	if err != nil {
		return err
	}
	err = service.sourceControl.WriteVersion(run.NextVersion.String())
	if err != nil {
		return err
	}
	message, err := renderVersionTemplate(gitConfig.NextVersionCommitMessage, run.NextVersion)
	if err != nil {
		return err
	}
	err = service.sourceControl.Commit(message)
	if err != nil {
		return err
	}
	service.logger.Info(fmt.Sprintf("tagged %v, next version %v", tagName, run.NextVersion))
	if gitConfig.Push {
		return service.sourceControl.Push(ctx, tagName)
	}
	return nil
}

func (service releaseOrchestrator) transition(ctx context.Context, run *model.ReleaseRun, next model.RunState) {
	if !run.State.CanTransitionTo(next) {
		panic(fmt.Sprintf("invalid release run transition %v -> %v", run.State, next))
	}
	transition := model.Transition{From: run.State, To: next, At: time.Now().UTC()}
	run.History = append(run.History, transition)
	run.State = next
	service.logger.Debug(fmt.Sprintf("run %v: %v -> %v", run.ID, transition.From, transition.To))
	if run.ID == "" {
		return
	}
	if err := service.journal.RecordTransition(ctx, run.ID, transition); err != nil {
		service.logger.Error(err, fmt.Sprintf("failed to journal transition of run %v", run.ID))
	}
}

func (service releaseOrchestrator) fail(ctx context.Context, attempt *releaseAttempt, target model.RunState, err error) error {
	if attempt.versionWritten {
		restoreErr := service.sourceControl.WriteVersion(strings.TrimSpace(attempt.recordedText))
		if restoreErr != nil {
			service.logger.Error(restoreErr, "failed to restore recorded version")
		}
	}
	service.transition(ctx, &attempt.run, model.RunStateFailed)
	runErr := &RunError{State: target, Err: err}
	if journalErr := service.journal.Finish(ctx, attempt.run, runErr); journalErr != nil {
		service.logger.Error(journalErr, fmt.Sprintf("failed to journal end of run %v", attempt.run.ID))
	}
	service.logger.Error(err, fmt.Sprintf("release run %v failed before reaching %v", attempt.run.ID, target))
	return runErr
}
