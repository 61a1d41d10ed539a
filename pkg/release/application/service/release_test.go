package service

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

type releaseHarness struct {
	config  model.Release
	source  *fakeSourceControl
	build   *fakeBuildRunner
	store   fakeArtifactStore
	secrets fakeSecrets
	tools   fakeToolLocator
	signer  *fakeSigner
	remote  *fakeRemote
	journal *fakeJournal
}

func newReleaseHarness(version string) *releaseHarness {
	source := &fakeSourceControl{branch: "master", clean: true, versionText: version + "\n"}
	return &releaseHarness{
		config: model.Release{
			ProjectDir:     "/project",
			OutputDir:      outputDir,
			RequiredBranch: "master",
			Modules:        []model.ModuleName{"core", "server"},
			Build:          model.Build{Executable: "./gradlew", Tasks: []string{"build", "publish"}, ExcludedTasks: []string{"release"}},
			Repositories:   repositoriesConfig(),
			Signing:        signingConfig(),
			Git: model.Git{
				RequireCleanWorkingTree:  true,
				TagTemplate:              "v{{.Version}}",
				ReleaseCommitMessage:     "[release] pre tag commit: '{{.Version}}'",
				NextVersionCommitMessage: "[release] new version commit: '{{.Version}}'",
			},
		},
		source:  source,
		build:   &fakeBuildRunner{source: source},
		store:   stagedStore(outputDir, "core", "server"),
		secrets: fakeSecrets{"SIGNING_KEY": "armored key", "SIGNING_PASSWORD": "passphrase"},
		tools:   gpgAvailable,
		signer:  &fakeSigner{},
		remote:  &fakeRemote{},
		journal: &fakeJournal{},
	}
}

func (h *releaseHarness) orchestrator() ReleaseOrchestrator {
	logger := testLogger()
	return NewReleaseOrchestrator(
		h.config,
		logger,
		h.source,
		h.build,
		h.store,
		NewSigningStrategySelector(h.config.Signing, h.tools),
		h.secrets,
		h.signer,
		NewDeploymentDispatcher(h.config.Repositories, logger, h.store, h.remote),
		h.journal,
	)
}

func assertRunError(t *testing.T, err error, state model.RunState, cause error) {
	t.Helper()
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if runErr.State != state {
		t.Fatalf("expected failure before %v, got %v", state, runErr.State)
	}
	if cause != nil && !errors.Is(err, cause) {
		t.Fatalf("expected cause %v, got %v", cause, err)
	}
}

func TestReleaseSnapshotVersion(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")

	run, err := h.orchestrator().Release(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if run.ReleaseVersion.String() != "1.2.0" || run.NextVersion.String() != "1.2.1-SNAPSHOT" {
		t.Fatalf("unexpected versions %v / %v", run.ReleaseVersion, run.NextVersion)
	}
	if run.TargetKind != model.RepositoryKindRelease {
		t.Fatalf("expected release target, got %v", run.TargetKind)
	}
	if run.State != model.RunStateDone || len(run.History) != 7 {
		t.Fatalf("unexpected final state %v with %d transitions", run.State, len(run.History))
	}
	if h.build.calls != 1 || h.build.seenVersion != "1.2.0" {
		t.Fatalf("nested build saw %q in %d calls", h.build.seenVersion, h.build.calls)
	}
	if len(h.signer.signed) != 4 {
		t.Fatalf("expected four signed artifacts, got %v", h.signer.signed)
	}
	if calls := h.remote.callLog(); calls != "upload,close,status,release" {
		t.Fatalf("unexpected remote calls %v", calls)
	}
	expectedCommits := []string{
		"[release] pre tag commit: '1.2.0'",
		"[release] new version commit: '1.2.1-SNAPSHOT'",
	}
	if !reflect.DeepEqual(h.source.commits, expectedCommits) {
		t.Fatalf("unexpected commits %v", h.source.commits)
	}
	if !reflect.DeepEqual(h.source.tags, []string{"v1.2.0"}) {
		t.Fatalf("unexpected tags %v", h.source.tags)
	}
	if h.source.versionText != "1.2.1-SNAPSHOT" {
		t.Fatalf("expected next version recorded, got %q", h.source.versionText)
	}
	if len(h.source.pushed) != 0 {
		t.Fatal("push is disabled")
	}
	if len(h.journal.started) != 1 || len(h.journal.transitions) != 7 || h.journal.finishErrs[0] != nil {
		t.Fatalf("unexpected journal %+v", h.journal)
	}
}

func TestReleaseSignsOnlyArtifacts(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	dir := filepath.Join(outputDir, "core", StagingDirName)
	for _, extra := range []string{".jar.md5", ".jar.sha1", ".jar.sha256", ".jar.sha512", ".jar.asc"} {
		h.store[dir] = append(h.store[dir], filepath.Join(dir, "core"+extra))
	}

	_, err := h.orchestrator().Release(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	expected := []string{
		filepath.Join(dir, "core.jar"),
		filepath.Join(dir, "core.pom"),
		filepath.Join(outputDir, "server", StagingDirName, "server.jar"),
		filepath.Join(outputDir, "server", StagingDirName, "server.pom"),
	}
	if !reflect.DeepEqual(h.signer.signed, expected) {
		t.Fatalf("signed %v, expected %v", h.signer.signed, expected)
	}
}

func TestReleaseBranchMismatch(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	h.source.branch = "feature/x"

	run, err := h.orchestrator().Release(context.Background(), RunOptions{})
	assertRunError(t, err, model.RunStateBranchVerified, ErrBranchMismatch)
	if run.State != model.RunStateFailed {
		t.Fatalf("expected failed state, got %v", run.State)
	}
	if h.build.calls != 0 || len(h.signer.signed) != 0 || h.remote.callLog() != "" {
		t.Fatal("nothing may run after a branch mismatch")
	}
	if len(h.source.writes) != 0 || len(h.source.commits) != 0 {
		t.Fatal("version record must stay untouched")
	}
	if !errors.Is(h.journal.finishErrs[0], ErrBranchMismatch) {
		t.Fatalf("journal must record the failure, got %v", h.journal.finishErrs[0])
	}
}

func TestReleaseDirtyWorkingTree(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	h.source.clean = false

	_, err := h.orchestrator().Release(context.Background(), RunOptions{})
	assertRunError(t, err, model.RunStateBranchVerified, ErrWorkingTreeDirty)
	if h.build.calls != 0 {
		t.Fatal("nested build must not run on a dirty tree")
	}
}

func TestReleaseNestedBuildFailureRestoresVersion(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	h.build.status = 1

	_, err := h.orchestrator().Release(context.Background(), RunOptions{})
	assertRunError(t, err, model.RunStateBuilt, ErrNestedBuildFailed)
	if h.source.versionText != "1.2.0-SNAPSHOT" {
		t.Fatalf("expected version restored, got %q", h.source.versionText)
	}
	if h.remote.callLog() != "" {
		t.Fatal("no remote calls after a failed build")
	}
}

func TestReleaseStagingIncomplete(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	h.store = stagedStore(outputDir, "core")

	_, err := h.orchestrator().Release(context.Background(), RunOptions{})
	assertRunError(t, err, model.RunStateStaged, ErrStagingIncomplete)
	if len(h.signer.signed) != 0 || h.remote.callLog() != "" {
		t.Fatal("nothing may be signed or uploaded with incomplete staging")
	}
}

func TestReleaseCredentialUnavailableBeforeRemoteCalls(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	h.secrets = fakeSecrets{}
	h.tools = fakeToolLocator{}

	_, err := h.orchestrator().Release(context.Background(), RunOptions{})
	assertRunError(t, err, model.RunStateSigned, ErrCredentialUnavailable)
	if h.remote.callLog() != "" {
		t.Fatal("signing failure must not open a remote repository")
	}
	if h.source.versionText != "1.2.0-SNAPSHOT" {
		t.Fatalf("expected version restored, got %q", h.source.versionText)
	}
}

func TestReleaseDeployFailureRestoresVersion(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	h.remote.uploadErr = errors.New("connection reset")

	_, err := h.orchestrator().Release(context.Background(), RunOptions{})
	assertRunError(t, err, model.RunStateDeployed, nil)
	var deployErr *DeployError
	if !errors.As(err, &deployErr) || deployErr.Phase != DeployPhaseUpload {
		t.Fatalf("expected upload DeployError, got %v", err)
	}
	if !reflect.DeepEqual(h.source.writes, []string{"1.2.0", "1.2.0-SNAPSHOT"}) {
		t.Fatalf("unexpected version writes %v", h.source.writes)
	}
	if len(h.source.commits) != 0 || len(h.source.tags) != 0 {
		t.Fatal("nothing may be committed after a failed deploy")
	}
}

func TestReleaseSnapshotCloseTimeoutSkipsBump(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	h.config.Repositories.PollTimeout = 20 * time.Millisecond
	h.remote.statuses = []model.RepositoryState{model.RepositoryStateOpen}

	run, err := h.orchestrator().Release(context.Background(), RunOptions{Snapshot: true})
	assertRunError(t, err, model.RunStateDeployed, nil)
	var deployErr *DeployError
	if !errors.As(err, &deployErr) || deployErr.Phase != DeployPhaseCloseTimeout {
		t.Fatalf("expected close timeout, got %v", err)
	}
	if run.TargetKind != model.RepositoryKindSnapshot {
		t.Fatalf("expected snapshot target, got %v", run.TargetKind)
	}
	if len(h.source.writes) != 0 || len(h.source.commits) != 0 || len(h.source.tags) != 0 {
		t.Fatal("version must not be bumped")
	}
}

func TestReleaseSnapshotPublish(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	h.remote.statuses = []model.RepositoryState{model.RepositoryStateClosed}

	run, err := h.orchestrator().Release(context.Background(), RunOptions{Snapshot: true})
	if err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if run.State != model.RunStateDone || run.ReleaseVersion.String() != "1.2.0-SNAPSHOT" {
		t.Fatalf("unexpected run %+v", run)
	}
	if calls := h.remote.callLog(); calls != "upload,close,status,release" {
		t.Fatalf("unexpected remote calls %v", calls)
	}
	if len(h.source.writes) != 0 || len(h.source.commits) != 0 {
		t.Fatal("snapshot publish leaves the version record alone")
	}
}

func TestReleaseSnapshotModeRequiresSnapshotVersion(t *testing.T) {
	h := newReleaseHarness("1.2.0")

	_, err := h.orchestrator().Release(context.Background(), RunOptions{Snapshot: true})
	assertRunError(t, err, model.RunStateBranchVerified, nil)
}

func TestReleaseVersionPersistFailed(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	h.source.commitErr = errors.New("index locked")

	run, err := h.orchestrator().Release(context.Background(), RunOptions{})
	assertRunError(t, err, model.RunStateVersionBumped, ErrVersionPersistFailed)
	if run.State != model.RunStateFailed {
		t.Fatalf("expected failed state, got %v", run.State)
	}
	if calls := h.remote.callLog(); calls != "upload,close,status,release" {
		t.Fatalf("artifacts must have been published, got %v", calls)
	}
	if h.source.versionText != "1.2.0" {
		t.Fatalf("published version must not be rolled back, got %q", h.source.versionText)
	}
}

func TestReleasePushesTag(t *testing.T) {
	h := newReleaseHarness("2.0.0-SNAPSHOT")
	h.config.Git.Push = true

	_, err := h.orchestrator().Release(context.Background(), RunOptions{SkipBuild: true})
	if err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if h.build.calls != 0 {
		t.Fatal("build was skipped")
	}
	if !reflect.DeepEqual(h.source.pushed, []string{"v2.0.0"}) {
		t.Fatalf("unexpected pushes %v", h.source.pushed)
	}
}

func TestPlan(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")

	run, err := h.orchestrator().Plan(context.Background(), false)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if run.ReleaseVersion.String() != "1.2.0" || run.Credential.Mode() != model.SigningModeInMemory {
		t.Fatalf("unexpected plan %+v", run)
	}
	if len(run.Modules) != 2 {
		t.Fatalf("unexpected modules %+v", run.Modules)
	}
	if h.build.calls != 0 || h.remote.callLog() != "" || len(h.source.writes) != 0 || len(h.journal.started) != 0 {
		t.Fatal("plan must not have side effects")
	}

	h.source.branch = "develop"
	_, err = h.orchestrator().Plan(context.Background(), false)
	if !errors.Is(err, ErrBranchMismatch) {
		t.Fatalf("expected ErrBranchMismatch, got %v", err)
	}
}

func TestVersions(t *testing.T) {
	h := newReleaseHarness("1.2.0-SNAPSHOT")
	h.source.branch = "develop"

	run, err := h.orchestrator().Versions(false)
	if err != nil {
		t.Fatalf("Versions() error: %v", err)
	}
	if run.CurrentVersion.String() != "1.2.0-SNAPSHOT" || run.NextVersion.String() != "1.2.1-SNAPSHOT" {
		t.Fatalf("unexpected versions %+v", run)
	}
}
