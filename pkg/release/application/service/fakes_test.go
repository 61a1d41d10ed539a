package service

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"
	"github.com/tss-calculator/go-lib/pkg/infrastructure/logger"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

func testLogger() applogger.Logger {
	return logger.NewTextLogger()
}

type fakeSourceControl struct {
	branch      string
	clean       bool
	versionText string
	writes      []string
	commits     []string
	tags        []string
	pushed      []string
	commitErr   error
}

func (f *fakeSourceControl) CurrentBranch() (string, error) { return f.branch, nil }

func (f *fakeSourceControl) IsClean() (bool, error) { return f.clean, nil }

func (f *fakeSourceControl) ReadVersion() (string, error) { return f.versionText, nil }

func (f *fakeSourceControl) WriteVersion(version string) error {
	f.writes = append(f.writes, version)
	f.versionText = version
	return nil
}

func (f *fakeSourceControl) Commit(message string) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, message)
	return nil
}

func (f *fakeSourceControl) Tag(name, _ string) error {
	f.tags = append(f.tags, name)
	return nil
}

func (f *fakeSourceControl) Push(_ context.Context, tagName string) error {
	f.pushed = append(f.pushed, tagName)
	return nil
}

type fakeBuildRunner struct {
	calls       int
	seenVersion string
	source      *fakeSourceControl
	status      ExitStatus
}

func (f *fakeBuildRunner) Run(_ context.Context, _ []string, _ []string, _ Streams) (ExitStatus, error) {
	f.calls++
	if f.source != nil {
		f.seenVersion = f.source.versionText
	}
	if f.status != 0 {
		return f.status, ErrNestedBuildFailed
	}
	return 0, nil
}

// fakeArtifactStore serves files keyed by directory; a dir absent from the map does not exist.
type fakeArtifactStore map[string][]string

func (f fakeArtifactStore) ListArtifacts(dir string) ([]string, error) {
	files, ok := f[dir]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: dir, Err: fs.ErrNotExist}
	}
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	return sorted, nil
}

func stagedStore(baseDir string, modules ...string) fakeArtifactStore {
	store := fakeArtifactStore{}
	for _, module := range modules {
		dir := filepath.Join(baseDir, module, StagingDirName)
		store[dir] = []string{
			filepath.Join(dir, module+".jar"),
			filepath.Join(dir, module+".pom"),
		}
	}
	return store
}

type fakeSecrets map[string]string

func (f fakeSecrets) Lookup(name string) (string, bool) {
	value, ok := f[name]
	return value, ok
}

type fakeToolLocator struct {
	available map[string]string
}

func (f fakeToolLocator) LookPath(executable string) (string, error) {
	if path, ok := f.available[executable]; ok {
		return path, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

type fakeSigner struct {
	signed []string
	err    error
}

func (f *fakeSigner) Sign(_ context.Context, artifactPath string, _ model.SigningCredential) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.signed = append(f.signed, artifactPath)
	return artifactPath + SignatureExtension, nil
}

// fakeRemote replays statuses in order and repeats the last one. Without statuses it reports closed.
type fakeRemote struct {
	mu         sync.Mutex
	calls      []string
	uploaded   []model.StagingRepository
	statuses   []model.RepositoryState
	uploadErr  error
	releaseErr error
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) Upload(_ context.Context, repository model.StagingRepository) (model.RemoteArtifactID, error) {
	f.record("upload")
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploaded = append(f.uploaded, repository)
	return "repo-1", nil
}

func (f *fakeRemote) Close(context.Context, model.StagingRepository, model.RemoteArtifactID) error {
	f.record("close")
	return nil
}

func (f *fakeRemote) Status(context.Context, model.StagingRepository, model.RemoteArtifactID) (model.RepositoryState, error) {
	f.record("status")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return model.RepositoryStateClosed, nil
	}
	state := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return state, nil
}

func (f *fakeRemote) Release(context.Context, model.StagingRepository, model.RemoteArtifactID) error {
	f.record("release")
	return f.releaseErr
}

func (f *fakeRemote) callLog() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.calls, ",")
}

type fakeJournal struct {
	started     []model.ReleaseRun
	transitions []model.Transition
	finished    []model.ReleaseRun
	finishErrs  []error
}

func (f *fakeJournal) Start(_ context.Context, run model.ReleaseRun) error {
	f.started = append(f.started, run)
	return nil
}

func (f *fakeJournal) RecordTransition(_ context.Context, _ model.RunID, transition model.Transition) error {
	f.transitions = append(f.transitions, transition)
	return nil
}

func (f *fakeJournal) Finish(_ context.Context, run model.ReleaseRun, runErr error) error {
	f.finished = append(f.finished, run)
	f.finishErrs = append(f.finishErrs, runErr)
	return nil
}

func (f *fakeJournal) List(context.Context, int) ([]model.RunRecord, error) {
	return nil, nil
}
