package scm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"

	"github.com/tss-calculator/release/pkg/release/application/model"
	"github.com/tss-calculator/release/pkg/release/application/service"
)

// NewGitRepository opens the repository containing projectDir. Changes below ignoredPaths
// do not make the worktree dirty.
func NewGitRepository(projectDir, versionFile string, config model.Git, ignoredPaths ...string) (service.SourceControl, error) {
	repository, err := git.PlainOpenWithOptions(projectDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open git repository at %v", projectDir)
	}
	worktree, err := repository.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open git worktree")
	}
	versionPath := versionFile
	if !filepath.IsAbs(versionPath) {
		versionPath = filepath.Join(projectDir, versionFile)
	}
	versionPath, err = filepath.Abs(versionPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve version file %v", versionFile)
	}
	ignored := make([]string, 0, len(ignoredPaths))
	for _, path := range ignoredPaths {
		if path == "" {
			continue
		}
		absolute, err := filepath.Abs(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve %v", path)
		}
		relative, err := filepath.Rel(worktree.Filesystem.Root(), absolute)
		if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
			continue
		}
		ignored = append(ignored, filepath.ToSlash(relative))
	}
	return &gitRepository{
		config:       config,
		repository:   repository,
		worktree:     worktree,
		versionPath:  versionPath,
		ignoredPaths: ignored,
	}, nil
}

type gitRepository struct {
	config      model.Git
	repository  *git.Repository
	worktree     *git.Worktree
	versionPath  string
	ignoredPaths []string
}

func (provider gitRepository) CurrentBranch() (string, error) {
	head, err := provider.repository.Head()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve HEAD")
	}
	if !head.Name().IsBranch() {
		return "", errors.Errorf("HEAD is detached at %v", head.Hash())
	}
	return head.Name().Short(), nil
}

func (provider gitRepository) IsClean() (bool, error) {
	status, err := provider.worktree.Status()
	if err != nil {
		return false, errors.Wrap(err, "failed to read worktree status")
	}
	for path, fileStatus := range status {
		if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
			continue
		}
		if !provider.ignored(path) {
			return false, nil
		}
	}
	return true, nil
}

// ignored matches the path itself and sibling files sharing its prefix, such as sqlite's journal.db-journal.
func (provider gitRepository) ignored(path string) bool {
	for _, prefix := range provider.ignoredPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (provider gitRepository) ReadVersion() (string, error) {
	content, err := os.ReadFile(provider.versionPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read version file %v", provider.versionPath)
	}
	version, ok := readProperty(string(content), versionProperty)
	if !ok {
		return "", errors.Errorf("version file %v has no %q property", provider.versionPath, versionProperty)
	}
	return version, nil
}

func (provider gitRepository) WriteVersion(version string) error {
	content, err := os.ReadFile(provider.versionPath)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to read version file %v", provider.versionPath)
	}
	updated := replaceProperty(string(content), versionProperty, version)
	err = os.WriteFile(provider.versionPath, []byte(updated), 0o644)
	return errors.Wrapf(err, "failed to write version file %v", provider.versionPath)
}

func (provider gitRepository) Commit(message string) error {
	path, err := filepath.Rel(provider.worktree.Filesystem.Root(), provider.versionPath)
	if err != nil {
		return errors.Wrapf(err, "version file %v is outside the worktree", provider.versionPath)
	}
	_, err = provider.worktree.Add(filepath.ToSlash(path))
	if err != nil {
		return errors.Wrapf(err, "failed to stage %v", path)
	}
	_, err = provider.worktree.Commit(message, &git.CommitOptions{Author: provider.signature()})
	return errors.Wrap(err, "failed to commit version file")
}

func (provider gitRepository) Tag(name, message string) error {
	head, err := provider.repository.Head()
	if err != nil {
		return errors.Wrap(err, "failed to resolve HEAD")
	}
	_, err = provider.repository.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger:  provider.signature(),
		Message: message,
	})
	return errors.Wrapf(err, "failed to create tag %v", name)
}

func (provider gitRepository) Push(ctx context.Context, tagName string) error {
	head, err := provider.repository.Head()
	if err != nil {
		return errors.Wrap(err, "failed to resolve HEAD")
	}
	tagRef := "refs/tags/" + tagName
	err = provider.repository.PushContext(ctx, &git.PushOptions{
		RemoteName: provider.config.Remote,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("%s:%s", head.Name(), head.Name())),
			gitconfig.RefSpec(fmt.Sprintf("%s:%s", tagRef, tagRef)),
		},
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return errors.Wrapf(err, "failed to push to %v", provider.config.Remote)
}

// signature falls back to the repository's user config when no author is configured.
func (provider gitRepository) signature() *object.Signature {
	if provider.config.AuthorName == "" || provider.config.AuthorEmail == "" {
		return nil
	}
	return &object.Signature{
		Name:  provider.config.AuthorName,
		Email: provider.config.AuthorEmail,
		When:  time.Now(),
	}
}
