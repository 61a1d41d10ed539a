package staging

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{}
}

// ArtifactStore reads staged artifacts from the local filesystem. It never creates directories.
type ArtifactStore struct{}

func (store ArtifactStore) ListArtifacts(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%v is not a directory", dir)
	}
	var artifacts []string
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() {
			artifacts = append(artifacts, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %v", dir)
	}
	sort.Strings(artifacts)
	return artifacts, nil
}
