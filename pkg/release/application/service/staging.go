package service

import (
	"io/fs"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

const StagingDirName = "staging-deploy"

type ArtifactStore interface {
	// ListArtifacts returns the regular files below dir, sorted. A missing dir is an os.ErrNotExist error.
	ListArtifacts(dir string) ([]string, error)
}

func ResolveStagingPaths(modules []model.ModuleName, baseOutputDir string) map[model.ModuleName]string {
	paths := make(map[model.ModuleName]string, len(modules))
	for _, module := range modules {
		paths[module] = stagingPath(baseOutputDir, module)
	}
	return paths
}

// ResolveModules keeps the configured module order.
func ResolveModules(modules []model.ModuleName, baseOutputDir string) []model.Module {
	result := make([]model.Module, 0, len(modules))
	for _, module := range modules {
		result = append(result, model.Module{
			Name:       module,
			StagingDir: stagingPath(baseOutputDir, module),
		})
	}
	return result
}

func stagingPath(baseOutputDir string, module model.ModuleName) string {
	return filepath.Join(baseOutputDir, module, StagingDirName)
}

func collectStagedArtifacts(store ArtifactStore, modules []model.Module) (map[model.ModuleName][]string, error) {
	artifacts := make(map[model.ModuleName][]string, len(modules))
	for _, module := range modules {
		files, err := store.ListArtifacts(module.StagingDir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrStagingIncomplete, "module %v: staging directory %v does not exist", module.Name, module.StagingDir)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list staged artifacts of module %v", module.Name)
		}
		if len(files) == 0 {
			return nil, errors.Wrapf(ErrStagingIncomplete, "module %v: staging directory %v is empty", module.Name, module.StagingDir)
		}
		artifacts[module.Name] = files
	}
	return artifacts, nil
}
