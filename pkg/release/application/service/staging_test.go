package service

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

func TestResolveStagingPaths(t *testing.T) {
	base := t.TempDir()
	modules := []model.ModuleName{"jpasskit", "jpasskit.server"}

	first := ResolveStagingPaths(modules, base)
	second := ResolveStagingPaths(modules, base)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolver is not idempotent: %v vs %v", first, second)
	}
	expected := filepath.Join(base, "jpasskit.server", "staging-deploy")
	if first["jpasskit.server"] != expected {
		t.Fatalf("expected %v, got %v", expected, first["jpasskit.server"])
	}
	for _, path := range first {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("resolver must not create %v", path)
		}
	}
}

func TestResolveModulesKeepsOrder(t *testing.T) {
	modules := ResolveModules([]model.ModuleName{"b", "a"}, "/out")
	if len(modules) != 2 || modules[0].Name != "b" || modules[1].StagingDir != filepath.Join("/out", "a", StagingDirName) {
		t.Fatalf("unexpected modules %+v", modules)
	}
}

func TestCollectStagedArtifacts(t *testing.T) {
	modules := ResolveModules([]model.ModuleName{"core", "server"}, "/out")

	_, err := collectStagedArtifacts(stagedStore("/out", "core"), modules)
	if !errors.Is(err, ErrStagingIncomplete) {
		t.Fatalf("missing module dir: expected ErrStagingIncomplete, got %v", err)
	}

	store := stagedStore("/out", "core", "server")
	store[modules[1].StagingDir] = nil
	_, err = collectStagedArtifacts(store, modules)
	if !errors.Is(err, ErrStagingIncomplete) {
		t.Fatalf("empty module dir: expected ErrStagingIncomplete, got %v", err)
	}

	artifacts, err := collectStagedArtifacts(stagedStore("/out", "core", "server"), modules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(artifacts["server"]) != 2 {
		t.Fatalf("unexpected artifacts %v", artifacts)
	}
}
