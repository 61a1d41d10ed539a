package service

import (
	"testing"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

func TestRenderVersionTemplate(t *testing.T) {
	version := model.Version{Major: 1, Minor: 2, Patch: 1, Snapshot: true}
	tests := map[string]string{
		"v{{.Version}}":                                "v1.2.1-SNAPSHOT",
		"[release] new version commit: '{{.Version}}'": "[release] new version commit: '1.2.1-SNAPSHOT'",
		"release-{{.Major}}.{{.Minor}}":                "release-1.2",
	}
	for text, expected := range tests {
		rendered, err := renderVersionTemplate(text, version)
		if err != nil {
			t.Fatalf("renderVersionTemplate(%q) error: %v", text, err)
		}
		if rendered != expected {
			t.Fatalf("renderVersionTemplate(%q) = %q, expected %q", text, rendered, expected)
		}
	}
	if _, err := renderVersionTemplate("{{.Unknown}}", version); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestIsChecksum(t *testing.T) {
	for path, expected := range map[string]bool{
		"lib.jar.md5":    true,
		"lib.pom.sha1":   true,
		"lib.jar.sha256": true,
		"lib.jar.sha512": true,
		"lib.jar":        false,
		"lib.jar.asc":    false,
	} {
		if IsChecksum(path) != expected {
			t.Fatalf("IsChecksum(%q) != %v", path, expected)
		}
	}
}
