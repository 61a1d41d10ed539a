package service

import "github.com/tss-calculator/release/pkg/release/application/model"

// ReleaseVersion strips the snapshot marker. A released version is returned unchanged.
func ReleaseVersion(current model.Version) model.Version {
	current.Snapshot = false
	return current
}

func NextVersion(current model.Version) model.Version {
	return model.Version{
		Major:    current.Major,
		Minor:    current.Minor,
		Patch:    current.Patch + 1,
		Snapshot: true,
	}
}
