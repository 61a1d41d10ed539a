package service

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

var (
	ErrBranchMismatch        = errors.New("branch mismatch")
	ErrWorkingTreeDirty      = errors.New("working tree has uncommitted changes")
	ErrNestedBuildFailed     = errors.New("nested build failed")
	ErrCredentialUnavailable = errors.New("signing credential unavailable")
	ErrStagingIncomplete     = errors.New("staging incomplete")
	ErrVersionPersistFailed  = errors.New("version persist failed")
)

type DeployPhase string

const (
	DeployPhaseUpload       DeployPhase = "upload"
	DeployPhaseClose        DeployPhase = "close"
	DeployPhaseCloseTimeout DeployPhase = "close-timeout"
	DeployPhaseRelease      DeployPhase = "release"
)

type DeployError struct {
	Phase DeployPhase
	Cause error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy failed in %s phase: %v", e.Phase, e.Cause)
}

func (e *DeployError) Unwrap() error {
	return e.Cause
}

// RunError is the terminal error of a release run. State is the state the run failed to reach.
type RunError struct {
	State model.RunState
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("release run failed before reaching %q: %v", e.State, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
