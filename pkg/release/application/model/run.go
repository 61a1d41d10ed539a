package model

import "time"

type RunID = string

type RunState string

const (
	RunStateIdle           RunState = "idle"
	RunStateBranchVerified RunState = "branch-verified"
	RunStateBuilt          RunState = "built"
	RunStateStaged         RunState = "staged"
	RunStateSigned         RunState = "signed"
	RunStateDeployed       RunState = "deployed"
	RunStateVersionBumped  RunState = "version-bumped"
	RunStateDone           RunState = "done"
	RunStateFailed         RunState = "failed"
)

var runStateOrder = []RunState{
	RunStateIdle,
	RunStateBranchVerified,
	RunStateBuilt,
	RunStateStaged,
	RunStateSigned,
	RunStateDeployed,
	RunStateVersionBumped,
	RunStateDone,
}

func (state RunState) Terminal() bool {
	return state == RunStateDone || state == RunStateFailed
}

// Successor returns the state that follows in a successful run.
func (state RunState) Successor() (RunState, bool) {
	for i, s := range runStateOrder {
		if s == state && i+1 < len(runStateOrder) {
			return runStateOrder[i+1], true
		}
	}
	return "", false
}

func (state RunState) CanTransitionTo(next RunState) bool {
	if state.Terminal() {
		return false
	}
	if next == RunStateFailed {
		return true
	}
	successor, ok := state.Successor()
	return ok && successor == next
}

type Transition struct {
	From RunState
	To   RunState
	At   time.Time
}

type ReleaseRun struct {
	ID             RunID
	RequiredBranch string
	CurrentVersion Version
	ReleaseVersion Version
	NextVersion    Version
	Modules        []Module
	Credential     SigningCredential
	TargetKind     RepositoryKind
	State          RunState
	History        []Transition
	StartedAt      time.Time
}

// Target classifies the run by the shape of the version being deployed.
func (run ReleaseRun) Target() RepositoryKind {
	if run.ReleaseVersion.Snapshot {
		return RepositoryKindSnapshot
	}
	return RepositoryKindRelease
}
