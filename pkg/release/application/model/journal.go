package model

import "time"

type RunRecord struct {
	ID             RunID
	RequiredBranch string
	CurrentVersion string
	ReleaseVersion string
	NextVersion    string
	TargetKind     RepositoryKind
	State          RunState
	Error          string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Transitions    []Transition
}
