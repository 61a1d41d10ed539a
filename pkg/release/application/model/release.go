package model

import "time"

type Release struct {
	ProjectDir     string
	OutputDir      string
	VersionFile    string
	RequiredBranch string
	Modules        []ModuleName
	Build          Build
	Repositories   Repositories
	Signing        Signing
	Git            Git
	JournalPath    string
}

type Build struct {
	Executable    string
	Args          []string
	Tasks         []string
	ExcludedTasks []string
}

type Remote struct {
	URL         string
	Activation  Activation
	Credentials Credentials
}

type Repositories struct {
	Release      Remote
	Snapshot     Remote
	PollTimeout  time.Duration
	PollInterval time.Duration
}

func (r Repositories) Remote(kind RepositoryKind) Remote {
	if kind == RepositoryKindSnapshot {
		return r.Snapshot
	}
	return r.Release
}

type Signing struct {
	// Mode pins one strategy; empty means Precedence decides.
	Mode           SigningMode
	Precedence     []SigningMode
	KeyID          string
	KeyName        string
	PasswordName   string
	KeyIDName      string
	KeyringService string
	GPGExecutable  string
}

type Git struct {
	RequireCleanWorkingTree  bool
	TagTemplate              string
	ReleaseCommitMessage     string
	NextVersionCommitMessage string
	Push                     bool
	Remote                   string
	AuthorName               string
	AuthorEmail              string
}
