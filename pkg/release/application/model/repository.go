package model

type RepositoryKind string

const (
	RepositoryKindRelease  RepositoryKind = "release"
	RepositoryKindSnapshot RepositoryKind = "snapshot"
)

// Activation decides whether an uploaded release is published right away.
type Activation string

const (
	ActivationRelease Activation = "release"
	ActivationNone    Activation = "none"
)

type RepositoryState string

const (
	RepositoryStateOpen     RepositoryState = "open"
	RepositoryStateClosed   RepositoryState = "closed"
	RepositoryStateReleased RepositoryState = "released"
	RepositoryStateFailed   RepositoryState = "failed"
)

type RemoteArtifactID = string

type Credentials struct {
	Username string
	Password string
}

type StagingRepository struct {
	Kind        RepositoryKind
	EndpointURL string
	Credentials Credentials
	SourcePaths []string
}
