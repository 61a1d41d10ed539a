package model

type ModuleName = string

type Module struct {
	Name       ModuleName
	StagingDir string
}
