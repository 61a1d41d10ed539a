package model

type SigningMode string

const (
	SigningModeInMemory SigningMode = "in-memory"
	SigningModeExternal SigningMode = "external"
)

// SigningCredential is either InMemoryKey or ExternalTool.
type SigningCredential interface {
	Mode() SigningMode
	KeyID() string
	signingCredential()
}

type InMemoryKey struct {
	SecretKey  string
	Passphrase string
	ID         string
}

func (key InMemoryKey) Mode() SigningMode { return SigningModeInMemory }

func (key InMemoryKey) KeyID() string { return key.ID }

// String keeps key material out of formatted output.
func (key InMemoryKey) String() string {
	if key.ID == "" {
		return "in-memory key"
	}
	return "in-memory key " + key.ID
}

func (InMemoryKey) signingCredential() {}

type ExternalTool struct {
	ExecutablePath string
	ID             string
}

func (tool ExternalTool) Mode() SigningMode { return SigningModeExternal }

func (tool ExternalTool) KeyID() string { return tool.ID }

func (tool ExternalTool) String() string {
	return "external tool " + tool.ExecutablePath
}

func (ExternalTool) signingCredential() {}
