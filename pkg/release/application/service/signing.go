package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

var DefaultSigningPrecedence = []model.SigningMode{model.SigningModeInMemory, model.SigningModeExternal}

type SecretSource interface {
	Lookup(name string) (string, bool)
}

type ToolLocator interface {
	LookPath(executable string) (string, error)
}

type ArtifactSigner interface {
	// Sign writes a detached signature next to the artifact and returns its path.
	Sign(ctx context.Context, artifactPath string, credential model.SigningCredential) (string, error)
}

type SigningStrategySelector interface {
	Select(secrets SecretSource) (model.SigningCredential, error)
}

func NewSigningStrategySelector(config model.Signing, toolLocator ToolLocator) SigningStrategySelector {
	return &signingStrategySelector{
		config:      config,
		toolLocator: toolLocator,
	}
}

type signingStrategySelector struct {
	config      model.Signing
	toolLocator ToolLocator
}

func (selector signingStrategySelector) Select(secrets SecretSource) (model.SigningCredential, error) {
	var reasons []string
	for _, mode := range selector.precedence() {
		switch mode {
		case model.SigningModeInMemory:
			key, ok := selector.inMemoryKey(secrets)
			if ok {
				return key, nil
			}
			reasons = append(reasons, fmt.Sprintf("%v: %v or %v not provided", mode, selector.config.KeyName, selector.config.PasswordName))
		case model.SigningModeExternal:
			tool, err := selector.externalTool(secrets)
			if err == nil {
				return tool, nil
			}
			reasons = append(reasons, fmt.Sprintf("%v: %v", mode, err))
		default:
			return nil, errors.Errorf("unknown signing mode %q", mode)
		}
	}
	return nil, errors.Wrap(ErrCredentialUnavailable, strings.Join(reasons, "; "))
}

func (selector signingStrategySelector) precedence() []model.SigningMode {
	if selector.config.Mode != "" {
		return []model.SigningMode{selector.config.Mode}
	}
	if len(selector.config.Precedence) > 0 {
		return selector.config.Precedence
	}
	return DefaultSigningPrecedence
}

func (selector signingStrategySelector) inMemoryKey(secrets SecretSource) (model.InMemoryKey, bool) {
	key, keyOK := lookupNonEmpty(secrets, selector.config.KeyName)
	passphrase, passphraseOK := lookupNonEmpty(secrets, selector.config.PasswordName)
	if !keyOK || !passphraseOK {
		return model.InMemoryKey{}, false
	}
	return model.InMemoryKey{
		SecretKey:  key,
		Passphrase: passphrase,
		ID:         selector.keyID(secrets),
	}, true
}

func (selector signingStrategySelector) externalTool(secrets SecretSource) (model.ExternalTool, error) {
	if selector.config.GPGExecutable == "" {
		return model.ExternalTool{}, errors.New("no external signing executable configured")
	}
	path, err := selector.toolLocator.LookPath(selector.config.GPGExecutable)
	if err != nil {
		return model.ExternalTool{}, errors.Wrapf(err, "executable %v not found", selector.config.GPGExecutable)
	}
	return model.ExternalTool{
		ExecutablePath: path,
		ID:             selector.keyID(secrets),
	}, nil
}

// keyID prefers the configured id over the one provided as secret material.
func (selector signingStrategySelector) keyID(secrets SecretSource) string {
	if selector.config.KeyID != "" {
		return selector.config.KeyID
	}
	id, _ := lookupNonEmpty(secrets, selector.config.KeyIDName)
	return id
}

func lookupNonEmpty(secrets SecretSource, name string) (string, bool) {
	if name == "" || secrets == nil {
		return "", false
	}
	value, ok := secrets.Lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}
