package signing

import (
	"context"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/release/pkg/release/application/model"
	"github.com/tss-calculator/release/pkg/release/application/service"
	"github.com/tss-calculator/release/pkg/release/infrastructure/command"
)

func NewArtifactSigner(logger applogger.Logger, runner command.Runner) service.ArtifactSigner {
	return &artifactSigner{
		inMemory: newInMemorySigner(),
		gpg:      newGPGSigner(logger, runner),
	}
}

type artifactSigner struct {
	inMemory *inMemorySigner
	gpg      *gpgSigner
}

func (signer artifactSigner) Sign(ctx context.Context, artifactPath string, credential model.SigningCredential) (string, error) {
	switch c := credential.(type) {
	case model.InMemoryKey:
		return signer.inMemory.sign(artifactPath, c)
	case model.ExternalTool:
		return signer.gpg.sign(ctx, artifactPath, c)
	default:
		return "", errors.Errorf("unsupported signing credential %T", credential)
	}
}

func signaturePath(artifactPath string) string {
	return artifactPath + service.SignatureExtension
}
