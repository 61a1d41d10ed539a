package signing

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/release/pkg/release/application/model"
	"github.com/tss-calculator/release/pkg/release/infrastructure/command"
)

type gpgSigner struct {
	logger applogger.Logger
	runner command.Runner
}

func newGPGSigner(logger applogger.Logger, runner command.Runner) *gpgSigner {
	return &gpgSigner{logger: logger, runner: runner}
}

func (signer gpgSigner) sign(ctx context.Context, artifactPath string, credential model.ExternalTool) (string, error) {
	output := signaturePath(artifactPath)
	_, err := signer.runner.Execute(ctx, command.Command{
		Executable: credential.ExecutablePath,
		Args:       gpgArgs(artifactPath, output, credential.ID),
	})
	if err != nil {
		return "", errors.Wrapf(err, "%v failed to sign %v", credential.ExecutablePath, artifactPath)
	}
	signer.logger.Debug(fmt.Sprintf("signed %v", artifactPath))
	return output, nil
}

// gpgArgs never prompts; passphrases come from the agent.
func gpgArgs(artifactPath, output, keyID string) []string {
	args := []string{"--no-tty", "--batch", "--yes", "--use-agent"}
	if keyID != "" {
		args = append(args, "--local-user", keyID)
	}
	return append(args, "--armor", "--detach-sign", "--output", output, artifactPath)
}
