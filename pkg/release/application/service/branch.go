package service

import "github.com/pkg/errors"

func VerifyBranch(currentBranch, requiredBranch string) error {
	if currentBranch != requiredBranch {
		return errors.Wrapf(ErrBranchMismatch, "current branch %q, required %q", currentBranch, requiredBranch)
	}
	return nil
}
