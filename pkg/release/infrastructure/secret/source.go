package secret

import (
	"os"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"
	"github.com/zalando/go-keyring"

	"github.com/tss-calculator/release/pkg/release/application/service"
)

type EnvSource struct{}

func (EnvSource) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// KeyringSource reads secrets stored in the OS keychain under service, using the secret name as user.
type KeyringSource struct {
	Service string
	Logger  applogger.Logger
}

func (source KeyringSource) Lookup(name string) (string, bool) {
	value, err := keyring.Get(source.Service, name)
	if err == nil {
		return value, true
	}
	if !errors.Is(err, keyring.ErrNotFound) && source.Logger != nil {
		source.Logger.Debug("keyring lookup of " + name + " failed: " + err.Error())
	}
	return "", false
}

// Chain returns the first value any source provides.
type Chain []service.SecretSource

func (chain Chain) Lookup(name string) (string, bool) {
	for _, source := range chain {
		if value, ok := source.Lookup(name); ok {
			return value, true
		}
	}
	return "", false
}

// NewSecretSource consults the environment first and the keyring when keyringService is set.
func NewSecretSource(keyringService string, logger applogger.Logger) service.SecretSource {
	chain := Chain{EnvSource{}}
	if keyringService != "" {
		chain = append(chain, KeyringSource{Service: keyringService, Logger: logger})
	}
	return chain
}
