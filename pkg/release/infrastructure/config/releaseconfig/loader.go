package releaseconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

const (
	DefaultPollTimeout              = 10 * time.Minute
	DefaultPollInterval             = 10 * time.Second
	DefaultBuildExecutable          = "./gradlew"
	DefaultBuildTask                = "build"
	DefaultVersionFile              = "gradle.properties"
	DefaultOutputDir                = "build"
	DefaultTagTemplate              = "v{{.Version}}"
	DefaultReleaseCommitMessage     = "[release] pre tag commit: '{{.Version}}'"
	DefaultNextVersionCommitMessage = "[release] new version commit: '{{.Version}}'"
	DefaultJournalName              = "journal.db"
	DefaultKeyEnv                   = "SIGNING_KEY"
	DefaultPasswordEnv              = "SIGNING_PASSWORD"
	DefaultKeyIDEnv                 = "SIGNING_KEY_ID"
	DefaultGPGExecutable            = "gpg"
	DefaultGitRemote                = "origin"
)

type Build struct {
	Executable    string   `yaml:"executable"`
	Args          []string `yaml:"args"`
	Tasks         []string `yaml:"tasks"`
	ExcludedTasks []string `yaml:"excludedTasks"`
}

type Remote struct {
	URL         string `yaml:"url"`
	Activation  string `yaml:"activation"`
	UsernameEnv string `yaml:"usernameEnv"`
	PasswordEnv string `yaml:"passwordEnv"`
}

type Repositories struct {
	Release      Remote `yaml:"release"`
	Snapshot     Remote `yaml:"snapshot"`
	PollTimeout  string `yaml:"pollTimeout"`
	PollInterval string `yaml:"pollInterval"`
}

type Signing struct {
	Mode           string   `yaml:"mode"`
	Precedence     []string `yaml:"precedence"`
	KeyID          string   `yaml:"keyId"`
	KeyEnv         string   `yaml:"keyEnv"`
	PasswordEnv    string   `yaml:"passwordEnv"`
	KeyIDEnv       string   `yaml:"keyIdEnv"`
	KeyringService string   `yaml:"keyringService"`
	GPGExecutable  string   `yaml:"gpgExecutable"`
}

type Git struct {
	RequireCleanWorkingTree  *bool  `yaml:"requireCleanWorkingTree"`
	TagTemplate              string `yaml:"tagTemplate"`
	ReleaseCommitMessage     string `yaml:"releaseCommitMessage"`
	NextVersionCommitMessage string `yaml:"nextVersionCommitMessage"`
	Push                     bool   `yaml:"push"`
	Remote                   string `yaml:"remote"`
	AuthorName               string `yaml:"authorName"`
	AuthorEmail              string `yaml:"authorEmail"`
}

type Config struct {
	RequiredBranch string       `yaml:"requiredBranch"`
	ProjectDir     string       `yaml:"projectDir"`
	OutputDir      string       `yaml:"outputDir"`
	VersionFile    string       `yaml:"versionFile"`
	Modules        []string     `yaml:"modules"`
	Build          Build        `yaml:"build"`
	Repositories   Repositories `yaml:"repositories"`
	Signing        Signing      `yaml:"signing"`
	Git            Git          `yaml:"git"`
	Journal        string       `yaml:"journal"`
}

// Load reads the config file; relative paths in it are resolved against the file's directory.
func Load(filePath string) (model.Release, error) {
	configFile, err := os.Open(filePath)
	if err != nil {
		return model.Release{}, err
	}
	defer configFile.Close()
	configBody, err := io.ReadAll(configFile)
	if err != nil {
		return model.Release{}, err
	}

	var config Config
	err = yaml.Unmarshal(configBody, &config)
	if err != nil {
		return model.Release{}, errors.Wrapf(err, "failed to parse %v", filePath)
	}
	baseDir, err := filepath.Abs(filepath.Dir(filePath))
	if err != nil {
		return model.Release{}, err
	}
	return MapToReleaseConfig(config, baseDir, os.Getenv)
}

func MapToReleaseConfig(config Config, baseDir string, getenv func(string) string) (model.Release, error) {
	applyDefaults(&config)
	err := assertConfig(config)
	if err != nil {
		return model.Release{}, err
	}
	pollTimeout, err := parseDuration("pollTimeout", config.Repositories.PollTimeout)
	if err != nil {
		return model.Release{}, err
	}
	pollInterval, err := parseDuration("pollInterval", config.Repositories.PollInterval)
	if err != nil {
		return model.Release{}, err
	}

	projectDir := resolvePath(baseDir, config.ProjectDir)
	precedence := make([]model.SigningMode, 0, len(config.Signing.Precedence))
	for _, mode := range config.Signing.Precedence {
		precedence = append(precedence, model.SigningMode(mode))
	}

	return model.Release{
		ProjectDir:     projectDir,
		OutputDir:      resolvePath(projectDir, config.OutputDir),
		VersionFile:    config.VersionFile,
		RequiredBranch: config.RequiredBranch,
		Modules:        config.Modules,
		Build: model.Build{
			Executable:    config.Build.Executable,
			Args:          config.Build.Args,
			Tasks:         config.Build.Tasks,
			ExcludedTasks: config.Build.ExcludedTasks,
		},
		Repositories: model.Repositories{
			Release:      mapRemote(config.Repositories.Release, getenv),
			Snapshot:     mapRemote(config.Repositories.Snapshot, getenv),
			PollTimeout:  pollTimeout,
			PollInterval: pollInterval,
		},
		Signing: model.Signing{
			Mode:           model.SigningMode(config.Signing.Mode),
			Precedence:     precedence,
			KeyID:          config.Signing.KeyID,
			KeyName:        config.Signing.KeyEnv,
			PasswordName:   config.Signing.PasswordEnv,
			KeyIDName:      config.Signing.KeyIDEnv,
			KeyringService: config.Signing.KeyringService,
			GPGExecutable:  config.Signing.GPGExecutable,
		},
		Git: model.Git{
			RequireCleanWorkingTree:  *config.Git.RequireCleanWorkingTree,
			TagTemplate:              config.Git.TagTemplate,
			ReleaseCommitMessage:     config.Git.ReleaseCommitMessage,
			NextVersionCommitMessage: config.Git.NextVersionCommitMessage,
			Push:                     config.Git.Push,
			Remote:                   config.Git.Remote,
			AuthorName:               config.Git.AuthorName,
			AuthorEmail:              config.Git.AuthorEmail,
		},
		JournalPath: journalPath(projectDir, config.Journal),
	}, nil
}

// journalPath keeps the default journal out of the worktree, under the user cache dir keyed by project.
func journalPath(projectDir, configured string) string {
	if configured != "" {
		return resolvePath(projectDir, configured)
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(projectDir, ".release", DefaultJournalName)
	}
	sum := sha256.Sum256([]byte(projectDir))
	project := fmt.Sprintf("%s-%s", filepath.Base(projectDir), hex.EncodeToString(sum[:])[:12])
	return filepath.Join(cacheDir, "release", project, DefaultJournalName)
}

func applyDefaults(config *Config) {
	setDefault(&config.ProjectDir, ".")
	setDefault(&config.OutputDir, DefaultOutputDir)
	setDefault(&config.VersionFile, DefaultVersionFile)
	setDefault(&config.Build.Executable, DefaultBuildExecutable)
	if len(config.Build.Tasks) == 0 {
		config.Build.Tasks = []string{DefaultBuildTask}
	}
	setDefault(&config.Repositories.PollTimeout, DefaultPollTimeout.String())
	setDefault(&config.Repositories.PollInterval, DefaultPollInterval.String())
	setDefault(&config.Repositories.Release.Activation, string(model.ActivationRelease))
	setDefault(&config.Signing.KeyEnv, DefaultKeyEnv)
	setDefault(&config.Signing.PasswordEnv, DefaultPasswordEnv)
	setDefault(&config.Signing.KeyIDEnv, DefaultKeyIDEnv)
	setDefault(&config.Signing.GPGExecutable, DefaultGPGExecutable)
	if config.Git.RequireCleanWorkingTree == nil {
		requireClean := true
		config.Git.RequireCleanWorkingTree = &requireClean
	}
	setDefault(&config.Git.TagTemplate, DefaultTagTemplate)
	setDefault(&config.Git.ReleaseCommitMessage, DefaultReleaseCommitMessage)
	setDefault(&config.Git.NextVersionCommitMessage, DefaultNextVersionCommitMessage)
	setDefault(&config.Git.Remote, DefaultGitRemote)
}

func assertConfig(config Config) error {
	if config.RequiredBranch == "" {
		return errors.New("requiredBranch is required")
	}
	if len(config.Modules) == 0 {
		return errors.New("at least one module is required")
	}
	seen := make(map[string]struct{}, len(config.Modules))
	for _, module := range config.Modules {
		if module == "" {
			return errors.New("module name must not be empty")
		}
		if _, ok := seen[module]; ok {
			return errors.Errorf("duplicate module %v", module)
		}
		seen[module] = struct{}{}
	}
	for name, remote := range map[string]Remote{"release": config.Repositories.Release, "snapshot": config.Repositories.Snapshot} {
		err := assertURL(remote.URL)
		if err != nil {
			return errors.Wrapf(err, "invalid %v repository url", name)
		}
	}
	switch model.Activation(config.Repositories.Release.Activation) {
	case model.ActivationRelease, model.ActivationNone:
	default:
		return errors.Errorf("unexpected release activation %q", config.Repositories.Release.Activation)
	}
	if config.Signing.Mode != "" {
		err := assertSigningMode(config.Signing.Mode)
		if err != nil {
			return err
		}
	}
	for _, mode := range config.Signing.Precedence {
		err := assertSigningMode(mode)
		if err != nil {
			return err
		}
	}
	return nil
}

func assertURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	return nil
}

func assertSigningMode(mode string) error {
	switch model.SigningMode(mode) {
	case model.SigningModeInMemory, model.SigningModeExternal:
		return nil
	default:
		return errors.Errorf("unexpected signing mode %q", mode)
	}
}

func parseDuration(name, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %v", name)
	}
	if duration <= 0 {
		return 0, errors.Errorf("%v must be positive", name)
	}
	return duration, nil
}

func mapRemote(remote Remote, getenv func(string) string) model.Remote {
	var credentials model.Credentials
	if remote.UsernameEnv != "" {
		credentials.Username = getenv(remote.UsernameEnv)
	}
	if remote.PasswordEnv != "" {
		credentials.Password = getenv(remote.PasswordEnv)
	}
	return model.Remote{
		URL:         remote.URL,
		Activation:  model.Activation(remote.Activation),
		Credentials: credentials,
	}
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}

func setDefault(value *string, defaultValue string) {
	if *value == "" {
		*value = defaultValue
	}
}
