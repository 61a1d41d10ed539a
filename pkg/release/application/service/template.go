package service

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

const SignatureExtension = ".asc"

var checksumExtensions = []string{".md5", ".sha1", ".sha256", ".sha512"}

type versionVariables struct {
	Version string
	Major   int
	Minor   int
	Patch   int
}

func renderVersionTemplate(text string, version model.Version) (string, error) {
	versionTemplate, err := template.New("version").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse template %q", text)
	}
	var builder strings.Builder
	err = versionTemplate.Execute(&builder, versionVariables{
		Version: version.String(),
		Major:   version.Major,
		Minor:   version.Minor,
		Patch:   version.Patch,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to execute template %q", text)
	}
	return builder.String(), nil
}

func IsSignature(path string) bool {
	return strings.HasSuffix(path, SignatureExtension)
}

func IsChecksum(path string) bool {
	for _, extension := range checksumExtensions {
		if strings.HasSuffix(path, extension) {
			return true
		}
	}
	return false
}
