package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

const SnapshotSuffix = "-SNAPSHOT"

type Version struct {
	Major    int
	Minor    int
	Patch    int
	Snapshot bool
}

func ParseVersion(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Version{}, errors.New("version is empty")
	}
	var version Version
	if strings.HasSuffix(raw, SnapshotSuffix) {
		version.Snapshot = true
		raw = strings.TrimSuffix(raw, SnapshotSuffix)
	}
	parts := strings.Split(raw, ".")
	if len(parts) > 3 {
		return Version{}, errors.Errorf("version %q has more than three components", s)
	}
	components := []*int{&version.Major, &version.Minor, &version.Patch}
	for i, part := range parts {
		if !isNumeric(part) {
			return Version{}, errors.Errorf("version %q has invalid component %q", s, part)
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, errors.Wrapf(err, "version %q has invalid component %q", s, part)
		}
		*components[i] = n
	}
	if version.Patch == math.MaxInt {
		return Version{}, errors.Errorf("version %q leaves no room for a next patch", s)
	}
	return version, nil
}

// isNumeric accepts plain decimal digits without sign or leading zeros.
func isNumeric(part string) bool {
	if part == "" || (len(part) > 1 && part[0] == '0') {
		return false
	}
	for _, c := range part {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Snapshot {
		s += SnapshotSuffix
	}
	return s
}

// Compare orders versions the semver way: a snapshot sorts before the release with the same numbers.
func (v Version) Compare(other Version) int {
	return semver.Compare(v.semver(), other.semver())
}

func (v Version) semver() string {
	s := fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Snapshot {
		s += "-SNAPSHOT"
	}
	return s
}
