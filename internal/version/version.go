// Package version selects the latest released version from tags and computes
// the next one.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Zero is used when no release tag exists yet.
const Zero = "0.0.0"

// Increment names.
const (
	Major      = "major"
	Minor      = "minor"
	Patch      = "patch"
	PreMajor   = "premajor"
	PreMinor   = "preminor"
	PrePatch   = "prepatch"
	PreRelease = "prerelease"
)

// Increments lists the increments offered to the user, in prompt order.
var Increments = []string{Patch, Minor, Major, PreRelease, PrePatch, PreMinor, PreMajor}

// ErrInvalidIncrement is returned for increments that are neither a known
// name nor a valid version.
var ErrInvalidIncrement = errors.New("invalid increment")

// Tagged is a version parsed from a tag.
type Tagged struct {
	Tag     string
	Version *semver.Version
}

// Latest returns the highest version among tags carrying prefix. Tags that do
// not parse as semantic versions are skipped. ok is false when none match.
func Latest(tags []string, prefix string) (latest Tagged, ok bool) {
	for _, tag := range tags {
		raw, found := strings.CutPrefix(tag, prefix)
		if !found {
			continue
		}
		v, err := semver.StrictNewVersion(raw)
		if err != nil {
			continue
		}
		if !ok || v.GreaterThan(latest.Version) {
			latest = Tagged{Tag: tag, Version: v}
			ok = true
		}
	}
	return latest, ok
}

// Parse parses a version, tolerating a leading "v".
func Parse(s string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return v, nil
}

// IsVersion reports whether s is an explicit version rather than an increment name.
func IsVersion(s string) bool {
	_, err := semver.NewVersion(s)
	return err == nil
}

// Next computes the version following current.
//
// increment is an increment name or an explicit version. When preID is set a
// plain major, minor or patch increment becomes the matching pre increment,
// or prerelease when current already is one.
func Next(current *semver.Version, increment, preID string) (*semver.Version, error) {
	if increment == "" {
		increment = Patch
	}

	switch increment {
	case Major, Minor, Patch:
		if preID != "" {
			if current.Prerelease() != "" {
				increment = PreRelease
			} else {
				increment = "pre" + increment
			}
		}
	case PreMajor, PreMinor, PrePatch, PreRelease:
	default:
		v, err := semver.NewVersion(increment)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIncrement, increment)
		}
		return v, nil
	}

	var next semver.Version
	switch increment {
	case Major:
		next = incMajor(current)
	case Minor:
		next = incMinor(current)
	case Patch:
		next = current.IncPatch()
	case PreMajor:
		return withPre(incMajorRelease(current), preID, "")
	case PreMinor:
		return withPre(incMinorRelease(current), preID, "")
	case PrePatch:
		return withPre(incPatchRelease(current), preID, "")
	case PreRelease:
		if current.Prerelease() == "" {
			return withPre(incPatchRelease(current), preID, "")
		}
		return withPre(release(current), preID, current.Prerelease())
	}
	return &next, nil
}

// incMajor finishes a x.0.0 prerelease instead of skipping a major.
func incMajor(v *semver.Version) semver.Version {
	if v.Prerelease() != "" && v.Minor() == 0 && v.Patch() == 0 {
		return release(v)
	}
	return incMajorRelease(v)
}

// incMinor finishes a x.y.0 prerelease instead of skipping a minor.
func incMinor(v *semver.Version) semver.Version {
	if v.Prerelease() != "" && v.Patch() == 0 {
		return release(v)
	}
	return incMinorRelease(v)
}

func incMajorRelease(v *semver.Version) semver.Version {
	return *semver.New(v.Major()+1, 0, 0, "", "")
}

func incMinorRelease(v *semver.Version) semver.Version {
	return *semver.New(v.Major(), v.Minor()+1, 0, "", "")
}

func incPatchRelease(v *semver.Version) semver.Version {
	return *semver.New(v.Major(), v.Minor(), v.Patch()+1, "", "")
}

func release(v *semver.Version) semver.Version {
	return *semver.New(v.Major(), v.Minor(), v.Patch(), "", "")
}

// withPre attaches a prerelease to base. A current prerelease with the same
// identifier has its trailing number bumped; otherwise numbering restarts at 0.
func withPre(base semver.Version, preID, current string) (*semver.Version, error) {
	pre := nextPre(preID, current)
	v, err := base.SetPrerelease(pre)
	if err != nil {
		return nil, fmt.Errorf("invalid prerelease %q: %w", pre, err)
	}
	return &v, nil
}

func nextPre(preID, current string) string {
	if current == "" {
		return joinPre(preID, "0")
	}

	parts := strings.Split(current, ".")
	last := parts[len(parts)-1]
	n, err := strconv.Atoi(last)
	numbered := err == nil
	stem := strings.Join(parts, ".")
	if numbered {
		stem = strings.Join(parts[:len(parts)-1], ".")
	}

	if preID != "" && stem != preID {
		return joinPre(preID, "0")
	}
	if !numbered {
		return current + ".0"
	}
	return joinPre(stem, strconv.Itoa(n+1))
}

func joinPre(stem, n string) string {
	if stem == "" {
		return n
	}
	return stem + "." + n
}
