package agent

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version is a major.minor agent version, ordered numerically.
// The zero value is the absent sentinel and orders strictly below every
// real version; ParseVersion never produces it.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// AbsentVersion is the sentinel reported when no agent version can be
// determined (executable missing, unparsable self-report, failed fetch).
var AbsentVersion = Version{}

// ErrVersionInvalid indicates the version string is not a major.minor pair.
var ErrVersionInvalid = errors.New("version invalid")

// ParseVersion parses a "major.minor" token into a Version.
// Returns ErrVersionInvalid for anything else, including major 0, which is
// reserved for the absent sentinel.
func ParseVersion(value string) (Version, error) {
	trimmed := strings.TrimSpace(value)

	parts := strings.Split(trimmed, ".")
	if len(parts) != 2 {
		return AbsentVersion, fmt.Errorf("%w: %q", ErrVersionInvalid, value)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return AbsentVersion, fmt.Errorf("%w: %q", ErrVersionInvalid, value)
	}

	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return AbsentVersion, fmt.Errorf("%w: %q", ErrVersionInvalid, value)
	}

	if major <= 0 || minor < 0 {
		return AbsentVersion, fmt.Errorf("%w: %q", ErrVersionInvalid, value)
	}

	return Version{Major: major, Minor: minor}, nil
}

// IsAbsent reports whether the version is the absent sentinel.
func (version Version) IsAbsent() bool {
	return version == AbsentVersion
}

// Less reports whether the version orders strictly below the other version.
// The absent sentinel orders below every real version.
func (version Version) Less(other Version) bool {
	if version.Major != other.Major {
		return version.Major < other.Major
	}

	return version.Minor < other.Minor
}

// String renders the version as "major.minor", or "absent" for the sentinel.
func (version Version) String() string {
	if version.IsAbsent() {
		return "absent"
	}

	return fmt.Sprintf("%d.%d", version.Major, version.Minor)
}
