// Package appversion holds the application version and the range of
// configuration file versions it understands.
package appversion

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// Version components, overridable at build time with -ldflags -X.
var (
	Major = "0"
	Minor = "3"
	Patch = "0"
)

// ConfigConstraint is the range of configuration file versions this
// build can load.
const ConfigConstraint = ">= 1.0, < 2.0"

var configConstraint = version.MustConstraints(version.NewConstraint(ConfigConstraint))

// Format returns a user-visible version string from the major, minor
// and patch components. A minor of 99 marks a beta of the next major.
func Format(major, minor, patch int) string {
	if minor == 99 {
		return fmt.Sprintf("%d.%d.%d-beta.%d", major+1, 0, 0, patch+1)
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}

// String returns the application version.
func String() string {
	var major, minor, patch int
	if _, err := fmt.Sscan(Major, &major); err != nil {
		return "dev"
	}
	fmt.Sscan(Minor, &minor)
	fmt.Sscan(Patch, &patch)
	return Format(major, minor, patch)
}

// CheckConfig returns an error if a configuration file with version v
// can't be loaded by this build.
func CheckConfig(v string) error {
	cv, err := version.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid configuration version %q: %w", v, err)
	}
	if !configConstraint.Check(cv) {
		return fmt.Errorf("configuration version %s is not supported, need %s", cv, ConfigConstraint)
	}
	return nil
}
