package version

import (
	"fmt"
	"strings"
)

var (
	// Version is the main version number that is being run at the moment.
	Version = "0.1.0"

	// VersionPrerelease is a pre-release marker for the version. If this is
	// "" (empty string) then it means that it is a final release. Otherwise,
	// this is a pre-release such as "dev" (in development).
	VersionPrerelease = "dev"
)

// VersionInfo carries the compiled version metadata.
type VersionInfo struct {
	Version           string
	VersionPrerelease string
}

func GetVersion() *VersionInfo {
	return &VersionInfo{
		Version:           Version,
		VersionPrerelease: VersionPrerelease,
	}
}

// VersionNumber renders the version with any pre-release suffix.
func (c *VersionInfo) VersionNumber() string {
	version := c.Version
	if c.VersionPrerelease != "" {
		version = fmt.Sprintf("%s-%s", version, c.VersionPrerelease)
	}
	return version
}

// FullVersionNumber renders the version for CLI display.
func (c *VersionInfo) FullVersionNumber() string {
	var versionString strings.Builder

	fmt.Fprintf(&versionString, "inductiond v%s", c.Version)
	if c.VersionPrerelease != "" {
		fmt.Fprintf(&versionString, "-%s", c.VersionPrerelease)
	}

	return versionString.String()
}
