// Package version provides version information for the orchestration engine.
// Version variables can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/leaderwolfpipi/mcp-autogen-sub001/version.version=1.2.0"
package version

import (
	"fmt"
	"runtime/debug"
)

// Engine is the engine compatibility version checked against tool
// descriptors' semver constraints.
const Engine = "1.0.0"

const (
	// devVersion is the default version when not set via ldflags
	devVersion = "dev"
	// shortCommitLen is the length of the short commit hash
	shortCommitLen = 7
	// vcsRevisionKey is the build info key for git commit
	vcsRevisionKey = "vcs.revision"
)

// Build-time variables - can be overridden with -ldflags
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the current version string.
// Falls back to build info from go modules if version is "dev".
func GetVersion() string {
	if version != devVersion {
		return version
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}

	return devVersion
}

// GetCommit returns the short git commit hash, if known.
func GetCommit() string {
	commit := gitCommit
	if commit == "" {
		commit = commitFromBuildInfo()
	}
	if len(commit) > shortCommitLen {
		commit = commit[:shortCommitLen]
	}
	return commit
}

// String returns a human-readable version line.
func String() string {
	s := GetVersion()
	if commit := GetCommit(); commit != "" {
		s = fmt.Sprintf("%s (%s)", s, commit)
	}
	if buildDate != "" {
		s = fmt.Sprintf("%s built %s", s, buildDate)
	}
	return s
}

func commitFromBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == vcsRevisionKey && setting.Value != "" {
			return setting.Value
		}
	}
	return ""
}
