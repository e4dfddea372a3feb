// Package depissue classifies tool failures caused by missing or broken
// runtime dependencies and suggests remediation. Classification is a regex
// pass over the tool's error text; it never executes anything itself.
// Auto-install is gated by policy and off by default.
package depissue

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind labels the failure class.
type Kind string

// Issue kinds.
const (
	KindMissingPackage     Kind = "missing_package"
	KindVersionConflict    Kind = "version_conflict"
	KindPermissionError    Kind = "permission_error"
	KindNetworkError       Kind = "network_error"
	KindCompatibilityIssue Kind = "compatibility_issue"
)

// Issue is one classified dependency problem.
type Issue struct {
	// Package is the missing or conflicting package name, when known.
	Package string `json:"package,omitempty"`

	Kind Kind `json:"kind"`

	// SuggestedSolutions are operator-facing remediation hints.
	SuggestedSolutions []string `json:"suggested_solutions"`

	// InstallCommands are copy-pasteable commands, populated only for
	// missing packages.
	InstallCommands []string `json:"install_commands,omitempty"`
}

// Policy gates automatic remediation. The classifier itself only reports;
// consumers check AutoInstall before acting on InstallCommands.
type Policy struct {
	AutoInstall bool
}

var (
	moduleNotFoundRE = regexp.MustCompile(`ModuleNotFoundError: No module named '([^']+)'`)
	importErrorRE    = regexp.MustCompile(`ImportError: No module named '?([A-Za-z0-9_.\-]+)'?`)
	notInstalledRE   = regexp.MustCompile(`([A-Za-z0-9_.\-]+)\s*(?:未安装|没有安装)`)
	versionRE        = regexp.MustCompile(`(?i)(?:requires|needs)\s+([A-Za-z0-9_.\-]+)[=<>!~]+[0-9][^\s,]*|VersionConflict`)
	permissionRE     = regexp.MustCompile(`(?i)permission denied|EACCES|operation not permitted|权限不足`)
	networkRE        = regexp.MustCompile(`(?i)connection (?:refused|reset|timed out)|no route to host|temporary failure in name resolution|network is unreachable|网络(?:错误|异常)`)
	compatibilityRE  = regexp.MustCompile(`(?i)incompatible|unsupported (?:version|platform)|requires python`)
)

// Classify scans an error string and returns zero or more issues. Multiple
// patterns can match the same text; duplicates by (package, kind) are
// dropped.
func Classify(errText string) []Issue {
	if strings.TrimSpace(errText) == "" {
		return nil
	}

	var issues []Issue
	seen := make(map[string]bool)
	add := func(issue Issue) {
		key := issue.Package + "|" + string(issue.Kind)
		if seen[key] {
			return
		}
		seen[key] = true
		issues = append(issues, issue)
	}

	for _, m := range moduleNotFoundRE.FindAllStringSubmatch(errText, -1) {
		add(missingPackageIssue(m[1]))
	}
	for _, m := range importErrorRE.FindAllStringSubmatch(errText, -1) {
		add(missingPackageIssue(m[1]))
	}
	for _, m := range notInstalledRE.FindAllStringSubmatch(errText, -1) {
		add(missingPackageIssue(m[1]))
	}

	if m := versionRE.FindStringSubmatch(errText); m != nil {
		add(Issue{
			Package: m[1],
			Kind:    KindVersionConflict,
			SuggestedSolutions: []string{
				"Pin the package to a version compatible with the tool",
				"Recreate the tool environment from its lock file",
			},
		})
	}
	if permissionRE.MatchString(errText) {
		add(Issue{
			Kind: KindPermissionError,
			SuggestedSolutions: []string{
				"Check filesystem permissions for the tool's working directory",
				"Run the tool host with the required privileges",
			},
		})
	}
	if networkRE.MatchString(errText) {
		add(Issue{
			Kind: KindNetworkError,
			SuggestedSolutions: []string{
				"Check network connectivity from the tool host",
				"Verify proxy and DNS configuration",
				"Retry after the upstream service recovers",
			},
		})
	}
	if compatibilityRE.MatchString(errText) && len(issues) == 0 {
		add(Issue{
			Kind: KindCompatibilityIssue,
			SuggestedSolutions: []string{
				"Check the tool's runtime version requirements",
				"Upgrade or downgrade the tool environment to a supported version",
			},
		})
	}
	return issues
}

func missingPackageIssue(pkg string) Issue {
	return Issue{
		Package: pkg,
		Kind:    KindMissingPackage,
		SuggestedSolutions: []string{
			fmt.Sprintf("Install the missing package %q in the tool environment", pkg),
			"Rebuild the tool environment from its dependency manifest",
		},
		InstallCommands: []string{
			fmt.Sprintf("pip install %s", pkg),
			fmt.Sprintf("conda install %s", pkg),
		},
	}
}
