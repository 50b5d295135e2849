// Package buildinfo resolves a version tag for the host binary, for callers
// that want reports tagged without plumbing a version string through their
// own build.
package buildinfo

import "runtime/debug"

// Version returns the host binary's main module version, falling back to the
// embedded VCS revision. It returns the empty string when neither is
// available (for example under `go run`).
func Version() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	var revision string
	var modified bool
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if revision == "" {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if modified {
		revision += "-dirty"
	}
	return revision
}
