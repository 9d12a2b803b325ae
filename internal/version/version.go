package version

// Build metadata, set via -ldflags.
var (
	Version = "dev"
	Commit  = ""
)

// String renders "version (commit)" with the commit truncated to 12 chars.
func String() string {
	if Commit == "" {
		return Version
	}
	commit := Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return Version + " (" + commit + ")"
}
