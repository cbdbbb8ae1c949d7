// Package version reports the release and build of the peer-review binary.
package version

import (
	"fmt"
	"runtime"
)

// Overridden at link time, e.g.
//
//	go build -ldflags "-X github.com/peer-review/pkg/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build description printed by `peer-review version`.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func GetVersion() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders a single line, e.g.
// "peer-review 1.0 (commit 1a2b3c, built 2026-10-19, go1.24.0 linux/amd64)".
func (i Info) String() string {
	return fmt.Sprintf("peer-review %s (commit %s, built %s, %s %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}

// UserAgent is the value of the User-Agent header on outgoing mail.
func UserAgent() string {
	return "peer-review/" + Version
}
