package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/flowbaker/automations/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   GetVersion(),
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	version := i.Version
	if len(i.GitCommit) >= 7 {
		version = fmt.Sprintf("%s-%s", version, i.GitCommit[:7])
	}

	return fmt.Sprintf("automations %s (%s, %s)", version, i.GoVersion, i.Platform)
}

// GetVersion falls back to the module version from build info when no
// version was linked in.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return "dev"
}
