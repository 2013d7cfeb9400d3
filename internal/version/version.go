package version

import (
	"runtime"
	"runtime/debug"
)

var (
	// Set via ldflags at build time
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info returns version information
func Info() map[string]string {
	info := map[string]string{
		"version": Version,
		"commit":  Commit,
		"built":   BuildDate,
		"go":      runtime.Version(),
		"os/arch": runtime.GOOS + "/" + runtime.GOARCH,
		"godog":   "unknown",
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			if dep.Path == "github.com/cucumber/godog" {
				info["godog"] = dep.Version
			}
		}
	}
	return info
}
