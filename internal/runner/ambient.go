package runner

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// TestedPackageEnv names the module under discovery while glue runs.
const TestedPackageEnv = "GODOG_TESTED_PACKAGE"

// ambientMu serializes dry runs: the working directory and environment
// are process wide.
var ambientMu sync.Mutex

// withAmbient runs fn with the working directory set to dir and
// TestedPackageEnv set to pkg, restoring both afterwards, also when fn
// panics.
func withAmbient(dir, pkg string, fn func() error) (err error) {
	ambientMu.Lock()
	defer ambientMu.Unlock()

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("reading working directory: %w", err)
	}
	prev, hadPrev := os.LookupEnv(TestedPackageEnv)

	if dir != "" {
		if err := os.Chdir(dir); err != nil {
			return fmt.Errorf("entering %s: %w", dir, err)
		}
	}
	defer func() {
		if err := os.Chdir(wd); err != nil {
			log.Warn().Err(err).Str("dir", wd).Msg("failed to restore working directory")
		}
	}()

	if err := os.Setenv(TestedPackageEnv, pkg); err != nil {
		return fmt.Errorf("setting %s: %w", TestedPackageEnv, err)
	}
	defer func() {
		if hadPrev {
			os.Setenv(TestedPackageEnv, prev)
		} else {
			os.Unsetenv(TestedPackageEnv)
		}
	}()

	return fn()
}
