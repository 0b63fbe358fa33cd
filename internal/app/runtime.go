package app

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"

	"github.com/joho/godotenv"
)

const testModeEnv = "HARVEST_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether binaries should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads HARVEST_TEST_MODE after environment changes.
func RefreshTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}
