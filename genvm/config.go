package genvm

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// engineName is the executable the locator searches for.
const engineName = "genvm"

var (
	engineOnce sync.Once
	engineExe  string
	engineErr  error
)

// enginePath resolves the engine executable once per process and caches the
// result for the host's lifetime.
func enginePath() (string, error) {
	engineOnce.Do(func() {
		engineExe, engineErr = findExecutable(engineName)
	})
	return engineExe, engineErr
}

// SetEnginePath pins the engine executable, bypassing the search. It must be
// called before the first invocation; later calls are ignored.
func SetEnginePath(path string) {
	engineOnce.Do(func() {
		engineExe = path
	})
}

// findExecutable searches for the engine binary: the NAME+"PATH" and
// NAME+"_BIN" environment variables (each treated as a direct path or as a
// directory containing the binary), then every entry of PATH. The error
// lists every candidate tried.
func findExecutable(name string) (string, error) {
	var checked []string
	upper := strings.ToUpper(name)
	for _, envVar := range []string{upper + "PATH", upper + "_BIN"} {
		v, ok := os.LookupEnv(envVar)
		if !ok {
			continue
		}
		for _, cand := range []string{v, filepath.Join(v, name)} {
			checked = append(checked, cand)
			if isRegularFile(cand) {
				return cand, nil
			}
		}
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		cand := filepath.Join(dir, name)
		checked = append(checked, cand)
		if isRegularFile(cand) {
			return cand, nil
		}
	}
	return "", errors.Errorf("can't find %s executable, searched at %v", name, checked)
}

func isRegularFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}
