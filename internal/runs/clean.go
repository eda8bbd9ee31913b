package runs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// StalePatterns are the files a regeneration replaces.
var StalePatterns = []string{"*.apsim", "*.tmp", "*.out", "*.sum", "*.sim"}

// Clean removes stale simulation files from dir and returns how many were
// removed. A missing dir is not an error.
func Clean(dir string) (int, error) {
	removed := 0
	for _, pattern := range StalePatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return removed, eris.Wrapf(err, "runs: glob %s", pattern)
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return removed, eris.Wrapf(err, "runs: remove %s", m)
			}
			removed++
		}
	}
	if removed > 0 {
		zap.L().Debug("runs: removed stale files", zap.String("dir", dir), zap.Int("removed", removed))
	}
	return removed, nil
}

// LockName marks an output directory held by a running batch.
const LockName = ".foresite.lock"

// ErrDirInUse means another batch holds an output directory.
var ErrDirInUse = eris.New("runs: output directory in use")

// claimDir creates dir and takes its lock for batchID. A second generator
// pointed at the same directory fails instead of cleaning files the first is
// still writing. A lock left by a crashed batch must be removed by hand.
func claimDir(dir, batchID string) (release func(), err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "runs: create %s", dir)
	}
	path := filepath.Join(dir, LockName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			holder, _ := os.ReadFile(path)
			return nil, eris.Wrapf(ErrDirInUse, "runs: %s held by batch %s (remove %s if that batch is gone)",
				dir, strings.TrimSpace(string(holder)), LockName)
		}
		return nil, eris.Wrapf(err, "runs: lock %s", dir)
	}
	_, werr := f.WriteString(batchID + "\n")
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return nil, eris.Wrapf(werr, "runs: write lock %s", path)
	}

	return func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("runs: release lock", zap.String("path", path), zap.Error(err))
		}
	}, nil
}
