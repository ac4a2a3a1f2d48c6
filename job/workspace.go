package job

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"framepress/logger"
	"framepress/utils"
)

// Workspace is the per-request temporary directory holding the input file
// and every encode attempt's output. It is created at most once per request
// and removed on every exit path; nothing in it survives the conversion.
type Workspace struct {
	Dir  string
	once sync.Once
}

// NewWorkspace creates a uniquely named directory under baseDir.
func NewWorkspace(baseDir, id string) (*Workspace, error) {
	suffix, err := utils.GenerateRandomHex(4)
	if err != nil {
		return nil, fmt.Errorf("failed to name workspace: %w", err)
	}
	dir := filepath.Join(baseDir, "framepress-"+id+"-"+suffix)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Path returns the absolute path for a file inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Close removes the workspace and everything in it. Safe to call more than
// once; removal failures are logged, never surfaced to the caller.
func (w *Workspace) Close() {
	w.once.Do(func() {
		if err := os.RemoveAll(w.Dir); err != nil {
			logger.Errorf("Failed to remove workspace %s: %v", w.Dir, err)
		}
	})
}
