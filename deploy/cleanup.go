package deploy

import (
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Cleanup removes the transient artifacts of one request. Run may be called
// any number of times; only the first call does work.
type Cleanup struct {
	mu    sync.Mutex
	paths []string
	done  bool
}

// NewCleanup tracks paths for removal.
func NewCleanup(paths ...string) *Cleanup {
	c := &Cleanup{}
	for _, p := range paths {
		c.Add(p)
	}
	return c
}

// Add tracks another path. Paths added after Run are removed immediately.
func (c *Cleanup) Add(path string) {
	if path == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		if err := os.RemoveAll(path); err != nil {
			log.Warnw("late cleanup failed", "path", path, "err", err)
		}
		return
	}
	c.paths = append(c.paths, path)
}

// Run removes every tracked path. Missing paths are not errors.
func (c *Cleanup) Run() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil
	}
	c.done = true

	var result *multierror.Error
	for i := len(c.paths) - 1; i >= 0; i-- {
		if err := os.RemoveAll(c.paths[i]); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", c.paths[i], err))
		}
	}
	c.paths = nil
	return result.ErrorOrNil()
}
