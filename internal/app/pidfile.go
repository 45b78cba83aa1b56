package app

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// PidFile registers the process id at a configured location and guarantees
// removal runs exactly once, whichever termination path gets there first.
// An empty path disables it.
type PidFile struct {
	path string
	once sync.Once
}

func NewPidFile(path string) *PidFile {
	return &PidFile{path: path}
}

// Write records the current pid. Failing to register when a path is
// configured is startup-fatal for the caller.
func (p *PidFile) Write() error {
	if p.path == "" {
		return nil
	}
	if err := os.WriteFile(p.path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Remove deletes the pid file. Idempotent.
func (p *PidFile) Remove() {
	p.once.Do(func() {
		if p.path == "" {
			return
		}
		if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", p.path).Msg("removing pid file")
		}
	})
}
