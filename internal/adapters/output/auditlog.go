// Package output holds the durable side of the pipeline: the CSV audit
// trail and the Prometheus metrics exporter.
package output

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/closecrowd/blockwatch/internal/domain"
)

const archiveStamp = "20060102-150405"

// AuditLog appends one CSV record per violation and rotates on demand. The
// live file is opened at construction so a misconfigured path fails startup
// instead of silently dropping records forever. An empty path disables the
// log; every method becomes a no-op.
//
// The watcher is the only writer, so the mutex only guards Append against a
// concurrently delivered Rotate in tests; in production both run on the same
// goroutine and a record whose write began before rotation always lands in
// the archived file.
type AuditLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func NewAuditLog(path string) (*AuditLog, error) {
	a := &AuditLog{path: path}
	if path == "" {
		return a, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	a.file = f
	return a, nil
}

// Append writes one record:
//
//	auth kinds: epoch,"address","identity","kind"
//	http kind:  epoch,"address",code,"request"
func (a *AuditLog) Append(rec *domain.Violation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}

	var err error
	if rec.Kind == domain.KindHTTP {
		_, err = fmt.Fprintf(a.file, "%d,\"%s\",%d,\"%s\"\n", rec.At.Unix(), rec.Addr, rec.Code, rec.Identity)
	} else {
		_, err = fmt.Fprintf(a.file, "%d,\"%s\",\"%s\",\"%s\"\n", rec.At.Unix(), rec.Addr, rec.Identity, rec.Kind)
	}
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// Rotate archives the live file under a second-granularity timestamp suffix
// and reopens a fresh empty file under the original name. A same-second
// archive name is overwritten, not merged.
func (a *AuditLog) Rotate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}

	archived := a.path + "." + time.Now().Format(archiveStamp)

	if err := a.file.Close(); err != nil {
		log.Warn().Err(err).Msg("closing audit log before rotate")
	}
	if err := os.Rename(a.path, archived); err != nil {
		// Reopen the live name either way so appends keep working.
		log.Error().Err(err).Str("archive", archived).Msg("audit log archive failed")
	}

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		a.file = nil
		return fmt.Errorf("reopen audit log after rotate: %w", err)
	}
	a.file = f

	log.Info().Str("archive", archived).Msg("audit log rotated")
	return nil
}

func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// Path returns the live file name. Empty when the log is disabled.
func (a *AuditLog) Path() string {
	return a.path
}
