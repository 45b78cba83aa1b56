// Package input follows the watched log file. The tail library handles the
// part the rest of the daemon must never notice: the file being truncated or
// replaced by an external log rotation while we read it.
package input

import (
	"context"
	"sync"
	"time"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"

	"github.com/closecrowd/blockwatch/internal/domain"
	"github.com/closecrowd/blockwatch/internal/ports"
)

// Tailer implements ports.LineSource over nxadm/tail with Follow+ReOpen, so
// an externally rotated or briefly missing file is picked up again under the
// same path without losing subsequently written lines.
type Tailer struct {
	filepath    string
	pollTimeout time.Duration

	mu   sync.Mutex
	tail *tail.Tail
}

// NewTailer prepares a tailer that reads from the end of filepath. The poll
// timeout bounds every NextLine call so the watcher loop regains control
// under log silence; it defaults to 10 seconds.
func NewTailer(filepath string, pollTimeout time.Duration) *Tailer {
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}
	return &Tailer{
		filepath:    filepath,
		pollTimeout: pollTimeout,
	}
}

// Start opens the tail. MustExist is off: a source that is momentarily
// absent (mid-rotation) is recoverable, not fatal.
func (t *Tailer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tail != nil {
		return nil
	}

	tl, err := tail.TailFile(t.filepath, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: 2},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return err
	}
	t.tail = tl

	log.Info().Str("file", t.filepath).Msg("tailing log file")
	return nil
}

// NextLine returns the next line with its read-time timestamp, or ok=false
// when the poll timeout elapses first. Context cancellation surfaces as an
// error so the caller can fall through to cleanup.
func (t *Tailer) NextLine(ctx context.Context) (domain.LogLine, bool, error) {
	t.mu.Lock()
	tl := t.tail
	t.mu.Unlock()

	if tl == nil {
		return domain.LogLine{}, false, ports.ErrSourceClosed
	}

	timer := time.NewTimer(t.pollTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return domain.LogLine{}, false, ctx.Err()
	case <-timer.C:
		return domain.LogLine{}, false, nil
	case line, open := <-tl.Lines:
		if !open {
			return domain.LogLine{}, false, ports.ErrSourceClosed
		}
		if line.Err != nil {
			return domain.LogLine{}, false, line.Err
		}
		text := line.Text
		if len(text) > domain.MaxLineLength {
			text = text[:domain.MaxLineLength]
			log.Warn().Int("original_size", len(line.Text)).Msg("truncated oversized log line")
		}
		return domain.LogLine{Text: text, At: time.Now()}, true, nil
	}
}

func (t *Tailer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tail == nil {
		return nil
	}
	err := t.tail.Stop()
	t.tail = nil
	return err
}
