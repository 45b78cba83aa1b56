// Package app orchestrates one watcher instance: the single-threaded loop
// binding the line source, the rule chain, the blocklist sink and the audit
// log, plus the pid file and rotation flag lifecycle around it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/closecrowd/blockwatch/internal/domain"
	"github.com/closecrowd/blockwatch/internal/ports"
	"github.com/closecrowd/blockwatch/pkg/ipaddr"
	"github.com/closecrowd/blockwatch/pkg/sanitize"
)

// Classifier is what the watcher needs from a rule chain.
type Classifier interface {
	Classify(line string) *domain.Violation
}

// NopObserver satisfies ports.Observer when metrics are disabled.
type NopObserver struct{}

func (NopObserver) LineRead()               {}
func (NopObserver) Violation(_ domain.Kind) {}
func (NopObserver) Blocked()                {}
func (NopObserver) BlockFailed()            {}
func (NopObserver) Rotated()                {}

// Watcher runs the classify-and-block pipeline. One logical thread of
// control: each iteration consumes the rotation flag, reads at most one line
// within a bounded wait, classifies it, and performs the sink and audit side
// effects before the next read. Blocklist insertions and audit records
// therefore follow log arrival order exactly.
type Watcher struct {
	source   ports.LineSource
	chain    Classifier
	blocker  ports.BlocklistClient
	resolver ports.Resolver
	audit    ports.AuditSink
	obs      ports.Observer
	rotation *RotationController

	resolveWait time.Duration
	verbose     atomic.Bool
	diag        io.Writer
}

type WatcherOptions struct {
	Source   ports.LineSource
	Chain    Classifier
	Blocker  ports.BlocklistClient
	Resolver ports.Resolver
	Audit    ports.AuditSink
	Observer ports.Observer
	Rotation *RotationController

	ResolveWait time.Duration
	Verbose     bool
	Diag        io.Writer
}

func NewWatcher(opts WatcherOptions) *Watcher {
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Rotation == nil {
		opts.Rotation = NewRotationController()
	}
	if opts.ResolveWait <= 0 {
		opts.ResolveWait = 5 * time.Second
	}
	if opts.Diag == nil {
		opts.Diag = os.Stderr
	}
	w := &Watcher{
		source:      opts.Source,
		chain:       opts.Chain,
		blocker:     opts.Blocker,
		resolver:    opts.Resolver,
		audit:       opts.Audit,
		obs:         opts.Observer,
		rotation:    opts.Rotation,
		resolveWait: opts.ResolveWait,
		diag:        opts.Diag,
	}
	w.verbose.Store(opts.Verbose)
	return w
}

// SetVerbose toggles the diagnostic echo. Called from the config reload
// path.
func (w *Watcher) SetVerbose(on bool) {
	w.verbose.Store(on)
}

// Rotation exposes the controller so the signal wiring and tests can
// request rotations.
func (w *Watcher) Rotation() *RotationController {
	return w.rotation
}

// Run drives the loop until the context is cancelled or the source closes.
// SIGHUP sets the rotation flag; the goroutine receiving it does no I/O.
// Nothing inside an iteration is fatal: classification misses, resolution
// failures and sink errors all just advance the loop.
func (w *Watcher) Run(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	loopDone := make(chan struct{})
	defer close(loopDone)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-loopDone:
				return
			case <-hup:
				w.rotation.Request()
			}
		}
	}()

	log.Info().Msg("watcher started")

	for {
		if w.rotation.Consume() {
			if err := w.audit.Rotate(); err != nil {
				log.Error().Err(err).Msg("audit rotation failed")
			} else {
				w.obs.Rotated()
			}
		}

		line, ok, err := w.source.NextLine(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if errors.Is(err, ports.ErrSourceClosed) {
				log.Info().Msg("line source closed")
				return nil
			}
			log.Warn().Err(err).Msg("error reading line")
			continue
		}
		if !ok {
			// Bounded wait expired; loop around so a pending rotation
			// request is observed even under log silence.
			continue
		}

		w.handleLine(ctx, line)
	}
}

func (w *Watcher) handleLine(ctx context.Context, line domain.LogLine) {
	w.obs.LineRead()

	if w.verbose.Load() {
		fmt.Fprintln(w.diag, sanitize.Line(line.Text))
	}

	text := strings.TrimSpace(line.Text)
	if text == "" {
		return
	}

	v := w.chain.Classify(text)
	if v == nil {
		return
	}
	v.At = line.At

	addr, ok := w.finalAddr(ctx, v)
	if !ok {
		log.Debug().Str("candidate", v.Addr).Str("kind", string(v.Kind)).Msg("violation dropped, no usable address")
		return
	}
	v.Addr = addr

	// Block first, then audit: the record for a violation must never land
	// before its insertion attempt.
	inserted, err := w.blocker.Block(ctx, addr)
	switch {
	case err != nil:
		w.obs.BlockFailed()
	case inserted:
		w.obs.Blocked()
		log.Info().Str("addr", addr).Str("kind", string(v.Kind)).Str("identity", v.Identity).Msg("blocked")
	}

	if err := w.audit.Append(v); err != nil {
		log.Warn().Err(err).Msg("audit append failed")
	}
	w.obs.Violation(v.Kind)
}

// finalAddr validates the captured candidate. Only the disallowed-user rule
// can capture a hostname, so only that kind gets the resolution fallback;
// everything else drops on a failed dotted-quad check.
func (w *Watcher) finalAddr(ctx context.Context, v *domain.Violation) (string, bool) {
	if ipaddr.Validate(v.Addr) == ipaddr.Valid {
		return v.Addr, true
	}
	if v.Kind != domain.KindDisallowed || w.resolver == nil {
		return "", false
	}

	rctx, cancel := context.WithTimeout(ctx, w.resolveWait)
	defer cancel()

	addr := ipaddr.ResolveLast(rctx, w.resolver, v.Addr)
	return addr, addr != ""
}
