// Package block inserts offender addresses into a kernel ipset consulted by
// the firewall. Insertion is best effort: the set may already hold the
// address, the binary may be missing, the call may time out. None of that is
// allowed to stop the watcher.
package block

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Runner executes the external blocklist control command. Narrow on purpose
// so tests substitute a recorder instead of invoking the real tool.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// IPSet is the ipset-backed BlocklistClient. An empty set name disables it
// entirely. The configured home address is never inserted, whatever the
// violation kind: that check runs before anything else so a hostile log line
// can never lock the operator out.
type IPSet struct {
	set     string
	timeout time.Duration
	runner  Runner

	mu   sync.RWMutex
	home string
}

type Config struct {
	SetName     string
	HomeAddress string
	Timeout     time.Duration
}

func NewIPSet(cfg Config) *IPSet {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &IPSet{
		set:     cfg.SetName,
		home:    cfg.HomeAddress,
		timeout: cfg.Timeout,
		runner:  execRunner{},
	}
}

// SetRunner replaces the command runner. Test hook.
func (s *IPSet) SetRunner(r Runner) {
	s.runner = r
}

// SetHomeAddress swaps the allow-listed address. Called from the config
// reload path while the watcher is running.
func (s *IPSet) SetHomeAddress(addr string) {
	s.mu.Lock()
	s.home = addr
	s.mu.Unlock()
}

func (s *IPSet) HomeAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.home
}

// Block adds addr to the set. Returns inserted=false with a nil error for
// the deliberate no-ops (unconfigured set, home address). A command failure
// is returned for counting but is never fatal to the caller.
func (s *IPSet) Block(ctx context.Context, addr string) (bool, error) {
	if s.set == "" {
		return false, nil
	}
	if home := s.HomeAddress(); home != "" && home == addr {
		log.Debug().Str("addr", addr).Msg("home address, refusing to block")
		return false, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.runner.Run(cctx, "ipset", "add", s.set, addr); err != nil {
		log.Debug().Err(err).Str("addr", addr).Str("set", s.set).Msg("blocklist insert failed")
		return false, err
	}
	return true, nil
}
