package winscan

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink receives the classified window set after each poll.
type Sink func([]ForeignWindow)

// PollerConfig holds configuration for the window poller.
type PollerConfig struct {
	Interval time.Duration
	// DiagEvery controls how often a diagnostic summary is logged, in
	// polls. At the default 16ms cadence, 600 polls is roughly 30s.
	DiagEvery int
	Logger    *slog.Logger
}

// Poller rebuilds the foreign-window set on a fixed cadence and hands it to
// a sink. Per-window logging is deliberately absent; at tens of polls per
// second it would drown everything else.
type Poller struct {
	interval  time.Duration
	diagEvery int
	enum      Enumerator
	sink      Sink
	logger    *slog.Logger

	mu         sync.Mutex
	classifier *Classifier

	polls     uint64
	lastCount int
}

// NewPoller creates a poller over the given enumerator and classifier.
func NewPoller(cfg PollerConfig, enum Enumerator, classifier *Classifier, sink Sink) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	diagEvery := cfg.DiagEvery
	if diagEvery <= 0 {
		diagEvery = 600
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Poller{
		interval:   interval,
		diagEvery:  diagEvery,
		enum:       enum,
		classifier: classifier,
		sink:       sink,
		logger:     cfg.Logger,
	}
}

// Run starts the poll loop. Blocks until context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("window poller started", "interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("window poller stopped")
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll performs a single enumerate-classify-deliver pass.
func (p *Poller) poll() {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			p.logger.Error("window poller panic recovered", "error", err)
		}
	}()

	p.polls++

	p.mu.Lock()
	classifier := p.classifier
	p.mu.Unlock()

	windows, err := classifier.Scan(p.enum)
	if err != nil {
		// Enumeration failures are transient (session lock, display
		// reconfiguration). Log occasionally and keep the last set.
		if p.polls%uint64(p.diagEvery) == 1 {
			p.logger.Warn("window enumeration failed", "error", err)
		}
		return
	}

	p.lastCount = len(windows)
	if p.polls%uint64(p.diagEvery) == 0 {
		p.logger.Debug("window scan", "polls", p.polls, "windows", p.lastCount)
	}

	p.sink(windows)
}

// PollNow triggers an immediate pass, for tests and one-shot CLI queries.
func (p *Poller) PollNow() {
	p.poll()
}

// UpdateClassifier swaps the classifier in place. Used on config reload so
// denylist edits apply without restarting the daemon.
func (p *Poller) UpdateClassifier(c *Classifier) {
	p.mu.Lock()
	p.classifier = c
	p.mu.Unlock()
}
