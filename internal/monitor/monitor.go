// Package monitor watches a process's live log stream and triggers the
// incident pipeline once per burst of matching lines.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/dbugger/internal/debounce"
	"github.com/linnemanlabs/dbugger/internal/keyword"
	"github.com/linnemanlabs/dbugger/internal/logbus"
)

// Trigger handles one debounced incident. raw is the text of the last
// matching line in the burst.
type Trigger func(ctx context.Context, raw string)

// Options configures a Monitor.
type Options struct {
	ProcessName string
	Keywords    keyword.Set
	QuietPeriod time.Duration
	Bus         *logbus.Bus
	Trigger     Trigger
	Logger      log.Logger

	// OnMatch, when set, is called for every matching line before debouncing.
	OnMatch func()
}

// Monitor filters bus events for one process and debounces keyword matches.
type Monitor struct {
	process  string
	keywords keyword.Set
	quiet    time.Duration
	bus      *logbus.Bus
	trigger  Trigger
	logger   log.Logger
	onMatch  func()

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

// New creates a Monitor. Bus and Trigger are required.
func New(opts Options) *Monitor {
	if opts.Bus == nil {
		panic(xerrors.New("monitor bus is required"))
	}
	if opts.Trigger == nil {
		panic(xerrors.New("monitor trigger is required"))
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = debounce.DefaultQuietPeriod
	}
	return &Monitor{
		process:  opts.ProcessName,
		keywords: opts.Keywords,
		quiet:    opts.QuietPeriod,
		bus:      opts.Bus,
		trigger:  opts.Trigger,
		logger:   opts.Logger.With("process", opts.ProcessName),
		onMatch:  opts.OnMatch,
	}
}

// Run subscribes to the bus and blocks until ctx is cancelled. On return the
// subscription is removed, a pending debounced call is dropped and any
// trigger already running has finished.
func (m *Monitor) Run(ctx context.Context) error {
	runCtx := context.WithoutCancel(ctx)

	d := debounce.New(m.quiet, func(raw string) {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		m.inflight.Add(1)
		m.mu.Unlock()
		defer m.inflight.Done()

		m.logger.Warn(runCtx, "error keyword detected, handling error")
		m.trigger(runCtx, raw)
	})

	id := m.bus.Subscribe(func(ev logbus.Event) {
		if ev.Process != m.process {
			return
		}
		if !m.keywords.Match(ev.Text) {
			return
		}
		if m.onMatch != nil {
			m.onMatch()
		}
		m.logger.Info(ctx, "keyword match", "stream", ev.Stream, "line", ev.Text)
		d.Schedule(ev.Text)
	})

	m.logger.Info(ctx, "monitoring process log stream",
		"keywords", m.keywords.Words(),
		"quiet_period", m.quiet.String(),
	)

	<-ctx.Done()

	m.bus.Unsubscribe(id)
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	if d.Stop() {
		m.logger.Info(runCtx, "dropped pending incident on shutdown")
	}
	m.inflight.Wait()
	return nil
}
