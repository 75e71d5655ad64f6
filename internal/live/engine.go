// Package live polls the store for the newest dynamic-graph buckets and hands
// each batch to a callback, which pushes it to connected browsers.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"energyweb/internal/dataset"
)

// DefaultInterval matches the second*10 bucket width.
const DefaultInterval = 10 * time.Second

// State represents the feed state.
type State struct {
	Running    bool          `json:"running"`
	LastRecord time.Time     `json:"last_record"`
	Interval   time.Duration `json:"interval"`
}

// Callback receives feed events.
type Callback interface {
	OnState(state State)
	OnPoints(dump *dataset.PointDump)
}

// Source assembles the dynamic graph from a requested start.
type Source interface {
	DynamicGraph(ctx context.Context, requested time.Time) (*dataset.PointDump, error)
}

// Engine polls Source every interval while running. Each poll resumes after
// the last bucket it emitted.
type Engine struct {
	mu       sync.Mutex
	src      Source
	callback Callback
	log      logrus.FieldLogger
	interval time.Duration

	running bool
	last    time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(src Source, cb Callback, log logrus.FieldLogger, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{src: src, callback: cb, log: log, interval: interval}
}

// State returns the current feed state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	return State{Running: e.running, LastRecord: e.last, Interval: e.interval}
}

// Start begins polling. Starting a running engine does nothing.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	e.log.WithField("interval", e.interval).Info("Live feed started")
	e.broadcastState()
	go e.loop(ctx, done)
}

// Stop halts polling and waits for an in-flight poll to finish. Stopping a
// stopped engine does nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	done := e.done
	e.mu.Unlock()

	<-done
	e.log.Info("Live feed stopped")
	e.broadcastState()
}

// Reset forgets the last emitted bucket, so the next poll sends the whole
// dynamic window again.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.last = time.Time{}
	e.mu.Unlock()
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		if _, err := e.Poll(ctx); err != nil && ctx.Err() == nil {
			e.log.WithError(err).Error("Live poll failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll fetches buckets newer than the last emitted one and passes them to the
// callback. It reports whether anything was emitted.
func (e *Engine) Poll(ctx context.Context) (bool, error) {
	e.mu.Lock()
	var from time.Time
	if !e.last.IsZero() {
		// Bucket keys are whole seconds; skip the bucket already sent.
		from = e.last.Add(time.Second)
	}
	e.mu.Unlock()

	d, err := e.src.DynamicGraph(ctx, from)
	if err != nil {
		return false, err
	}
	if d.NoResults {
		return false, nil
	}

	e.mu.Lock()
	e.last = time.UnixMilli(d.LastRecord).UTC()
	e.mu.Unlock()

	e.callback.OnPoints(d)
	return true, nil
}

func (e *Engine) broadcastState() {
	e.mu.Lock()
	s := e.stateLocked()
	e.mu.Unlock()
	e.callback.OnState(s)
}
