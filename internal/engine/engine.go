// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/kestrelhq/kestrel/internal/analyzer"
	"github.com/kestrelhq/kestrel/internal/collector"
	"github.com/kestrelhq/kestrel/internal/model"
	"github.com/kestrelhq/kestrel/internal/store"
)

// Engine lifecycle states. The progression is one-way; a stopped engine
// cannot be restarted, build a fresh one.
const (
	StateUninitialized int32 = iota
	StateInitialized
	StateRunning
	StateStopped
)

var (
	ErrNotInitialized = errors.New("engine not initialized")
	ErrAlreadyRunning = errors.New("engine already running")
	ErrStopped        = errors.New("engine is stopped")
)

// Engine owns one collector per variant and runs each on its own interval
// in its own goroutine. It is the only component aware of all collectors.
type Engine struct {
	dbPath     string
	collectors []collector.Collector
	system     *collector.SystemCollector
	log        zerolog.Logger

	store    *store.Store
	analyzer *analyzer.Analyzer

	state  atomic.Int32
	stopCh chan struct{}
	wg     sync.WaitGroup

	totalEvents atomic.Int64
	totalAlerts atomic.Int64
}

// New creates an engine over the given collectors. The system collector is
// held separately: its output is raw telemetry and never analyzed.
func New(dbPath string, collectors []collector.Collector, system *collector.SystemCollector, log zerolog.Logger) *Engine {
	return &Engine{
		dbPath:     dbPath,
		collectors: collectors,
		system:     system,
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// Initialize opens the persistence store and logs host identity. Must
// complete before Start.
func (e *Engine) Initialize() error {
	if !e.state.CompareAndSwap(StateUninitialized, StateInitialized) {
		return fmt.Errorf("initialize from state %d", e.state.Load())
	}

	st, err := store.New(e.dbPath)
	if err != nil {
		e.state.Store(StateUninitialized)
		return fmt.Errorf("open store: %w", err)
	}
	e.store = st
	e.analyzer = analyzer.New(st, e.log)

	if info, err := host.Info(); err == nil {
		e.log.Info().
			Str("hostname", info.Hostname).
			Str("os", info.OS).
			Str("platform", info.Platform).
			Msg("engine initialized")
	} else {
		e.log.Info().Msg("engine initialized")
	}

	return nil
}

// Start launches one polling loop per collector and returns. Each loop
// runs collect -> analyze -> sleep until Stop.
func (e *Engine) Start() error {
	if !e.state.CompareAndSwap(StateInitialized, StateRunning) {
		switch e.state.Load() {
		case StateUninitialized:
			return ErrNotInitialized
		case StateRunning:
			return ErrAlreadyRunning
		default:
			return ErrStopped
		}
	}

	e.stopCh = make(chan struct{})

	for _, c := range e.collectors {
		e.wg.Add(1)
		go e.runCollector(c)
	}
	if e.system != nil {
		e.wg.Add(1)
		go e.runSystem()
	}

	e.log.Info().Int("collectors", len(e.collectors)).Msg("engine started")
	return nil
}

// Stop signals all loops, waits for their current cycle to finish, and
// closes the store. After Stop returns no further persistence happens.
func (e *Engine) Stop() {
	if !e.state.CompareAndSwap(StateRunning, StateStopped) {
		// Never started; still release the store if we opened one.
		if e.state.CompareAndSwap(StateInitialized, StateStopped) && e.store != nil {
			e.store.Close()
		}
		return
	}

	close(e.stopCh)
	e.wg.Wait()
	e.store.Close()

	e.log.Info().
		Int64("total_events", e.totalEvents.Load()).
		Int64("total_alerts", e.totalAlerts.Load()).
		Msg("engine stopped")
}

// RunSingleScan runs one synchronous collect-and-analyze cycle over every
// non-system collector and returns the raw events found. Initializes the
// engine first if needed.
func (e *Engine) RunSingleScan(ctx context.Context) ([]model.Event, error) {
	if e.state.Load() == StateUninitialized {
		if err := e.Initialize(); err != nil {
			return nil, err
		}
	}
	if e.state.Load() == StateStopped {
		return nil, ErrStopped
	}

	var all []model.Event
	for _, c := range e.collectors {
		events, err := c.Collect(ctx)
		if err != nil {
			e.log.Error().Err(err).Str("collector", c.Name()).Msg("scan collect failed")
			continue
		}
		all = append(all, events...)
	}

	e.log.Info().Int("events", len(all)).Msg("single scan complete")

	if len(all) > 0 {
		alerts := e.analyzer.AnalyzeBatch(ctx, all)
		e.totalEvents.Add(int64(len(all)))
		e.totalAlerts.Add(int64(len(alerts)))
	}

	return all, nil
}

// Stats returns the running event and alert totals.
func (e *Engine) Stats() (events, alerts int64) {
	return e.totalEvents.Load(), e.totalAlerts.Load()
}

// Store exposes the persistence handle for the query API. Valid after
// Initialize.
func (e *Engine) Store() *store.Store {
	return e.store
}

// runCollector is one collector's polling loop. A failed cycle is logged
// and retried next interval; it never affects sibling loops. Cancellation
// is observed only at the sleep boundary, so an in-progress cycle always
// completes.
func (e *Engine) runCollector(c collector.Collector) {
	defer e.wg.Done()

	log := e.log.With().Str("collector", c.Name()).Logger()
	log.Info().Dur("interval", c.Interval()).Msg("collector loop started")

	for {
		e.collectCycle(c, log)

		select {
		case <-e.stopCh:
			log.Info().Msg("collector loop stopped")
			return
		case <-time.After(c.Interval()):
		}
	}
}

// collectCycle runs one collect-and-analyze pass, isolating panics so a
// broken data source only loses its own cycle.
func (e *Engine) collectCycle(c collector.Collector, log zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			collectErrorsTotal.WithLabelValues(c.Name()).Inc()
			log.Error().Any("panic", r).Msg("collector cycle panicked")
		}
	}()

	// The poll itself is never force-cancelled; a hung source stalls
	// only this loop.
	events, err := c.Collect(context.Background())
	if err != nil {
		collectErrorsTotal.WithLabelValues(c.Name()).Inc()
		log.Error().Err(err).Msg("collect failed")
		return
	}
	if len(events) == 0 {
		return
	}

	log.Info().Int("events", len(events)).Msg("events collected")

	alerts := e.analyzer.AnalyzeBatch(context.Background(), events)

	e.totalEvents.Add(int64(len(events)))
	e.totalAlerts.Add(int64(len(alerts)))
	eventsTotal.WithLabelValues(c.Name()).Add(float64(len(events)))
	alertsTotal.WithLabelValues(c.Name()).Add(float64(len(alerts)))
}

// runSystem is the system-health loop. Samples go straight to the store,
// bypassing the analyzer.
func (e *Engine) runSystem() {
	defer e.wg.Done()

	log := e.log.With().Str("collector", e.system.Name()).Logger()
	log.Info().Dur("interval", e.system.Interval()).Msg("collector loop started")

	for {
		metric, err := e.system.Collect(context.Background())
		if err != nil {
			collectErrorsTotal.WithLabelValues(e.system.Name()).Inc()
			log.Error().Err(err).Msg("collect failed")
		} else if err := e.store.InsertMetric(metric); err != nil {
			log.Error().Err(err).Msg("failed to save metric")
		} else {
			metricSamplesTotal.Inc()
		}

		select {
		case <-e.stopCh:
			log.Info().Msg("collector loop stopped")
			return
		case <-time.After(e.system.Interval()):
		}
	}
}
