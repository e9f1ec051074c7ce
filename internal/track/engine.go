package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/stridelog/stridelog/internal/ledger"
	"github.com/stridelog/stridelog/internal/source"
	"github.com/stridelog/stridelog/internal/store"
)

// Config holds the engine's tunable intervals and thresholds. Zero
// fields take the defaults below.
type Config struct {
	// FlushInterval is the periodic persistence cadence while tracking.
	FlushInterval time.Duration
	// PollInterval is the pull-source query cadence.
	PollInterval time.Duration
	// StaleCheckInterval is how often the foreground refresh checks
	// for missing updates.
	StaleCheckInterval time.Duration
	// StaleAfter is how long without a reading before the refresh
	// triggers a re-poll and re-emits the latest snapshot.
	StaleAfter time.Duration
	// SessionStaleAfter force-closes a recovered session older than
	// this instead of resuming it.
	SessionStaleAfter time.Duration
	// QueryTimeout bounds a single provider query.
	QueryTimeout time.Duration
	// RetryStep and RetryMax bound the stream resubscribe backoff:
	// delay = min(retries*RetryStep, RetryMax).
	RetryStep time.Duration
	RetryMax  time.Duration
	// ResetTolerance is the negative slack before a dropping reading
	// counts as a counter reset.
	ResetTolerance int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FlushInterval:      10 * time.Second,
		PollInterval:       30 * time.Second,
		StaleCheckInterval: 15 * time.Second,
		StaleAfter:         45 * time.Second,
		SessionStaleAfter:  12 * time.Hour,
		QueryTimeout:       2 * time.Second,
		RetryStep:          2 * time.Second,
		RetryMax:           10 * time.Second,
		ResetTolerance:     DefaultResetTolerance,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.StaleCheckInterval <= 0 {
		c.StaleCheckInterval = d.StaleCheckInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.SessionStaleAfter <= 0 {
		c.SessionStaleAfter = d.SessionStaleAfter
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	if c.RetryStep <= 0 {
		c.RetryStep = d.RetryStep
	}
	if c.RetryMax <= 0 {
		c.RetryMax = d.RetryMax
	}
	if c.ResetTolerance <= 0 {
		c.ResetTolerance = d.ResetTolerance
	}
	return c
}

// Engine is the single-writer tracking engine.
//
// All mutations of the tracking state and ledger happen in the Run
// loop goroutine. Concurrent inputs (stream readings, poll results,
// lifecycle edges, flush and staleness timers, public API commands)
// are serialized onto one FIFO queue.
//
// Thread-safety model:
//   - Enqueue paths (NotifyLifecycle, stream/poll goroutines): safe
//     from any goroutine.
//   - Public commands (StartTracking, StopTracking, ...): safe from
//     any goroutine; they block until the loop replies, preserving the
//     synchronous durability guarantees of start and stop.
//   - Getters: served from an atomically published snapshot, never
//     touching loop-owned state.
//   - Run: must be called from exactly one goroutine, after Init.
type Engine struct {
	cfg Config
	kv  store.KV

	// Loop-owned. Never touched outside Init and the Run goroutine.
	state         trackingState
	led           *ledger.Ledger
	dirty         bool
	lastReadingAt time.Time

	queue *eventQueue
	clock *Clock
	emit  *emitter

	streams   []source.Stream
	providers []source.Provider

	now func() time.Time

	snap     atomic.Pointer[Snapshot]
	histSnap atomic.Pointer[[]ledger.Session]

	initialized atomic.Bool
	done        chan struct{}
	closeOnce   sync.Once
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithStream adds a push-style counter source.
func WithStream(s source.Stream) Option {
	return func(e *Engine) { e.streams = append(e.streams, s) }
}

// WithProvider adds a pull-style counter source.
func WithProvider(p source.Provider) Option {
	return func(e *Engine) { e.providers = append(e.providers, p) }
}

// WithNow overrides the wall clock. For tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given durable store. The engine is
// explicitly owned by the caller: construct, Init, Run, Close.
func New(cfg Config, kv store.KV, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg.withDefaults(),
		kv:    kv,
		led:   ledger.New(),
		queue: newEventQueue(),
		clock: NewClock(),
		emit:  newEmitter(),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init rehydrates state from the durable store and runs the one-time
// recovery pass. Must be called once, before Run; nothing is emitted
// until it completes.
//
// Corrupt records are discarded (fail open to idle), never fatal. A
// store I/O failure is returned: without the store the engine cannot
// honor its durability points.
func (e *Engine) Init(ctx context.Context) error {
	if e.initialized.Load() {
		return errors.New("engine already initialized")
	}

	rec, err := e.loadTrackingRecord(ctx)
	if err != nil {
		return err
	}

	sessions, err := e.loadHistory(ctx)
	if err != nil {
		return err
	}
	e.led = ledger.Restore(sessions, rec.LifetimeTotal)

	e.state = trackingState{
		isTracking:     rec.IsTracking,
		sessionSteps:   rec.SessionSteps,
		lastCumulative: rec.LastCumulative,
		hasObserved:    rec.LastCumulative > 0 || rec.SessionBaseline != nil,
	}
	if rec.StartTime != nil {
		e.state.sessionStart = *rec.StartTime
	}
	if rec.SessionBaseline != nil {
		e.state.baseline = *rec.SessionBaseline
		e.state.hasBaseline = true
	}

	if e.state.isTracking {
		e.recoverSession(ctx)
	}

	e.updateHistorySnapshot()
	e.publish()
	e.initialized.Store(true)

	slog.Info("tracking engine initialized",
		"tracking", e.state.isTracking,
		"session_steps", e.state.sessionSteps,
		"lifetime_total", e.led.Lifetime(),
		"history", e.led.Len(),
	)
	return nil
}

func (e *Engine) loadTrackingRecord(ctx context.Context) (store.TrackingRecord, error) {
	raw, found, err := e.kv.Get(ctx, store.KeyTrackingState)
	if err != nil {
		return store.TrackingRecord{}, fmt.Errorf("load tracking state: %w", err)
	}
	if !found {
		return store.TrackingRecord{}, nil
	}
	rec, err := store.DecodeTrackingRecord(raw)
	if err != nil {
		// Fail open to idle: only the in-flight session is lost.
		slog.Warn("discarding corrupt tracking-state record", "error", err)
		return store.TrackingRecord{}, nil
	}
	return rec, nil
}

func (e *Engine) loadHistory(ctx context.Context) ([]ledger.Session, error) {
	raw, found, err := e.kv.Get(ctx, store.KeySessionHistory)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	if !found {
		return nil, nil
	}
	sessions, skipped, err := store.DecodeHistory(raw)
	if err != nil {
		slog.Warn("discarding corrupt session-history record", "error", err)
		return nil, nil
	}
	if skipped > 0 {
		slog.Warn("skipped corrupt session-history entries", "skipped", skipped)
	}
	return sessions, nil
}

// recoverSession resumes (or force-closes) a session that was open when
// the process was last killed.
func (e *Engine) recoverSession(ctx context.Context) {
	now := e.now()

	// A session that has been "open" longer than the staleness
	// threshold was abandoned, not suspended. Close it into history
	// instead of attributing a day's worth of counter movement to it.
	if now.Sub(e.state.sessionStart) > e.cfg.SessionStaleAfter {
		slog.Warn("force-closing stale recovered session",
			"started", e.state.sessionStart,
			"steps", e.state.sessionSteps,
		)
		e.closeActiveSession(now)
		e.flush(ctx, "recover")
		return
	}

	if !e.state.hasBaseline {
		// Killed before the first reading arrived: recover as a fresh
		// start against the current series, discarding elapsed time.
		slog.Info("recovered session had no baseline; restarting it")
		e.state.openSession(now)
		e.flush(ctx, "recover")
		return
	}

	// Attribute the gap covered while the process was not running.
	current, err := e.queryAnyProvider(ctx)
	if err != nil {
		// No source reachable right now: resume from persisted state
		// and let the next reading reconcile the gap.
		slog.Warn("recovery query failed; resuming from persisted state", "error", err)
		return
	}

	switch {
	case current < e.state.lastCumulative-e.cfg.ResetTolerance:
		// Counter reset while we were down (device reboot). Rebase.
		counterResetsTotal.Inc()
		e.state.baseline = current
		e.state.lastCumulative = current
	case current > e.state.lastCumulative:
		gap := current - e.state.lastCumulative
		e.state.sessionSteps += gap
		e.state.lastCumulative = current
		slog.Info("recovered offline step gap", "gap", gap)
	}
	e.state.lastCheckpoint = now
	e.flush(ctx, "recover")
}

// queryAnyProvider returns the first successful cumulative value from
// the configured pull sources, each bounded by QueryTimeout.
func (e *Engine) queryAnyProvider(ctx context.Context) (int64, error) {
	if len(e.providers) == 0 {
		return 0, source.ErrUnavailable
	}
	var lastErr error
	for _, p := range e.providers {
		qctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
		value, err := p.QueryCumulative(qctx, time.Unix(0, 0), e.now())
		cancel()
		if err == nil {
			return value, nil
		}
		lastErr = err
		slog.Debug("provider query failed", "provider", p.Name(), "error", err)
	}
	return 0, lastErr
}

// Run starts the single-writer event loop plus the goroutines that
// feed it (stream subscriptions, poll timer, flush timer, staleness
// timer). Blocks until ctx is cancelled or Close is called.
func (e *Engine) Run(ctx context.Context) error {
	if !e.initialized.Load() {
		return errors.New("engine not initialized; call Init first")
	}
	slog.Info("tracking engine starting",
		"streams", len(e.streams),
		"providers", len(e.providers),
	)

	auxCtx, cancelAux := context.WithCancel(ctx)
	var aux sync.WaitGroup

	for _, s := range e.streams {
		aux.Add(1)
		go func(s source.Stream) {
			defer aux.Done()
			e.consumeStream(auxCtx, s)
		}(s)
	}
	if len(e.providers) > 0 {
		aux.Add(1)
		go func() {
			defer aux.Done()
			e.tickLoop(auxCtx, e.cfg.PollInterval, func() { e.pollOnce(auxCtx) })
		}()
	}
	aux.Add(1)
	go func() {
		defer aux.Done()
		e.tickLoop(auxCtx, e.cfg.FlushInterval, func() { e.queue.Enqueue(event{kind: eventFlushTick}) })
	}()
	aux.Add(1)
	go func() {
		defer aux.Done()
		e.tickLoop(auxCtx, e.cfg.StaleCheckInterval, func() { e.queue.Enqueue(event{kind: eventStaleTick}) })
	}()

	defer func() {
		cancelAux()
		aux.Wait()
		e.finalize()
	}()

	for {
		ev, ok := e.queue.TryDequeue()
		if ok {
			e.processEvent(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("tracking engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// Wait's channel closes when the queue closes, so this
			// case fires immediately once Close is called; remaining
			// events drain through TryDequeue above.
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("tracking engine stopping: closed")
				return nil
			}
		}
	}
}

// finalize flushes the last state and shuts the emitter. Runs exactly
// once, as the Run loop exits.
func (e *Engine) finalize() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.QueryTimeout)
	defer cancel()
	if e.dirty {
		e.flush(ctx, "close")
	}
	e.emit.Close()
	close(e.done)
}

// Close disposes the engine: the queue stops accepting input, the Run
// loop drains what is queued, flushes, and closes the emitter so no
// further snapshots are delivered. Idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.queue.Close()
	})
	return nil
}

// processEvent routes one event. Called only from the Run goroutine.
func (e *Engine) processEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case eventReading:
		e.handleReading(ev.reading)

	case eventLifecycle:
		e.handleLifecycle(ctx, ev.phase)

	case eventFlushTick:
		if e.state.isTracking && e.dirty {
			e.flush(ctx, "interval")
		}

	case eventStaleTick:
		e.handleStaleCheck(ctx)

	case eventCommand:
		ev.cmd.reply <- e.handleCommand(ctx, ev.cmd.kind)

	default:
		slog.Error("unknown event kind", "kind", ev.kind)
	}
}

func (e *Engine) handleReading(r source.Reading) {
	now := e.now()
	outcome, delta := e.state.applyReading(r, e.cfg.ResetTolerance, now)
	e.lastReadingAt = now

	readingsTotal.WithLabelValues(r.Origin, outcome.String()).Inc()
	switch outcome {
	case outcomeDiscarded:
		return
	case outcomeReset:
		counterResetsTotal.Inc()
		slog.Warn("counter reset detected; rebasing",
			"origin", r.Origin,
			"cumulative", r.Cumulative,
		)
	case outcomeAccrued:
		slog.Debug("steps accrued", "origin", r.Origin, "delta", delta)
	}

	e.dirty = true
	e.publish()
}

func (e *Engine) handleLifecycle(ctx context.Context, phase LifecyclePhase) {
	slog.Debug("lifecycle edge", "phase", phase)
	switch phase {
	case PhaseResumed:
		// Coming back to the foreground: the counter moved while we
		// were suspended. Re-poll off-loop and re-emit what we have.
		go e.pollOnce(ctx)
		e.publish()

	case PhasePaused:
		e.flush(ctx, "background")

	case PhaseDetached:
		e.flush(ctx, "detach")
	}
}

func (e *Engine) handleStaleCheck(ctx context.Context) {
	if e.lastReadingAt.IsZero() || e.now().Sub(e.lastReadingAt) < e.cfg.StaleAfter {
		return
	}
	slog.Debug("no recent reading; re-polling", "last", e.lastReadingAt)
	go e.pollOnce(ctx)
	e.publish()
}

func (e *Engine) handleCommand(ctx context.Context, kind cmdKind) error {
	switch kind {
	case cmdStart:
		return e.handleStart(ctx)
	case cmdStop:
		return e.handleStop(ctx)
	case cmdClearHistory:
		return e.handleClearHistory(ctx)
	case cmdResetTotal:
		return e.handleResetTotal(ctx)
	default:
		return fmt.Errorf("unknown command %d", kind)
	}
}

func (e *Engine) handleStart(ctx context.Context) error {
	if e.state.isTracking {
		return NewTrackError(ErrCodeTrackingActive, "session already open")
	}
	if len(e.streams) == 0 && len(e.providers) == 0 {
		return NewTrackError(ErrCodeSourceUnavailable, "no counter source configured")
	}

	// Fetch a baseline if we have never seen a reading. Bounded by
	// QueryTimeout: start is synchronous by contract, so a short
	// in-loop query is acceptable here (unlike the poll path).
	if !e.state.hasObserved && len(e.providers) > 0 {
		current, err := e.queryAnyProvider(ctx)
		switch {
		case err == nil:
			e.state.lastCumulative = current
			e.state.hasObserved = true
		case errors.Is(err, source.ErrAuthorizationDenied) && len(e.streams) == 0:
			return WrapTrackError(ErrCodeAuthorizationDenied, "counter source denied access", err)
		case len(e.streams) == 0:
			return WrapTrackError(ErrCodeSourceUnavailable, "counter source unreachable", err)
		default:
			// A stream is configured: start with an undefined
			// baseline, resolved by its first reading.
			slog.Debug("start without baseline; waiting for first reading", "error", err)
		}
	}

	prev := e.state
	e.state.openSession(e.now())

	// Durability point: a kill immediately after start must recover.
	if err := e.flush(ctx, "start"); err != nil {
		e.state = prev
		// The tracking key may have been written before the failure;
		// rewrite the idle record so a restart does not recover a
		// session that was never reported as started.
		if revErr := e.flush(ctx, "revert"); revErr != nil {
			slog.Warn("reverting partial session-start persist failed", "error", revErr)
		}
		return fmt.Errorf("persisting session start: %w", err)
	}

	slog.Info("session started",
		"baseline", e.state.baseline,
		"has_baseline", e.state.hasBaseline,
	)
	e.publish()
	return nil
}

func (e *Engine) handleStop(ctx context.Context) error {
	if !e.state.isTracking {
		return nil
	}

	e.closeActiveSession(e.now())

	// Durability point 2. The session is already closed in memory;
	// a flush failure is logged, not surfaced as a failed stop.
	if err := e.flush(ctx, "stop"); err != nil {
		slog.Error("persisting session stop failed", "error", err)
	}
	e.publish()
	return nil
}

// closeActiveSession folds the open session into the ledger (when it
// accrued any steps) and resets the session-scoped state.
func (e *Engine) closeActiveSession(now time.Time) {
	if e.state.sessionSteps > 0 {
		s := ledger.Session{
			ID:        uuid.New().String(),
			Steps:     e.state.sessionSteps,
			StartTime: e.state.sessionStart,
			EndTime:   now,
		}
		if err := e.led.Append(s); err != nil {
			slog.Error("closing session", "error", err)
		} else {
			slog.Info("session closed", "id", s.ID, "steps", s.Steps)
		}
		e.updateHistorySnapshot()
	}
	e.state.closeSession()
	e.dirty = true
}

func (e *Engine) handleClearHistory(ctx context.Context) error {
	if e.state.isTracking {
		return NewTrackError(ErrCodeTrackingActive, "cannot clear history while tracking")
	}
	e.led.ClearHistory()
	e.updateHistorySnapshot()
	if err := e.flush(ctx, "clear"); err != nil {
		slog.Error("persisting history clear failed", "error", err)
	}
	e.publish()
	return nil
}

func (e *Engine) handleResetTotal(ctx context.Context) error {
	if e.state.isTracking {
		return NewTrackError(ErrCodeTrackingActive, "cannot reset total while tracking")
	}
	if err := e.led.ResetLifetime(); err != nil {
		return WrapTrackError(ErrCodeHistoryNotEmpty, "cannot reset total", err)
	}
	if err := e.flush(ctx, "reset"); err != nil {
		slog.Error("persisting total reset failed", "error", err)
	}
	e.publish()
	return nil
}

// flush writes the full state snapshot to the store: two independent
// keys, last-writer-wins, so a crash mid-write to one cannot corrupt
// the other.
func (e *Engine) flush(ctx context.Context, trigger string) error {
	rec := store.TrackingRecord{
		IsTracking:     e.state.isTracking,
		SessionSteps:   e.state.sessionSteps,
		LastCumulative: e.state.lastCumulative,
		LifetimeTotal:  e.led.Lifetime(),
	}
	if e.state.isTracking {
		start := e.state.sessionStart
		rec.StartTime = &start
	}
	if e.state.hasBaseline {
		baseline := e.state.baseline
		rec.SessionBaseline = &baseline
	}

	trackingJSON, err := store.EncodeTrackingRecord(rec)
	if err != nil {
		flushErrorsTotal.Inc()
		return err
	}
	historyJSON, err := store.EncodeHistory(e.led.History())
	if err != nil {
		flushErrorsTotal.Inc()
		return err
	}

	if err := e.kv.Set(ctx, store.KeyTrackingState, trackingJSON); err != nil {
		flushErrorsTotal.Inc()
		return fmt.Errorf("flush tracking state: %w", err)
	}
	if err := e.kv.Set(ctx, store.KeySessionHistory, historyJSON); err != nil {
		flushErrorsTotal.Inc()
		return fmt.Errorf("flush session history: %w", err)
	}

	flushesTotal.WithLabelValues(trigger).Inc()
	e.dirty = false
	return nil
}

// pollOnce queries the pull sources off-loop and enqueues the result
// as an ordinary reading: fetch-then-reconcile, never I/O under the
// loop's state.
func (e *Engine) pollOnce(ctx context.Context) {
	for _, p := range e.providers {
		qctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
		value, err := p.QueryCumulative(qctx, time.Unix(0, 0), e.now())
		cancel()
		if err != nil {
			// Degrade to "no update this cycle"; the next trigger retries.
			slog.Debug("poll failed", "provider", p.Name(), "error", err)
			continue
		}
		e.queue.Enqueue(event{kind: eventReading, reading: source.Reading{
			Origin:     p.Name(),
			Cumulative: value,
			ObservedAt: e.now(),
		}})
	}
}

// consumeStream pumps readings from a push source into the queue,
// resubscribing with bounded exponential backoff on failure. The
// retry counter resets on any successful event.
func (e *Engine) consumeStream(ctx context.Context, s source.Stream) {
	retries := 0
	for {
		if ctx.Err() != nil {
			return
		}

		ch, err := s.Subscribe(ctx)
		if err != nil {
			retries++
			streamReconnectsTotal.WithLabelValues(s.Name()).Inc()
			slog.Warn("stream subscribe failed; retrying",
				"stream", s.Name(),
				"retries", retries,
				"error", err,
			)
			if !sleepCtx(ctx, e.backoffDelay(retries)) {
				return
			}
			continue
		}

		for r := range ch {
			retries = 0
			e.queue.Enqueue(event{kind: eventReading, reading: r})
		}
		if ctx.Err() != nil {
			return
		}

		// Channel closed while the context is still live: stream
		// error. A failed subscription must not terminate tracking.
		retries++
		streamReconnectsTotal.WithLabelValues(s.Name()).Inc()
		slog.Warn("stream ended; resubscribing", "stream", s.Name(), "retries", retries)
		if !sleepCtx(ctx, e.backoffDelay(retries)) {
			return
		}
	}
}

func (e *Engine) backoffDelay(retries int) time.Duration {
	d := time.Duration(retries) * e.cfg.RetryStep
	if d > e.cfg.RetryMax {
		d = e.cfg.RetryMax
	}
	return d
}

// sleepCtx waits d, returning false when ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// tickLoop invokes fn on every interval tick until ctx is cancelled.
func (e *Engine) tickLoop(ctx context.Context, interval time.Duration, fn func()) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

// publish assembles the current snapshot, stores it for getters, and
// broadcasts it.
func (e *Engine) publish() {
	total := e.led.Lifetime()
	if e.state.isTracking {
		total += e.state.sessionSteps
	}
	s := Snapshot{
		TotalSteps:       total,
		SystemCumulative: e.state.lastCumulative,
		SessionSteps:     e.state.sessionSteps,
		IsTracking:       e.state.isTracking,
		Seq:              e.clock.Next(),
	}
	e.snap.Store(&s)
	sessionStepsGauge.Set(float64(s.SessionSteps))
	lifetimeStepsGauge.Set(float64(s.TotalSteps))
	e.emit.Publish(s)
}

func (e *Engine) updateHistorySnapshot() {
	h := e.led.History()
	e.histSnap.Store(&h)
}

// do routes a public command through the loop and waits for its reply.
func (e *Engine) do(kind cmdKind) error {
	cmd := &command{kind: kind, reply: make(chan error, 1)}
	if !e.queue.Enqueue(event{kind: eventCommand, cmd: cmd}) {
		return NewTrackError(ErrCodeEngineClosed, "engine closed")
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-e.done:
		return NewTrackError(ErrCodeEngineClosed, "engine closed")
	}
}

// StartTracking begins a new session. Returns false when a session is
// already open or no counter source can be queried.
func (e *Engine) StartTracking() bool {
	if err := e.do(cmdStart); err != nil {
		slog.Warn("start tracking refused", "error", err)
		return false
	}
	return true
}

// StopTracking closes the open session into history. Stopping an idle
// engine is a successful no-op.
func (e *Engine) StopTracking() bool {
	if err := e.do(cmdStop); err != nil {
		slog.Warn("stop tracking failed", "error", err)
		return false
	}
	return true
}

// ClearSessionHistory removes all completed sessions. Returns false
// while a session is open.
func (e *Engine) ClearSessionHistory() bool {
	if err := e.do(cmdClearHistory); err != nil {
		slog.Warn("clear history refused", "error", err)
		return false
	}
	return true
}

// ClearTotalSteps zeroes the lifetime total. Returns false while a
// session is open or history is non-empty. Documented precondition,
// not a hard error: callers check state first.
func (e *Engine) ClearTotalSteps() bool {
	if err := e.do(cmdResetTotal); err != nil {
		slog.Warn("clear total refused", "error", err)
		return false
	}
	return true
}

// NotifyLifecycle delivers an app lifecycle edge to the engine.
func (e *Engine) NotifyLifecycle(phase LifecyclePhase) {
	e.queue.Enqueue(event{kind: eventLifecycle, phase: phase})
}

// IsTracking reports whether a session is open.
func (e *Engine) IsTracking() bool {
	return e.Snapshot().IsTracking
}

// TotalSteps returns the lifetime total including the open session.
func (e *Engine) TotalSteps() int64 {
	return e.Snapshot().TotalSteps
}

// SessionSteps returns the open session's step count (0 when idle).
func (e *Engine) SessionSteps() int64 {
	return e.Snapshot().SessionSteps
}

// SystemCumulative returns the last raw counter value seen.
func (e *Engine) SystemCumulative() int64 {
	return e.Snapshot().SystemCumulative
}

// Snapshot returns the latest published snapshot.
func (e *Engine) Snapshot() Snapshot {
	if s := e.snap.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// SessionHistory returns the completed sessions in completion order.
func (e *Engine) SessionHistory() []ledger.Session {
	if h := e.histSnap.Load(); h != nil {
		out := make([]ledger.Session, len(*h))
		copy(out, *h)
		return out
	}
	return nil
}

// Subscribe registers an update subscriber. Delivery is lossy under
// backpressure but the latest snapshot is always eventually delivered.
// The cancel func releases the subscription.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	return e.emit.Subscribe()
}
