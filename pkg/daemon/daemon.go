package daemon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/qaorchestrator/core/pkg/batchopt"
	"github.com/qaorchestrator/core/pkg/decision"
	"github.com/qaorchestrator/core/pkg/escalation"
	"github.com/qaorchestrator/core/pkg/eventbus"
	"github.com/qaorchestrator/core/pkg/log"
	"github.com/qaorchestrator/core/pkg/metrics"
	"github.com/qaorchestrator/core/pkg/patternindex"
	"github.com/qaorchestrator/core/pkg/qatypes"
	"github.com/qaorchestrator/core/pkg/scorer"
	"github.com/qaorchestrator/core/pkg/taskqueue"
	"github.com/qaorchestrator/core/pkg/worker"
	"github.com/qaorchestrator/core/pkg/workerregistry"
)

// Deps bundles the Daemon's collaborators (teacher's Manager-constructor
// bundling style, pkg/manager/manager.go).
type Deps struct {
	Queue       taskqueue.TaskQueue
	Registry    workerregistry.WorkerRegistry
	Supervisor  *worker.Supervisor
	Escalations *escalation.Manager
	Patterns    *patternindex.Index
	Bus         eventbus.EventBus
	Churn       qatypes.ChurnWatchlist
	Thresholds  decision.Thresholds
}

// batchTracking is the per-batch bookkeeping needed to retry or finalize a
// dispatched batch once its terminal lifecycle event (or escalation) is
// observed.
type batchTracking struct {
	channel  qatypes.Channel
	decision qatypes.RoutingDecision
	attempts int
}

// taskState tracks a claimed Task's outstanding batches so the Daemon knows
// when, and how, to resolve the original queue entry. failed records
// whether any batch ended in escalation (outcome=escalated on mark_done).
// markFailed additionally records whether any batch escalated with a
// reason spec.md §7 routes through mark_failed rather than mark_done
// (timeout, cancelled) — that takes precedence over a plain escalation.
type taskState struct {
	pending      map[string]*batchTracking
	failed       bool
	markFailed   bool
	failedReason string
}

// Daemon owns the main loop and wires every other component together
// (spec.md §4.7). It is the only component that touches the external
// TaskQueue and WorkerRegistry.
type Daemon struct {
	cfg  Config
	deps Deps

	thresholds atomic.Value // decision.Thresholds

	mu          sync.Mutex
	tasks       map[string]*taskState
	batchToTask map[string]string

	counters *counters

	cancelPoll context.CancelFunc
	eg         *errgroup.Group

	shutdownOnce sync.Once
}

// NewDaemon constructs a Daemon. Call Start to begin the poll loop.
func NewDaemon(cfg Config, deps Deps) *Daemon {
	d := &Daemon{
		cfg:         cfg,
		deps:        deps,
		tasks:       make(map[string]*taskState),
		batchToTask: make(map[string]string),
		counters:    newCounters(),
	}
	d.thresholds.Store(deps.Thresholds)
	return d
}

// SetThresholds hot-swaps the routing thresholds used by every subsequent
// tick; safe to call concurrently with a running poll loop. Intended as the
// callback passed to config.WatchThresholds.
func (d *Daemon) SetThresholds(th decision.Thresholds) {
	d.thresholds.Store(th)
}

func (d *Daemon) currentThresholds() decision.Thresholds {
	return d.thresholds.Load().(decision.Thresholds)
}

// Start launches the poll loop and the worker-event drain loop. It returns
// immediately; both loops run in background goroutines fanned in by an
// errgroup so Shutdown can wait on them deterministically.
func (d *Daemon) Start(ctx context.Context) {
	pollCtx, cancel := context.WithCancel(ctx)
	d.cancelPoll = cancel

	eg, _ := errgroup.WithContext(context.Background())
	d.eg = eg

	eg.Go(func() error {
		d.runPollLoop(pollCtx)
		return nil
	})
	eg.Go(func() error {
		d.runEventDrain()
		return nil
	})
}

// Shutdown stops accepting new work, drains in-flight workers through the
// supervisor's own grace period, and waits for both background loops to
// exit. Idempotent.
func (d *Daemon) Shutdown(ctx context.Context) error {
	var shutdownErr error
	d.shutdownOnce.Do(func() {
		if d.cancelPoll != nil {
			d.cancelPoll()
		}
		if err := d.deps.Supervisor.Shutdown(ctx); err != nil {
			shutdownErr = err
		}
		if d.eg != nil {
			_ = d.eg.Wait()
		}
	})
	return shutdownErr
}

func (d *Daemon) runPollLoop(ctx context.Context) {
	logger := log.WithComponent("daemon")
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.tick(ctx, logger)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Daemon) tick(ctx context.Context, logger zerolog.Logger) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PollCycleDuration)

	fastFree, heavyFree := d.admissionBudget()
	if fastFree <= 0 && heavyFree <= 0 {
		return
	}

	claimN := fastFree + heavyFree
	if claimN > d.cfg.ClaimBatchSize {
		claimN = d.cfg.ClaimBatchSize
	}

	claimCtx, cancel := context.WithTimeout(ctx, d.cfg.QueuePollTimeout)
	tasks, err := d.deps.Queue.ClaimNext(claimCtx, claimN, d.cfg.LeaseDuration)
	cancel()
	if err != nil {
		logger.Warn().Err(err).Msg("queue poll failed, backing off to next tick")
		return
	}

	metrics.TasksClaimedTotal.Add(float64(len(tasks)))

	for _, task := range tasks {
		d.processTask(ctx, task)
	}
}

func (d *Daemon) admissionBudget() (fastFree, heavyFree int) {
	activeFast, activeHeavy := 0, 0
	for _, h := range d.deps.Supervisor.Handles() {
		if h.State.IsTerminal() {
			continue
		}
		switch h.Kind {
		case qatypes.WorkerKindFastInproc:
			activeFast++
		case qatypes.WorkerKindHeavySpawned:
			activeHeavy++
		}
	}

	fastFree = d.cfg.FastPoolSize - activeFast
	if fastFree < 0 {
		fastFree = 0
	}
	heavyFree = d.cfg.HeavyPoolSize - activeHeavy
	if heavyFree < 0 {
		heavyFree = 0
	}
	return fastFree, heavyFree
}

func (d *Daemon) processTask(ctx context.Context, task qatypes.Task) {
	logger := log.WithTaskID(task.ID)

	batchTimer := metrics.NewTimer()
	batches := batchopt.Partition(task.Violations, "")
	batchTimer.ObserveDuration(metrics.BatchingDuration)

	if len(batches) == 0 {
		markCtx, cancel := context.WithTimeout(ctx, d.cfg.EventPublishTimeout)
		defer cancel()
		if err := d.deps.Queue.MarkDone(markCtx, task.ID, taskqueue.OutcomeSucceeded); err != nil {
			logger.Warn().Err(err).Msg("mark_done failed for empty-violation task")
		}
		return
	}

	decisions := make([]qatypes.RoutingDecision, len(batches))
	for i, batch := range batches {
		decisions[i] = d.decideBatch(batch)
	}

	d.registerTask(task.ID, decisions)

	for _, rd := range decisions {
		d.routeBatch(ctx, rd)
	}
}

func (d *Daemon) decideBatch(batch qatypes.Batch) qatypes.RoutingDecision {
	scoreTimer := metrics.NewTimer()
	score := scorer.Score(batch, d.deps.Churn)
	scoreTimer.ObserveDuration(metrics.ScoringDuration)

	queryTimer := metrics.NewTimer()
	retrieval := d.deps.Patterns.Query(queryText(batch), 0)
	queryTimer.ObserveDuration(metrics.RetrievalQueryDuration)
	metrics.RetrievalConfidence.Observe(retrieval.Confidence)

	decisionTimer := metrics.NewTimer()
	rd := decision.Decide(batch, score, retrieval, d.currentThresholds())
	decisionTimer.ObserveDuration(metrics.DecisionDuration)

	metrics.BatchesByChannel.WithLabelValues(string(rd.Channel)).Inc()
	return rd
}

func (d *Daemon) registerTask(taskID string, decisions []qatypes.RoutingDecision) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pending := make(map[string]*batchTracking, len(decisions))
	for _, rd := range decisions {
		pending[rd.Batch.ID] = &batchTracking{channel: rd.Channel, decision: rd}
		d.batchToTask[rd.Batch.ID] = taskID
	}
	d.tasks[taskID] = &taskState{pending: pending}
}

func (d *Daemon) routeBatch(ctx context.Context, rd qatypes.RoutingDecision) {
	logger := log.WithComponent("daemon")
	batchID := rd.Batch.ID

	if rd.Channel == qatypes.ChannelHuman {
		d.escalate(batchID, "", rd.ReasonCode)
		return
	}

	if _, err := d.deps.Supervisor.Dispatch(ctx, rd); err != nil {
		switch {
		case errors.Is(err, worker.ErrBreakerOpen):
			metrics.BreakerOpenTotal.Inc()
			d.escalate(batchID, "", qatypes.ReasonBreakerOpen)
		case errors.Is(err, worker.ErrShuttingDown):
			logger.Warn().Str("batch_id", batchID).Msg("dispatch skipped: supervisor shutting down")
		default:
			logger.Error().Err(err).Str("batch_id", batchID).Msg("dispatch failed")
			d.escalate(batchID, "", qatypes.ReasonWorkerFatal)
		}
	}
}

func (d *Daemon) runEventDrain() {
	for ev := range d.deps.Supervisor.PollEvents() {
		d.handleLifecycleEvent(ev)
	}
}

func (d *Daemon) handleLifecycleEvent(ev worker.LifecycleEvent) {
	d.publishWithTimeout("qa.task."+string(ev.State), ev)

	if !ev.State.IsTerminal() {
		return
	}

	metrics.WorkerOutcomesTotal.WithLabelValues(string(ev.Kind), string(ev.State)).Inc()

	switch ev.State {
	case qatypes.WorkerCompleted:
		d.completeBatch(ev.BatchRef, taskqueue.OutcomeSucceeded, true, "")

	case qatypes.WorkerFailed:
		// spec.md §6's exit code table applies to heavy-spawned workers
		// only (1=retryable, 2=fatal); an in-process fast failure has no
		// exit code and is always treated as retryable.
		retryable := ev.Kind == qatypes.WorkerKindFastInproc ||
			(ev.Kind == qatypes.WorkerKindHeavySpawned && ev.ExitCode == 1)
		if retryable {
			d.retryOrEscalate(ev.BatchRef)
			return
		}
		d.escalate(ev.BatchRef, ev.WorkerID, qatypes.ReasonWorkerFatal)

	case qatypes.WorkerTimedOut:
		d.escalate(ev.BatchRef, ev.WorkerID, qatypes.ReasonTimeout)

	case qatypes.WorkerCancelled:
		d.escalate(ev.BatchRef, ev.WorkerID, qatypes.ReasonCancelled)
	}
}

// retryOrEscalate re-dispatches a retryable failed batch up to
// cfg.MaxRetries attempts, then opens an escalation case with reason
// exhausted-retries.
func (d *Daemon) retryOrEscalate(batchID string) {
	logger := log.WithComponent("daemon")

	d.mu.Lock()
	taskID, ok := d.batchToTask[batchID]
	if !ok {
		d.mu.Unlock()
		return
	}
	ts := d.tasks[taskID]
	bt := ts.pending[batchID]
	bt.attempts++
	attempts := bt.attempts
	rd := bt.decision
	d.mu.Unlock()

	if attempts > d.cfg.MaxRetries {
		d.escalate(batchID, "", qatypes.ReasonExhaustedRetries)
		return
	}

	logger.Warn().Str("batch_id", batchID).Int("attempt", attempts).Msg("retrying failed batch")

	retryCtx, cancel := context.WithTimeout(context.Background(), d.cfg.QueuePollTimeout)
	defer cancel()
	if _, err := d.deps.Supervisor.Dispatch(retryCtx, rd); err != nil {
		logger.Error().Err(err).Str("batch_id", batchID).Msg("retry dispatch failed")
		d.escalate(batchID, "", qatypes.ReasonExhaustedRetries)
	}
}

// escalate opens an EscalationCase for batchID and marks its batch complete
// with the escalated outcome. reason drives completeBatch's choice between
// mark_done(outcome=escalated) and mark_failed (spec.md §7): timeout and
// cancelled resolve the Task via mark_failed, every other escalation
// reason (worker-fatal, exhausted-retries, breaker-open, and the
// immediate-HUMAN routing reasons) resolves it via mark_done.
func (d *Daemon) escalate(batchID, workerID, reason string) {
	if _, err := d.deps.Escalations.Open(batchID, workerID, reason); err != nil {
		log.WithComponent("daemon").Error().Err(err).Str("batch_id", batchID).Msg("failed to open escalation case")
	}
	metrics.EscalationsOpenedTotal.Inc()
	d.completeBatch(batchID, taskqueue.OutcomeEscalated, false, reason)
}

// completeBatch records one batch's terminal outcome and, once every batch
// belonging to its source Task has completed, resolves the Task on the
// external queue: mark_failed if any batch escalated with reason timeout
// or cancelled, mark_done with the aggregate outcome otherwise.
func (d *Daemon) completeBatch(batchID string, outcome taskqueue.Outcome, success bool, reason string) {
	d.mu.Lock()
	taskID, ok := d.batchToTask[batchID]
	if !ok {
		d.mu.Unlock()
		return
	}
	ts := d.tasks[taskID]
	bt := ts.pending[batchID]
	delete(d.batchToTask, batchID)
	delete(ts.pending, batchID)
	if !success {
		ts.failed = true
	}
	if reason == qatypes.ReasonTimeout || reason == qatypes.ReasonCancelled {
		ts.markFailed = true
		ts.failedReason = reason
	}
	done := len(ts.pending) == 0
	if done {
		delete(d.tasks, taskID)
	}
	d.mu.Unlock()

	if bt != nil {
		d.counters.record(bt.channel, success)
		metrics.TasksProcessedTotal.WithLabelValues(string(bt.channel), string(outcome)).Inc()
	}

	if !done {
		return
	}

	markCtx, cancel := context.WithTimeout(context.Background(), d.cfg.EventPublishTimeout)
	defer cancel()

	if ts.markFailed {
		if err := d.deps.Queue.MarkFailed(markCtx, taskID, ts.failedReason); err != nil {
			log.WithTaskID(taskID).Warn().Err(err).Msg("mark_failed failed")
		}
		return
	}

	finalOutcome := taskqueue.OutcomeSucceeded
	if ts.failed {
		finalOutcome = taskqueue.OutcomeEscalated
	}
	if err := d.deps.Queue.MarkDone(markCtx, taskID, finalOutcome); err != nil {
		log.WithTaskID(taskID).Warn().Err(err).Msg("mark_done failed")
	}
}

// publishWithTimeout runs Publish in the background and logs (without
// blocking the caller past EventPublishTimeout) if it doesn't return in
// time; event-bus publish is a non-fatal suspension point (spec.md §5).
func (d *Daemon) publishWithTimeout(topic string, payload any) {
	done := make(chan struct{})
	go func() {
		d.deps.Bus.Publish(topic, payload)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.cfg.EventPublishTimeout):
		log.WithComponent("daemon").Warn().Str("topic", topic).Msg("event publish exceeded timeout, continuing")
	}
}

func queryText(batch qatypes.Batch) string {
	var b strings.Builder
	for _, v := range batch.Violations {
		b.WriteString(string(v.Kind))
		b.WriteByte(' ')
		b.WriteString(v.FilePath)
		b.WriteByte(' ')
		b.WriteString(v.Detail)
		b.WriteByte(' ')
	}
	return b.String()
}

// counters backs the Daemon's Snapshot aggregate counters.
type counters struct {
	mu         sync.Mutex
	processed  int64
	successes  int64
	perChannel map[qatypes.Channel]int64
}

func newCounters() *counters {
	return &counters{perChannel: make(map[qatypes.Channel]int64)}
}

func (c *counters) record(channel qatypes.Channel, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed++
	c.perChannel[channel]++
	if success {
		c.successes++
	}
}

func (c *counters) read() (processed, successes int64, perChannel map[qatypes.Channel]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[qatypes.Channel]int64, len(c.perChannel))
	for k, v := range c.perChannel {
		out[k] = v
	}
	return c.processed, c.successes, out
}
