// Package scheduler runs the automatic reconciliation pass over
// unreconciled statement lines.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang-bankrec-service/internal/committer"
	"golang-bankrec-service/internal/ledger"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/internal/queue"
	"golang-bankrec-service/internal/session"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"go.uber.org/multierr"
)

const (
	// DefaultRecencyCutoff skips statement lines older than three months.
	DefaultRecencyCutoff = 90 * 24 * time.Hour
	// DefaultBatchSize bounds one pass when the caller sets no size.
	DefaultBatchSize = 100
)

// Options configure one pass.
type Options struct {
	// BatchSize limits the lines inspected; zero means no limit.
	BatchSize int
	// TimeBudget stops the pass before the next line once elapsed; zero
	// means no budget.
	TimeBudget time.Duration
	// LineIDs restricts the pass to these lines and bypasses the
	// selection query and the time budget.
	LineIDs []int64
	// RecencyCutoff defaults to DefaultRecencyCutoff.
	RecencyCutoff time.Duration
}

// Failure is one statement line that raised an error and was skipped.
type Failure struct {
	StatementLineID int64  `json:"statement_line_id"`
	Error           string `json:"error"`
}

// Report summarizes a pass.
type Report struct {
	StartedAt       time.Time            `json:"started_at"`
	Stats           logger.ProgressStats `json:"stats"`
	ReconciledIDs   []int64              `json:"reconciled_ids,omitempty"`
	InspectedIDs    []int64              `json:"inspected_ids,omitempty"`
	Failures        []Failure            `json:"failures,omitempty"`
	RemainingLineID int64                `json:"remaining_line_id,omitempty"`
	BudgetExhausted bool                 `json:"budget_exhausted"`
	Continuation    *queue.Task          `json:"continuation,omitempty"`
	Skipped         string               `json:"skipped,omitempty"`
}

// Scheduler ties the session pipeline to the ledger store and the
// continuation queue.
type Scheduler struct {
	deps      session.Deps
	store     ledger.Store
	committer *committer.Committer
	queue     queue.Queue
	logger    logger.Logger
	clock     func() time.Time
}

// New creates a scheduler. deps.Rules must be set.
func New(deps session.Deps, store ledger.Store, c *committer.Committer, q queue.Queue, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Scheduler{
		deps:      deps,
		store:     store,
		committer: c,
		queue:     q,
		logger:    log.WithComponent("scheduler"),
		clock:     time.Now,
	}
}

// SetClock replaces the time source.
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.clock = clock
}

// ScheduleContinuation asks for another pass after the given delay.
func (s *Scheduler) ScheduleContinuation(ctx context.Context, after time.Duration, reason string) (*queue.Task, error) {
	if s.queue == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "continuation queue", nil, nil)
	}
	task, err := s.queue.ScheduleContinuation(ctx, s.clock().Add(after), reason)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logger.Fields{"task_id": task.ID, "run_at": task.RunAt, "reason": reason}).Debug("Continuation scheduled")
	return task, nil
}

// Run performs one pass. Failures on single lines are logged, reported
// and skipped; the returned error aggregates them and is nil when every
// inspected line went through.
func (s *Scheduler) Run(ctx context.Context, opts Options) (*Report, error) {
	start := s.clock()
	report := &Report{StartedAt: start}

	if !s.deps.Chart.HasAutoReconcileModels() {
		report.Skipped = "no reconcile model allows auto-reconciliation"
		s.logger.Debug("Pass skipped: " + report.Skipped)
		return report, nil
	}

	lines, remaining, err := s.selectLines(ctx, opts, start)
	if err != nil {
		return nil, err
	}

	progress := logger.NewBatchProgress(logger.ProgressConfig{
		Operation: "autoreconcile",
		Total:     len(lines),
		Logger:    s.logger,
	})

	var errs error
	explicit := len(opts.LineIDs) > 0
	for i, st := range lines {
		if ctx.Err() != nil || (!explicit && opts.TimeBudget > 0 && s.clock().Sub(start) > opts.TimeBudget) {
			report.BudgetExhausted = true
			remaining = lines[i]
			break
		}

		reconciled, err := s.process(ctx, st)
		report.InspectedIDs = append(report.InspectedIDs, st.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("statement line %d: %w", st.ID, err))
			report.Failures = append(report.Failures, Failure{StatementLineID: st.ID, Error: err.Error()})
			s.logger.WithError(err).WithField("statement_line_id", st.ID).Warn("Auto-reconciliation failed, skipping line")
			progress.Failed()
			continue
		}
		if reconciled {
			report.ReconciledIDs = append(report.ReconciledIDs, st.ID)
		}
		progress.Inspected(reconciled)
	}

	if len(report.InspectedIDs) > 0 {
		if err := s.store.MarkChecked(ctx, report.InspectedIDs, start); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if remaining != nil {
		report.RemainingLineID = remaining.ID
		needed := len(report.ReconciledIDs) > 0 || remaining.CronLastCheck == nil
		if needed && s.queue == nil {
			s.logger.WithField("remaining_line_id", remaining.ID).Info("No continuation queue configured, remaining lines wait for the next pass")
		} else if needed {
			task, err := s.ScheduleContinuation(ctx, 0, "remaining statement lines")
			if err != nil {
				errs = multierr.Append(errs, err)
			}
			report.Continuation = task
		}
	}

	report.Stats = progress.Complete()
	return report, errs
}

func (s *Scheduler) selectLines(ctx context.Context, opts Options, start time.Time) ([]*models.StatementLine, *models.StatementLine, error) {
	if len(opts.LineIDs) > 0 {
		lines, err := s.store.FindStatementLines(ctx, ledger.StatementFilter{IDs: opts.LineIDs, Unreconciled: true})
		return lines, nil, err
	}

	cutoff := opts.RecencyCutoff
	if cutoff == 0 {
		cutoff = DefaultRecencyCutoff
	}
	filter := ledger.StatementFilter{Unreconciled: true, DateAfter: start.Add(-cutoff)}
	if opts.BatchSize > 0 {
		filter.Limit = opts.BatchSize + 1
	}
	lines, err := s.store.FindStatementLines(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	var remaining *models.StatementLine
	if opts.BatchSize > 0 && len(lines) > opts.BatchSize {
		remaining = lines[opts.BatchSize]
		lines = lines[:opts.BatchSize]
	}
	return lines, remaining, nil
}

// process runs the matching rules on one line and commits the session
// when a rule allows it and every amount was converted with a known rate.
func (s *Scheduler) process(ctx context.Context, st *models.StatementLine) (bool, error) {
	sess, err := session.New(s.deps, st)
	if err != nil {
		return false, err
	}
	applied, err := sess.TriggerMatchingRules(ctx)
	if err != nil {
		return false, err
	}
	if !applied || !sess.AutoReconcile() || sess.State() != session.StateValid {
		return false, nil
	}
	if warnings := sess.RateWarnings(); len(warnings) > 0 {
		s.logger.WithFields(logger.Fields{
			"statement_line_id": st.ID,
			"rate_warnings":     warnings,
		}).Warn("Amounts converted without a rate, leaving the line for manual review")
		return false, nil
	}
	if _, err := s.committer.Commit(ctx, sess); err != nil {
		return false, err
	}
	return true, nil
}

// Worker drains due continuations by running a pass for each poll that
// finds work.
type Worker struct {
	scheduler *Scheduler
	options   Options
	interval  time.Duration
}

// NewWorker creates a worker polling the queue at interval.
func NewWorker(s *Scheduler, opts Options, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{scheduler: s, options: opts, interval: interval}
}

// Start polls until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Drain(ctx); err != nil {
			w.scheduler.logger.WithError(err).Warn("Continuation pass reported failures")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Drain completes the due tasks and runs one pass for them. It returns nil
// when nothing was due.
func (w *Worker) Drain(ctx context.Context) (*Report, error) {
	q := w.scheduler.queue
	if q == nil {
		return nil, nil
	}
	due, err := q.Due(ctx, w.scheduler.clock())
	if err != nil || len(due) == 0 {
		return nil, err
	}
	for _, task := range due {
		if err := q.Complete(ctx, task.ID); err != nil {
			return nil, err
		}
	}
	w.scheduler.logger.WithField("tasks", len(due)).Info("Running continuation pass")
	return w.scheduler.Run(ctx, w.options)
}
