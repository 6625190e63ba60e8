// Package reconciler is the service layer over reconciliation sessions. It
// keeps the open sessions, serializes operations per statement line,
// commits validated sessions and drives the auto-reconcile scheduler.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"golang-bankrec-service/internal/committer"
	"golang-bankrec-service/internal/ledger"
	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/internal/queue"
	"golang-bankrec-service/internal/scheduler"
	"golang-bankrec-service/internal/session"
	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	// SessionTTL closes sessions left open longer than this; zero keeps
	// them until validated or closed.
	SessionTTL time.Duration
	// Scheduler holds the defaults of an auto-reconcile pass.
	Scheduler scheduler.Options
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		SessionTTL: 8 * time.Hour,
		Scheduler: scheduler.Options{
			BatchSize:     scheduler.DefaultBatchSize,
			TimeBudget:    time.Minute,
			RecencyCutoff: scheduler.DefaultRecencyCutoff,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SessionTTL < 0 {
		return fmt.Errorf("session ttl cannot be negative, got %s", c.SessionTTL)
	}
	if c.Scheduler.BatchSize < 0 {
		return fmt.Errorf("batch size cannot be negative, got %d", c.Scheduler.BatchSize)
	}
	if c.Scheduler.TimeBudget < 0 {
		return fmt.Errorf("time budget cannot be negative, got %s", c.Scheduler.TimeBudget)
	}
	if c.Scheduler.RecencyCutoff < 0 {
		return fmt.Errorf("recency cutoff cannot be negative, got %s", c.Scheduler.RecencyCutoff)
	}
	return nil
}

// Snapshot is a session view with its registry id.
type Snapshot struct {
	ID string `json:"id"`
	session.View
}

// ValidationResult is returned by Validate.
type ValidationResult struct {
	Snapshot *Snapshot             `json:"session"`
	Commit   *ledger.CommitResult `json:"commit"`
}

// Service orchestrates sessions, commits and scheduler passes.
type Service struct {
	deps      session.Deps
	store     ledger.Store
	committer *committer.Committer
	scheduler *scheduler.Scheduler
	queue     queue.Queue
	config    *Config
	registry  *registry
	logger    logger.Logger
	clock     func() time.Time
}

// NewService wires the service. deps.Ledger must read from store.
func NewService(deps session.Deps, store ledger.Store, q queue.Queue, config *Config) (*Service, error) {
	if deps.Chart == nil || deps.Converter == nil || store == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "chart, converter and store", nil, nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", config, err)
	}
	if deps.Logger == nil {
		deps.Logger = logger.GetGlobalLogger()
	}
	if deps.Ledger == nil {
		deps.Ledger = store
	}

	log := deps.Logger.WithComponent("reconciler")
	c := committer.New(store, deps.Chart, deps.Logger)
	s := &Service{
		deps:      deps,
		store:     store,
		committer: c,
		scheduler: scheduler.New(deps, store, c, q, deps.Logger),
		queue:     q,
		config:    config,
		registry:  newRegistry(),
		logger:    log,
		clock:     time.Now,
	}
	log.Debug("Reconciliation service created")
	return s, nil
}

// Scheduler exposes the auto-reconcile scheduler.
func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// OpenSession starts a session on an unreconciled statement line.
func (s *Service) OpenSession(ctx context.Context, statementLineID int64) (*Snapshot, error) {
	s.expireSessions()

	release := s.registry.lockLine(statementLineID)
	defer release()

	sess, err := session.Open(ctx, s.deps, statementLineID)
	if err != nil {
		return nil, err
	}
	e := s.registry.add(sess, s.clock())
	s.logger.WithFields(logger.Fields{"session_id": e.id, "statement_line_id": statementLineID}).Info("Session opened")
	return &Snapshot{ID: e.id, View: sess.View()}, nil
}

// Session returns the current state of a session.
func (s *Service) Session(id string) (*Snapshot, error) {
	e, release, err := s.registry.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()
	return &Snapshot{ID: e.id, View: e.session.View()}, nil
}

// CloseSession drops a session without writing anything.
func (s *Service) CloseSession(id string) error {
	_, release, err := s.registry.acquire(id)
	if err != nil {
		return err
	}
	defer release()
	s.registry.remove(id)
	s.logger.WithField("session_id", id).Debug("Session closed")
	return nil
}

// OpenSessions is the number of sessions in the registry.
func (s *Service) OpenSessions() int {
	return s.registry.len()
}

// Do runs fn on a session. The snapshot is returned even when fn fails so
// the caller can keep editing.
func (s *Service) Do(id string, fn func(*session.Session) error) (*Snapshot, error) {
	e, release, err := s.registry.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	err = fn(e.session)
	return &Snapshot{ID: e.id, View: e.session.View()}, err
}

// AddMatch matches ledger lines.
func (s *Service) AddMatch(ctx context.Context, id string, ledgerLineIDs ...int64) (*Snapshot, error) {
	return s.Do(id, func(sess *session.Session) error {
		return sess.AddMatch(ctx, ledgerLineIDs...)
	})
}

// RemoveMatch unmatches ledger lines; without ids every match is removed.
func (s *Service) RemoveMatch(id string, ledgerLineIDs ...int64) (*Snapshot, error) {
	return s.Do(id, func(sess *session.Session) error {
		ids := ledgerLineIDs
		if len(ids) == 0 {
			for _, l := range sess.Lines() {
				if l.Flag == session.FlagMatched {
					ids = append(ids, l.SourceLineID())
				}
			}
		}
		return sess.RemoveMatch(ids...)
	})
}

// RemoveLine drops one line.
func (s *Service) RemoveLine(id string, index int) (*Snapshot, error) {
	return s.Do(id, func(sess *session.Session) error {
		return sess.RemoveLine(index)
	})
}

// MountLine selects the line under edition.
func (s *Service) MountLine(id string, index int) (*Snapshot, error) {
	return s.Do(id, func(sess *session.Session) error {
		return sess.MountLine(index)
	})
}

// EditField changes one field of a line.
func (s *Service) EditField(ctx context.Context, id string, index int, field, value string) (*Snapshot, error) {
	return s.Do(id, func(sess *session.Session) error {
		return sess.EditField(ctx, index, field, value)
	})
}

// Suggestion returns the amount proposed for a matched line.
func (s *Service) Suggestion(id string, index int) (*session.Suggestion, error) {
	var suggestion *session.Suggestion
	_, err := s.Do(id, func(sess *session.Session) error {
		sg, ok := sess.Suggestion(index)
		if !ok {
			return errors.InvalidError(errors.CodeInvalidLine, fmt.Sprintf("line %d has no suggestion", index))
		}
		suggestion = &sg
		return nil
	})
	return suggestion, err
}

// ApplySuggestion toggles a matched line between full and partial.
func (s *Service) ApplySuggestion(id string, index int) (*Snapshot, error) {
	return s.Do(id, func(sess *session.Session) error {
		return sess.ApplySuggestion(index)
	})
}

// SelectReconcileModel applies a write-off model.
func (s *Service) SelectReconcileModel(ctx context.Context, id string, modelID int64) (*Snapshot, error) {
	return s.Do(id, func(sess *session.Session) error {
		return sess.SelectReconcileModel(ctx, modelID)
	})
}

// TriggerMatchingRules runs the automatic reconcile models.
func (s *Service) TriggerMatchingRules(ctx context.Context, id string) (*Snapshot, error) {
	return s.Do(id, func(sess *session.Session) error {
		_, err := sess.TriggerMatchingRules(ctx)
		return err
	})
}

// Reset drops every line but the liquidity one.
func (s *Service) Reset(id string) (*Snapshot, error) {
	return s.Do(id, func(sess *session.Session) error {
		return sess.Reset()
	})
}

// Validate commits a balanced session and removes it from the registry.
// An invalid session stays open.
func (s *Service) Validate(ctx context.Context, id string) (*ValidationResult, error) {
	e, release, err := s.registry.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := s.committer.Commit(ctx, e.session)
	snapshot := &Snapshot{ID: e.id, View: e.session.View()}
	if err != nil {
		return &ValidationResult{Snapshot: snapshot}, err
	}
	s.registry.remove(id)
	return &ValidationResult{Snapshot: snapshot, Commit: result}, nil
}

// CreateStatementLine stores a new statement line and schedules one
// continuation so the scheduler looks at it.
func (s *Service) CreateStatementLine(ctx context.Context, st *models.StatementLine) (int64, error) {
	if err := st.Validate(); err != nil {
		return 0, errors.InvalidError(errors.CodeInvalidLine, err.Error())
	}
	if _, err := s.deps.Chart.Journal(st.JournalID); err != nil {
		return 0, err
	}
	id, err := s.store.CreateStatementLine(ctx, st)
	if err != nil {
		return 0, err
	}
	if s.queue != nil {
		if _, err := s.scheduler.ScheduleContinuation(ctx, 0, "new statement line"); err != nil {
			s.logger.WithError(err).Warn("Continuation not scheduled")
		}
	}
	return id, nil
}

// AutoReconcile runs one scheduler pass. Zero fields of opts take the
// configured defaults, except LineIDs.
func (s *Service) AutoReconcile(ctx context.Context, opts scheduler.Options) (*scheduler.Report, error) {
	defaults := s.config.Scheduler
	if opts.BatchSize == 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.TimeBudget == 0 {
		opts.TimeBudget = defaults.TimeBudget
	}
	if opts.RecencyCutoff == 0 {
		opts.RecencyCutoff = defaults.RecencyCutoff
	}
	return s.scheduler.Run(ctx, opts)
}

func (s *Service) expireSessions() {
	if s.config.SessionTTL == 0 {
		return
	}
	for _, id := range s.registry.expired(s.clock().Add(-s.config.SessionTTL)) {
		if s.registry.remove(id) {
			s.logger.WithField("session_id", id).Info("Session expired")
		}
	}
}
