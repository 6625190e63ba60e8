package logger

import (
	"fmt"
	"sync"
	"time"
)

// BatchProgress tracks a batch pass over statement lines and logs
// intermediate counters at a fixed interval.
type BatchProgress struct {
	logger      Logger
	operation   string
	total       int
	inspected   int
	reconciled  int
	failed      int
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.Mutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string        `json:"operation"`
	Total       int           `json:"total"`
	LogInterval time.Duration `json:"log_interval"`
	Logger      Logger        `json:"-"`
}

// ProgressStats is a snapshot of a batch pass.
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int           `json:"total"`
	Inspected  int           `json:"inspected"`
	Reconciled int           `json:"reconciled"`
	Failed     int           `json:"failed"`
	Elapsed    time.Duration `json:"elapsed"`
}

// NewBatchProgress creates a new progress tracker
func NewBatchProgress(config ProgressConfig) *BatchProgress {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = 5 * time.Second
	}

	now := time.Now()
	p := &BatchProgress{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   now,
		lastLogTime: now,
		logInterval: config.LogInterval,
	}

	p.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Debug("Starting batch")

	return p
}

// Inspected records one processed line and whether it was reconciled.
func (p *BatchProgress) Inspected(reconciled bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.inspected++
	if reconciled {
		p.reconciled++
	}
	p.maybeLog()
}

// Failed records one line that raised an error and was skipped.
func (p *BatchProgress) Failed() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.inspected++
	p.failed++
	p.maybeLog()
}

// Complete logs final statistics and returns them
func (p *BatchProgress) Complete() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	stats := p.snapshot()
	p.logger.WithFields(Fields{
		"operation":  p.operation,
		"inspected":  stats.Inspected,
		"reconciled": stats.Reconciled,
		"failed":     stats.Failed,
		"duration":   stats.Elapsed.String(),
	}).Info("Batch completed")
	return stats
}

// Stats returns the current counters.
func (p *BatchProgress) Stats() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.snapshot()
}

func (p *BatchProgress) snapshot() ProgressStats {
	return ProgressStats{
		Operation:  p.operation,
		Total:      p.total,
		Inspected:  p.inspected,
		Reconciled: p.reconciled,
		Failed:     p.failed,
		Elapsed:    time.Since(p.startTime),
	}
}

func (p *BatchProgress) maybeLog() {
	now := time.Now()
	if now.Sub(p.lastLogTime) < p.logInterval {
		return
	}
	p.lastLogTime = now
	p.logger.WithFields(Fields{
		"operation":  p.operation,
		"inspected":  p.inspected,
		"total":      p.total,
		"reconciled": p.reconciled,
	}).Info("Batch progress")
}

// String returns a human readable summary
func (ps ProgressStats) String() string {
	return fmt.Sprintf("%s: %d/%d inspected, %d reconciled, %d failed (%s)",
		ps.Operation, ps.Inspected, ps.Total, ps.Reconciled, ps.Failed, ps.Elapsed.Round(time.Millisecond))
}

// TimedOperation executes a function and logs its execution time
func TimedOperation(operation string, logger Logger, fn func() error) error {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	start := time.Now()
	err := fn()
	fields := Fields{"operation": operation, "duration": time.Since(start).String()}
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Operation failed")
		return err
	}
	logger.WithFields(fields).Debug("Operation completed")
	return nil
}
