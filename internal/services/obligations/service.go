package obligsvc

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/ledgerq/ledgerq/internal/journal"
	"github.com/ledgerq/ledgerq/internal/ledger"
	"github.com/ledgerq/ledgerq/internal/metrics"
	"github.com/ledgerq/ledgerq/internal/obligation"
	"github.com/ledgerq/ledgerq/internal/runtime"
	"github.com/ledgerq/ledgerq/pkg/id"
	logpkg "github.com/ledgerq/ledgerq/pkg/log"
)

// ErrUnknownLedger is returned when auto-creation is disabled and the ledger
// has not been created explicitly.
var ErrUnknownLedger = errors.New("obligations: unknown ledger")

// Service provides the obligation-processing operations built on the internal
// Queue. It owns per-ledger handles (queue, journal, compiled eligibility
// filter) and tags each batch or compaction run with a sortable run ID.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	runIDs *id.Generator

	nameRe *regexp.Regexp

	mu      sync.Mutex
	handles map[string]*handle
}

type handle struct {
	meta    ledger.Meta
	queue   *obligation.Queue
	journal *journal.Journal
}

// New returns a Service using a default logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, nil)
}

// NewWithLogger constructs the service with an injected logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("obligations"))
	}
	re, err := regexp.Compile("^" + rt.Config().LedgerNameRegex + "$")
	if err != nil {
		re = regexp.MustCompile("^[a-z0-9-_]{1,64}$")
	}
	return &Service{
		rt:      rt,
		logger:  logger,
		runIDs:  id.NewGenerator(),
		nameRe:  re,
		handles: map[string]*handle{},
	}
}

// CreateLedger registers a ledger explicitly, validating its name.
func (s *Service) CreateLedger(name string) (ledger.Meta, error) {
	if !s.nameRe.MatchString(name) {
		return ledger.Meta{}, fmt.Errorf("obligations: invalid ledger name %q", name)
	}
	m, err := s.rt.EnsureLedger(name)
	if err != nil {
		return ledger.Meta{}, err
	}
	s.logger.Info("ledger ensured", logpkg.Str("ledger", name))
	return m, nil
}

// ListLedgers returns every registered ledger.
func (s *Service) ListLedgers() ([]ledger.Meta, error) {
	return s.rt.ListLedgers()
}

// handleFor lazily opens the queue and journal for a ledger, applying its
// stored meta (failure policy, scan budget, eligibility expression).
func (s *Service) handleFor(name string) (*handle, error) {
	if name == "" {
		name = s.rt.Config().DefaultLedgerName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[name]; ok {
		return h, nil
	}

	if !s.rt.Config().AllowAutoCreateLedgers {
		known, err := s.rt.ListLedgers()
		if err != nil {
			return nil, err
		}
		found := false
		for _, m := range known {
			if m.Name == name {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLedger, name)
		}
	}
	if !s.nameRe.MatchString(name) {
		return nil, fmt.Errorf("obligations: invalid ledger name %q", name)
	}

	meta, err := s.rt.EnsureLedger(name)
	if err != nil {
		return nil, err
	}
	q, err := s.rt.OpenQueue(name)
	if err != nil {
		return nil, err
	}
	jr, err := s.rt.OpenJournal(name)
	if err != nil {
		return nil, err
	}

	policy := obligation.FailAbort
	if meta.FailurePolicy == "requeue" {
		policy = obligation.FailRequeue
	}
	eligible, err := compileEligibility(meta.EligibilityExpr)
	if err != nil {
		return nil, fmt.Errorf("obligations: ledger %s eligibility: %w", name, err)
	}
	q.WithOptions(obligation.QueueOptions{
		FailurePolicy: policy,
		Eligible:      eligible,
		Hook:          &journalHook{logger: s.logger, journal: jr},
		ScanBudget:    meta.ScanBudget,
	})

	h := &handle{meta: meta, queue: q, journal: jr}
	s.handles[name] = h
	return h, nil
}

// Register appends an obligation. Re-registering a subject replaces its
// pending amount and supersedes its previous slot.
func (s *Service) Register(ctx context.Context, ledgerName, subject string, amount uint64) (uint64, error) {
	if subject == "" {
		return 0, errors.New("obligations: subject is required")
	}
	h, err := s.handleFor(ledgerName)
	if err != nil {
		return 0, err
	}
	return h.queue.Append(ctx, subject, amount)
}

// Get returns the pending amount for a subject.
func (s *Service) Get(ledgerName, subject string) (uint64, bool, error) {
	h, err := s.handleFor(ledgerName)
	if err != nil {
		return 0, false, err
	}
	return h.queue.Amount(subject)
}

// Run executes one guarded batch with the given fulfiller. limit <= 0 uses
// the ledger's configured batch limit.
func (s *Service) Run(ctx context.Context, ledgerName string, limit int, fulfill obligation.Fulfiller) (RunResult, error) {
	h, err := s.handleFor(ledgerName)
	if err != nil {
		return RunResult{}, err
	}
	if limit <= 0 {
		limit = h.meta.BatchLimit
	}
	if err := h.queue.Guard().TryEnter(); err != nil {
		return RunResult{}, err
	}
	defer h.queue.Guard().Exit()

	runID := s.runIDs.Next().String()
	start := time.Now()
	res, err := h.queue.RunBatch(ctx, limit, fulfill)
	elapsed := time.Since(start)

	name := h.queue.Ledger()
	metrics.BatchDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	metrics.FulfilledTotal.WithLabelValues(name).Add(float64(res.Processed))
	metrics.RequeuedTotal.WithLabelValues(name).Add(float64(res.Requeued))
	if skipped := res.Scanned - res.Processed - res.Requeued; skipped > 0 {
		metrics.SkippedTotal.WithLabelValues(name).Add(float64(skipped))
	}

	out := RunResult{
		RunID:     runID,
		Processed: res.Processed,
		Scanned:   res.Scanned,
		Requeued:  res.Requeued,
		Cursor:    res.Cursor,
	}
	if err != nil {
		var fe *obligation.FulfillmentError
		if errors.As(err, &fe) {
			metrics.BatchFailures.WithLabelValues(name).Inc()
			s.logger.Warn("batch aborted on fulfillment failure",
				logpkg.Str("ledger", name),
				logpkg.Str("runId", runID),
				logpkg.Str("subject", fe.Subject),
				logpkg.Uint64("slot", fe.Slot),
				logpkg.Err(fe.Err))
		} else {
			s.logger.Error("batch failed",
				logpkg.Str("ledger", name),
				logpkg.Str("runId", runID),
				logpkg.Err(err))
		}
		return out, err
	}
	s.logger.Info("batch complete",
		logpkg.Str("ledger", name),
		logpkg.Str("runId", runID),
		logpkg.Int("processed", res.Processed),
		logpkg.Int("scanned", res.Scanned),
		logpkg.Int("requeued", res.Requeued),
		logpkg.Uint64("cursor", res.Cursor),
		logpkg.Duration("elapsed", elapsed))
	return out, nil
}

// Compact runs a guarded compaction to the tail.
func (s *Service) Compact(ctx context.Context, ledgerName string, maxScan int) (CompactResult, error) {
	h, err := s.handleFor(ledgerName)
	if err != nil {
		return CompactResult{}, err
	}
	if err := h.queue.Guard().TryEnter(); err != nil {
		return CompactResult{}, err
	}
	defer h.queue.Guard().Exit()

	runID := s.runIDs.Next().String()
	removed, err := h.queue.Compact(ctx, maxScan, 0)
	name := h.queue.Ledger()
	metrics.CompactedTotal.WithLabelValues(name).Add(float64(removed))
	if err != nil {
		return CompactResult{RunID: runID, Removed: removed}, err
	}
	s.logger.Info("compaction complete",
		logpkg.Str("ledger", name),
		logpkg.Str("runId", runID),
		logpkg.Int("removed", removed))
	return CompactResult{RunID: runID, Removed: removed}, nil
}

// Status reports the ledger's queue state.
func (s *Service) Status(ledgerName string) (Status, error) {
	h, err := s.handleFor(ledgerName)
	if err != nil {
		return Status{}, err
	}
	pos, err := h.queue.CursorPosition()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Ledger:         h.queue.Ledger(),
		Cursor:         h.queue.Cursor(),
		CursorPosition: pos,
		LastSeq:        h.queue.LastSeq(),
		SequenceLength: h.queue.SequenceLength(),
		LiveCount:      h.queue.LiveCount(),
		StaleRatio:     h.queue.StaleRatio(),
		Paused:         h.queue.Guard().Paused(),
	}, nil
}

// History reads fulfillment records, oldest first unless reverse. Returns the
// next resume position (0 when exhausted).
func (s *Service) History(ledgerName string, start uint64, limit int, reverse bool) ([]HistoryItem, uint64, error) {
	h, err := s.handleFor(ledgerName)
	if err != nil {
		return nil, 0, err
	}
	items, next := h.journal.Read(journal.ReadOptions{Start: start, Limit: limit, Reverse: reverse})
	out := make([]HistoryItem, 0, len(items))
	for _, it := range items {
		out = append(out, HistoryItem{
			Seq:     it.Seq,
			TsMs:    it.TsMs,
			Subject: it.Subject,
			Amount:  it.Amount,
			Slot:    it.Slot,
		})
	}
	return out, next, nil
}

// TrimHistory deletes fulfillment records older than the cutoff.
func (s *Service) TrimHistory(ctx context.Context, ledgerName string, olderThan time.Duration) (int, error) {
	h, err := s.handleFor(ledgerName)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	deleted, _, err := h.journal.TrimOlderThan(ctx, cutoff, 1024, 0)
	return deleted, err
}

// Pause blocks batches and compactions for a ledger until Resume.
func (s *Service) Pause(ledgerName string) error {
	h, err := s.handleFor(ledgerName)
	if err != nil {
		return err
	}
	h.queue.Guard().Pause()
	s.logger.Info("ledger paused", logpkg.Str("ledger", h.queue.Ledger()))
	return nil
}

// Resume lifts a pause.
func (s *Service) Resume(ledgerName string) error {
	h, err := s.handleFor(ledgerName)
	if err != nil {
		return err
	}
	h.queue.Guard().Resume()
	s.logger.Info("ledger resumed", logpkg.Str("ledger", h.queue.Ledger()))
	return nil
}

// StartSweepers enables the background compaction sweeper on every known
// ledger using configured defaults.
func (s *Service) StartSweepers() error {
	known, err := s.rt.ListLedgers()
	if err != nil {
		return err
	}
	defaults := s.rt.Config().LedgerDefaults
	for _, m := range known {
		h, err := s.handleFor(m.Name)
		if err != nil {
			return err
		}
		ratio := m.CompactStaleRatio
		if ratio <= 0 {
			ratio = defaults.CompactStaleRatio
		}
		h.queue.StartSweeper(defaults.SweepInterval, 1024, ratio)
		h.queue.SetSweeperEnabled(true)
	}
	return nil
}

// Close stops sweepers on every open handle.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.handles {
		h.queue.StopSweeper()
	}
}

// journalHook records each successful fulfillment in the journal.
type journalHook struct {
	logger  logpkg.Logger
	journal *journal.Journal
}

func (jh *journalHook) EmitFulfilled(ledgerName, subject string, amount, slot uint64) {
	_, err := jh.journal.Append(context.Background(), journal.Record{
		TsMs:    time.Now().UnixMilli(),
		Subject: subject,
		Amount:  amount,
		Slot:    slot,
	})
	if err != nil {
		jh.logger.Warn("journal append failed",
			logpkg.Str("ledger", ledgerName),
			logpkg.Str("subject", subject),
			logpkg.Err(err))
	}
}
