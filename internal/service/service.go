package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stock-target-alerts/internal/alerting"
	"stock-target-alerts/internal/errkind"
	"stock-target-alerts/internal/evaluator"
	"stock-target-alerts/internal/pricing"
	"stock-target-alerts/internal/scheduler"
	"stock-target-alerts/internal/storage"
	"stock-target-alerts/internal/watchlist"
)

// maxPendingEvents bounds the in-memory queue of events whose persistence
// failed. There is no durable outbox; entries past one retry are dropped.
const maxPendingEvents = 256

// Service orchestrates the monitoring cycle: snapshot, fetch, evaluate,
// record, dispatch. One logical worker; a new cycle never starts before the
// previous one returns to idle.
type Service struct {
	scheduler  *scheduler.Scheduler
	repo       watchlist.Repository
	prices     pricing.Source
	history    storage.AlertHistory
	cycles     storage.CycleRunStore
	dispatcher *alerting.Dispatcher
	logger     zerolog.Logger

	locker  storage.AdvisoryLocker
	lockKey int64

	pending []pendingEvent
}

type pendingEvent struct {
	event   alerting.Event
	results map[string]alerting.DeliveryResult
	retried bool
}

// New constructs the monitoring service. history and cycles may be nil when
// persistence is not configured; repo, prices, and dispatcher are required.
func New(repo watchlist.Repository, prices pricing.Source, history storage.AlertHistory, cycles storage.CycleRunStore, dispatcher *alerting.Dispatcher, sched *scheduler.Scheduler, lockKey int64, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := history.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		repo:       repo,
		prices:     prices,
		history:    history,
		cycles:     cycles,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "service").Logger(),
		locker:     locker,
		lockKey:    lockKey,
	}
}

// Run begins the scheduled monitoring loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle executes one full cycle for the given wake timestamp.
func (s *Service) ProcessCycle(ctx context.Context, cycleTS time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("cycle", cycleTS).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeCycle(ctx, cycleTS)
}

func (s *Service) executeCycle(ctx context.Context, cycleTS time.Time) error {
	run := storage.CycleRun{CycleTS: cycleTS, Status: storage.CycleStatusComplete}

	err := s.runStages(ctx, cycleTS, &run)
	if err != nil {
		run.Status = storage.CycleStatusErrored
		msg := err.Error()
		run.Error = &msg
	} else if run.SymbolsFailed > 0 || run.PersistFailures > 0 {
		run.Status = storage.CycleStatusDegraded
	}

	s.recordRun(ctx, run)
	return err
}

func (s *Service) runStages(ctx context.Context, cycleTS time.Time, run *storage.CycleRun) error {
	// Fetching stage: snapshot the watchlist, then one batch price fetch for
	// the de-duplicated symbol set.
	items, err := s.repo.ListActiveTargets(ctx)
	if err != nil {
		return fmt.Errorf("snapshot watchlist: %w", err)
	}
	if len(items) == 0 {
		s.logger.Info().Time("cycle", cycleTS).Msg("no active targets to check")
		return nil
	}

	symbols := watchlist.Symbols(items)
	results := s.prices.FetchBatch(ctx, symbols)

	quotes := make(map[string]watchlist.PriceQuote, len(results))
	for symbol, result := range results {
		if result.Err != nil {
			run.SymbolsFailed++
			s.logger.Warn().Err(result.Err).
				Str("symbol", symbol).
				Str("kind", errkind.Of(result.Err).String()).
				Msg("price fetch failed; targets skipped this cycle")
			continue
		}
		run.SymbolsFetched++
		quotes[symbol] = result.Quote
	}

	s.logger.Info().Time("cycle", cycleTS).
		Int("targets", len(items)).
		Int("symbols", len(symbols)).
		Int("symbols_failed", run.SymbolsFailed).
		Msg("evaluating watchlist")

	if err := ctx.Err(); err != nil {
		return err
	}

	// Evaluating stage: pure trigger checks on the fully-materialised
	// snapshot. De-duplication against history happens here, not in the
	// evaluator.
	events := s.evaluate(ctx, cycleTS, items, quotes, run)

	if err := ctx.Err(); err != nil {
		return err
	}

	// Dispatching and persisting, logically sequential per event: the durable
	// record first, then best-effort fan-out. A persistence failure never
	// blocks dispatch.
	s.flushPending(ctx, run)

	for i := range events {
		if ctx.Err() != nil {
			s.logger.Warn().Time("cycle", cycleTS).Msg("shutdown requested; remaining events not processed")
			return ctx.Err()
		}
		s.recordAndDispatch(ctx, events[i], run)
	}

	return nil
}

func (s *Service) evaluate(ctx context.Context, cycleTS time.Time, items []watchlist.Item, quotes map[string]watchlist.PriceQuote, run *storage.CycleRun) []alerting.Event {
	events := make([]alerting.Event, 0)
	seen := make(map[int64]bool, len(items))

	for _, item := range items {
		if err := item.Target.Validate(); err != nil {
			s.logger.Warn().Err(err).
				Str("symbol", item.Stock.Symbol).
				Int64("target_id", item.Target.ID).
				Msg("data integrity: target excluded from cycle")
			continue
		}

		quote, ok := quotes[item.Stock.Symbol]
		if !ok {
			// Fetch failure already counted; the target is skipped, not
			// evaluated as non-triggered.
			continue
		}

		run.TargetsEvaluated++

		outcome, err := evaluator.Evaluate(item.Target, quote.Price)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("symbol", item.Stock.Symbol).
				Int64("target_id", item.Target.ID).
				Msg("data integrity: evaluation rejected")
			continue
		}
		if !outcome.Triggered {
			continue
		}

		// At most one event per (target, cycle), regardless of how many times
		// the target shows up or whether an earlier run of this cycle already
		// recorded it.
		if seen[item.Target.ID] {
			continue
		}
		seen[item.Target.ID] = true

		if s.history != nil {
			fired, err := s.history.HasFired(ctx, item.Target.ID, cycleTS)
			if err != nil {
				s.logger.Error().Err(err).Int64("target_id", item.Target.ID).Msg("dedup check failed; proceeding with insert-time guard")
			} else if fired {
				s.logger.Debug().Int64("target_id", item.Target.ID).Time("cycle", cycleTS).Msg("alert already recorded for this cycle")
				continue
			}
		}

		s.logger.Info().
			Str("symbol", item.Stock.Symbol).
			Str("target_type", string(item.Target.Type)).
			Str("current", quote.Price.String()).
			Str("target", item.Target.Price.String()).
			Msg("target triggered")

		events = append(events, alerting.Event{
			StockID:        item.Stock.ID,
			TargetID:       item.Target.ID,
			Symbol:         item.Stock.Symbol,
			TargetType:     item.Target.Type,
			TrimPercentage: item.Target.TrimPercentage,
			AlertNote:      item.Target.AlertNote,
			CurrentPrice:   quote.Price,
			TargetPrice:    item.Target.Price,
			Delta:          outcome.Delta,
			DeltaPercent:   outcome.DeltaPercent,
			CycleTS:        cycleTS,
			TriggeredAt:    time.Now().UTC(),
		})
	}

	run.EventsFired = len(events)
	return events
}

func (s *Service) recordAndDispatch(ctx context.Context, event alerting.Event, run *storage.CycleRun) {
	recorded := event
	persisted := false

	if s.history != nil {
		var err error
		recorded, err = s.history.RecordEvent(ctx, event)
		switch {
		case err == storage.ErrDuplicateEvent:
			s.logger.Debug().Int64("target_id", event.TargetID).Time("cycle", event.CycleTS).Msg("duplicate event suppressed")
			return
		case err != nil:
			// Critical but not cycle-fatal: the alert still goes out, the
			// cycle run row flags the shortfall, and the event queues for one
			// persistence retry.
			run.PersistFailures++
			recorded = event
			s.logger.Error().Err(err).
				Str("symbol", event.Symbol).
				Int64("target_id", event.TargetID).
				Msg("failed to persist alert event")
		default:
			persisted = true
		}
	}

	results := s.dispatcher.Dispatch(ctx, recorded)

	if !persisted && s.history != nil {
		s.enqueuePending(pendingEvent{event: event, results: results})
	}
}

// flushPending retries events whose persistence failed last cycle. Each entry
// gets exactly one retry before being dropped with a warning.
func (s *Service) flushPending(ctx context.Context, run *storage.CycleRun) {
	if s.history == nil || len(s.pending) == 0 {
		return
	}

	remaining := s.pending[:0]
	for _, entry := range s.pending {
		if entry.retried {
			s.logger.Warn().
				Str("symbol", entry.event.Symbol).
				Int64("target_id", entry.event.TargetID).
				Time("cycle", entry.event.CycleTS).
				Msg("dropping unpersisted alert event after retry")
			continue
		}
		entry.retried = true

		recorded, err := s.history.RecordEvent(ctx, entry.event)
		if err == storage.ErrDuplicateEvent {
			continue
		}
		if err != nil {
			run.PersistFailures++
			s.logger.Error().Err(err).
				Str("symbol", entry.event.Symbol).
				Int64("target_id", entry.event.TargetID).
				Msg("pending alert event persistence retry failed")
			remaining = append(remaining, entry)
			continue
		}

		// Backfill the delivery statuses captured when the event was
		// dispatched without an identity.
		for _, result := range entry.results {
			if err := s.history.UpdateDeliveryStatus(ctx, recorded.ID, result); err != nil {
				s.logger.Error().Err(err).Int64("event_id", recorded.ID).Str("channel", result.Channel).Msg("failed to backfill delivery status")
			}
		}
	}
	s.pending = remaining
}

func (s *Service) enqueuePending(entry pendingEvent) {
	if len(s.pending) >= maxPendingEvents {
		s.logger.Warn().Str("symbol", entry.event.Symbol).Msg("pending event queue full; dropping unpersisted alert event")
		return
	}
	s.pending = append(s.pending, entry)
}

func (s *Service) recordRun(ctx context.Context, run storage.CycleRun) {
	if s.cycles == nil {
		return
	}
	run.CreatedAt = time.Now().UTC()
	if err := s.cycles.RecordCycleRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Time("cycle", run.CycleTS).Msg("failed to record cycle run")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
