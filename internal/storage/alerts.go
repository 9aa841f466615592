package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"stock-target-alerts/internal/alerting"
	"stock-target-alerts/internal/watchlist"
)

// ErrDuplicateEvent reports that an event for the same (target, cycle) pair
// already exists; the insert was a no-op.
var ErrDuplicateEvent = errors.New("storage: alert event already recorded for this cycle")

const (
	hasFiredSQL = `SELECT EXISTS (
        SELECT 1 FROM alert_events WHERE target_id = $1 AND cycle_ts = $2
    );`

	insertAlertEventSQL = `INSERT INTO alert_events (
        stock_id,
        target_id,
        symbol,
        target_type,
        trim_percentage,
        alert_note,
        current_price,
        target_price,
        delta,
        delta_pct,
        cycle_ts,
        triggered_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    ON CONFLICT (target_id, cycle_ts) DO NOTHING
    RETURNING id;`

	upsertDeliverySQL = `INSERT INTO alert_deliveries (
        alert_event_id,
        channel,
        attempted,
        succeeded,
        attempts,
        last_error
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (alert_event_id, channel) DO UPDATE
    SET attempted  = EXCLUDED.attempted,
        succeeded  = EXCLUDED.succeeded,
        attempts   = EXCLUDED.attempts,
        last_error = EXCLUDED.last_error,
        updated_at = now();`

	selectEventColumns = `SELECT
        id,
        stock_id,
        target_id,
        symbol,
        target_type,
        trim_percentage,
        alert_note,
        current_price,
        target_price,
        delta,
        delta_pct,
        cycle_ts,
        triggered_at
    FROM alert_events`

	listRecentEventsSQL = selectEventColumns + `
    ORDER BY triggered_at DESC
    LIMIT $1;`

	listEventsBetweenSQL = selectEventColumns + `
    WHERE triggered_at >= $1
      AND triggered_at < $2
    ORDER BY triggered_at;`

	latestEventForTargetsSQL = selectEventColumns + `
    WHERE id IN (
        SELECT DISTINCT ON (target_id) id
        FROM alert_events
        WHERE target_id = ANY($1)
        ORDER BY target_id, triggered_at DESC
    );`

	listDeliveriesSQL = `SELECT
        alert_event_id,
        channel,
        attempted,
        succeeded,
        attempts,
        last_error
    FROM alert_deliveries
    WHERE alert_event_id = ANY($1)
    ORDER BY alert_event_id, channel;`

	insertCycleRunSQL = `INSERT INTO cycle_runs (
        cycle_ts,
        targets_evaluated,
        symbols_fetched,
        symbols_failed,
        events_fired,
        persist_failures,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (cycle_ts) DO UPDATE
    SET targets_evaluated = EXCLUDED.targets_evaluated,
        symbols_fetched   = EXCLUDED.symbols_fetched,
        symbols_failed    = EXCLUDED.symbols_failed,
        events_fired      = EXCLUDED.events_fired,
        persist_failures  = EXCLUDED.persist_failures,
        status            = EXCLUDED.status,
        error             = EXCLUDED.error;`
)

// AlertHistory is the append-only alert event log. The monitor is the sole
// writer; the web layer reads through the same interface.
type AlertHistory interface {
	HasFired(ctx context.Context, targetID int64, cycleTS time.Time) (bool, error)
	RecordEvent(ctx context.Context, event alerting.Event) (alerting.Event, error)
	UpdateDeliveryStatus(ctx context.Context, eventID int64, result alerting.DeliveryResult) error
	ListRecentEvents(ctx context.Context, limit int) ([]alerting.Event, error)
	ListEventsBetween(ctx context.Context, from, to time.Time) ([]alerting.Event, error)
	LatestEventForTargets(ctx context.Context, targetIDs []int64) (map[int64]alerting.Event, error)
}

// CycleRunStore records per-cycle audit rows.
type CycleRunStore interface {
	RecordCycleRun(ctx context.Context, run CycleRun) error
}

// HasFired reports whether an event already exists for (target, cycle).
func (s *Store) HasFired(ctx context.Context, targetID int64, cycleTS time.Time) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	var fired bool
	if scanErr := pool.QueryRow(ctx, hasFiredSQL, targetID, cycleTS).Scan(&fired); scanErr != nil {
		return false, fmt.Errorf("has fired: %w", scanErr)
	}
	return fired, nil
}

// RecordEvent appends an alert event and assigns its identity. The unique
// (target_id, cycle_ts) index enforces at most one event per target per cycle;
// a conflicting insert returns ErrDuplicateEvent.
func (s *Store) RecordEvent(ctx context.Context, event alerting.Event) (alerting.Event, error) {
	pool, err := s.getPool()
	if err != nil {
		return alerting.Event{}, err
	}

	var trim interface{}
	if event.TrimPercentage != nil {
		trim = event.TrimPercentage.String()
	}
	var note interface{}
	if event.AlertNote != "" {
		note = event.AlertNote
	}

	row := pool.QueryRow(ctx, insertAlertEventSQL,
		event.StockID,
		event.TargetID,
		event.Symbol,
		string(event.TargetType),
		trim,
		note,
		event.CurrentPrice.String(),
		event.TargetPrice.String(),
		event.Delta.String(),
		event.DeltaPercent.String(),
		event.CycleTS,
		event.TriggeredAt,
	)

	if scanErr := row.Scan(&event.ID); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return alerting.Event{}, ErrDuplicateEvent
		}
		return alerting.Event{}, fmt.Errorf("insert alert event: %w", scanErr)
	}
	return event, nil
}

// UpdateDeliveryStatus upserts the per-channel delivery record for an event.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, eventID int64, result alerting.DeliveryResult) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var lastErr interface{}
	if result.LastError != "" {
		lastErr = result.LastError
	}

	if _, execErr := pool.Exec(ctx, upsertDeliverySQL,
		eventID,
		result.Channel,
		result.Attempted,
		result.Succeeded,
		result.Attempts,
		lastErr,
	); execErr != nil {
		return fmt.Errorf("upsert delivery status: %w", execErr)
	}
	return nil
}

// ListRecentEvents lists the most recent events with their delivery records.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]alerting.Event, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEventsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent events: %w", queryErr)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	return s.attachDeliveries(ctx, events)
}

// ListEventsBetween lists events within a trigger-time window, ascending.
func (s *Store) ListEventsBetween(ctx context.Context, from, to time.Time) ([]alerting.Event, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEventsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list events between: %w", queryErr)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	return s.attachDeliveries(ctx, events)
}

// LatestEventForTargets returns the most recent event per target, for the
// "has an alert recently fired" UI state.
func (s *Store) LatestEventForTargets(ctx context.Context, targetIDs []int64) (map[int64]alerting.Event, error) {
	result := make(map[int64]alerting.Event, len(targetIDs))
	if len(targetIDs) == 0 {
		return result, nil
	}

	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, latestEventForTargetsSQL, targetIDs)
	if queryErr != nil {
		return nil, fmt.Errorf("latest event for targets: %w", queryErr)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		result[event.TargetID] = event
	}
	return result, nil
}

// RecordCycleRun upserts the audit row for a cycle.
func (s *Store) RecordCycleRun(ctx context.Context, run CycleRun) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if run.Error != nil {
		errMsg = *run.Error
	}

	if _, execErr := pool.Exec(ctx, insertCycleRunSQL,
		run.CycleTS,
		run.TargetsEvaluated,
		run.SymbolsFetched,
		run.SymbolsFailed,
		run.EventsFired,
		run.PersistFailures,
		run.Status,
		errMsg,
	); execErr != nil {
		return fmt.Errorf("record cycle run: %w", execErr)
	}
	return nil
}

func (s *Store) attachDeliveries(ctx context.Context, events []alerting.Event) ([]alerting.Event, error) {
	if len(events) == 0 {
		return events, nil
	}
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(events))
	index := make(map[int64]int, len(events))
	for i, event := range events {
		ids = append(ids, event.ID)
		index[event.ID] = i
	}

	rows, queryErr := pool.Query(ctx, listDeliveriesSQL, ids)
	if queryErr != nil {
		return nil, fmt.Errorf("list deliveries: %w", queryErr)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventID int64
			rec     alerting.DeliveryResult
			lastErr sql.NullString
		)
		if err := rows.Scan(&eventID, &rec.Channel, &rec.Attempted, &rec.Succeeded, &rec.Attempts, &lastErr); err != nil {
			return nil, err
		}
		rec.LastError = lastErr.String
		if i, ok := index[eventID]; ok {
			events[i].Deliveries = append(events[i].Deliveries, rec)
		}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func collectEvents(rows pgx.Rows) ([]alerting.Event, error) {
	defer rows.Close()

	events := make([]alerting.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func scanEvent(rows pgx.Rows) (alerting.Event, error) {
	var (
		event      alerting.Event
		targetType string
		trimStr    sql.NullString
		note       sql.NullString
		currentStr string
		targetStr  string
		deltaStr   string
		pctStr     string
	)

	if err := rows.Scan(
		&event.ID,
		&event.StockID,
		&event.TargetID,
		&event.Symbol,
		&targetType,
		&trimStr,
		&note,
		&currentStr,
		&targetStr,
		&deltaStr,
		&pctStr,
		&event.CycleTS,
		&event.TriggeredAt,
	); err != nil {
		return alerting.Event{}, err
	}

	event.TargetType = watchlist.TargetType(targetType)
	event.AlertNote = note.String

	var err error
	if event.CurrentPrice, err = decimal.NewFromString(currentStr); err != nil {
		return alerting.Event{}, fmt.Errorf("parse current price: %w", err)
	}
	if event.TargetPrice, err = decimal.NewFromString(targetStr); err != nil {
		return alerting.Event{}, fmt.Errorf("parse target price: %w", err)
	}
	if event.Delta, err = decimal.NewFromString(deltaStr); err != nil {
		return alerting.Event{}, fmt.Errorf("parse delta: %w", err)
	}
	if event.DeltaPercent, err = decimal.NewFromString(pctStr); err != nil {
		return alerting.Event{}, fmt.Errorf("parse delta pct: %w", err)
	}
	if trimStr.Valid {
		trim, convErr := decimal.NewFromString(trimStr.String)
		if convErr != nil {
			return alerting.Event{}, fmt.Errorf("parse trim percentage: %w", convErr)
		}
		event.TrimPercentage = &trim
	}

	return event, nil
}

var _ AlertHistory = (*Store)(nil)
var _ CycleRunStore = (*Store)(nil)
var _ alerting.StatusRecorder = (*Store)(nil)
