package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"stock-target-alerts/internal/watchlist"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	listActiveTargetsSQL = `SELECT
        s.id,
        s.symbol,
        s.company_name,
        s.exchange,
        t.id,
        t.target_type,
        t.target_price,
        t.trim_percentage,
        t.alert_note,
        t.is_active
    FROM targets t
    JOIN stocks s ON s.id = t.stock_id
    WHERE t.is_active
    ORDER BY s.symbol, t.id;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AdvisoryLocker exposes advisory lock helpers used to keep cycles
// non-overlapping across processes.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the watchlist snapshot and alert history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListActiveTargets returns a point-in-time snapshot of every active target
// paired with its stock. A single query keeps the snapshot consistent.
func (s *Store) ListActiveTargets(ctx context.Context) ([]watchlist.Item, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveTargetsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active targets: %w", queryErr)
	}
	defer rows.Close()

	items := make([]watchlist.Item, 0)
	for rows.Next() {
		var (
			item       watchlist.Item
			company    sql.NullString
			exchange   sql.NullString
			targetType string
			priceStr   string
			trimStr    sql.NullString
			note       sql.NullString
		)
		if err := rows.Scan(
			&item.Stock.ID,
			&item.Stock.Symbol,
			&company,
			&exchange,
			&item.Target.ID,
			&targetType,
			&priceStr,
			&trimStr,
			&note,
			&item.Target.Active,
		); err != nil {
			return nil, err
		}

		item.Stock.CompanyName = company.String
		item.Stock.Exchange = exchange.String
		item.Target.StockID = item.Stock.ID
		item.Target.Type = watchlist.TargetType(targetType)
		item.Target.AlertNote = note.String

		item.Target.Price, err = decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse target price: %w", err)
		}
		if trimStr.Valid {
			trim, convErr := decimal.NewFromString(trimStr.String)
			if convErr != nil {
				return nil, fmt.Errorf("parse trim percentage: %w", convErr)
			}
			item.Target.TrimPercentage = &trim
		}

		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Best effort: the lock is session scoped and Release drops it anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

var _ watchlist.Repository = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
