package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/arbfilter/internal/arbitrage"
	"github.com/wonny/arbfilter/internal/processor"
)

//go:embed schema.sql
var schema string

// ErrNotFound 저장된 실행 없음
var ErrNotFound = errors.New("run not found")

// RunRecord 필터 실행 요약 (filter_runs 한 행)
type RunRecord struct {
	ID         uuid.UUID               `json:"id"`
	CreatedAt  time.Time               `json:"created_at"`
	Source     string                  `json:"source"` // api, scheduler:<job>, cli
	Kind       arbitrage.Kind          `json:"kind"`
	ConfigHash string                  `json:"config_hash,omitempty"`
	Options    arbitrage.Options       `json:"options"`
	Reports    []arbitrage.SliceReport `json:"reports"`
	NumQuotes  int                     `json:"num_quotes"`
}

// Repository 필터 실행 저장소
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveRun stores the run summary and its admitted quotes in one transaction.
// Rows are expected in normalized call price / moneyness units.
func (r *Repository) SaveRun(ctx context.Context, rec RunRecord, rows []processor.Row) error {
	options, err := json.Marshal(rec.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	reports, err := json.Marshal(rec.Reports)
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO filter_runs (id, created_at, source, kind, config_hash, options, reports, num_quotes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.CreatedAt, rec.Source, string(rec.Kind), rec.ConfigHash, options, reports, rec.NumQuotes,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(rows) > 0 {
		batch := &pgx.Batch{}
		query := `
			INSERT INTO filtered_quotes (run_id, expiry, strike, bid, ask, liquidity, adjustment)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`
		for _, q := range rows {
			batch.Queue(query, rec.ID, q.Expiry, q.Strike, q.Bid, q.Ask, q.Liquidity, q.Adjustment)
		}

		br := tx.SendBatch(ctx, batch)
		for range rows {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert quotes: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

const runColumns = `id, created_at, source, kind, config_hash, options, reports, num_quotes`

func scanRun(row pgx.Row) (*RunRecord, error) {
	var (
		rec              RunRecord
		kind             string
		options, reports []byte
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.Source, &kind, &rec.ConfigHash, &options, &reports, &rec.NumQuotes); err != nil {
		return nil, err
	}
	rec.Kind = arbitrage.Kind(kind)
	if err := json.Unmarshal(options, &rec.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if err := json.Unmarshal(reports, &rec.Reports); err != nil {
		return nil, fmt.Errorf("unmarshal reports: %w", err)
	}
	return &rec, nil
}

// GetRun 실행 요약 조회
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	rec, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM filter_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// ListRuns returns the most recent runs first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM filter_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetQuotes returns the stored quotes of a run ordered by expiry and strike.
func (r *Repository) GetQuotes(ctx context.Context, id uuid.UUID) ([]processor.Row, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT expiry, strike, bid, ask, liquidity, adjustment
		FROM filtered_quotes
		WHERE run_id = $1
		ORDER BY expiry, strike`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []processor.Row
	for rows.Next() {
		var q processor.Row
		if err := rows.Scan(&q.Expiry, &q.Strike, &q.Bid, &q.Ask, &q.Liquidity, &q.Adjustment); err != nil {
			return nil, err
		}
		q.Mid = 0.5 * (q.Bid + q.Ask)
		if q.Bid == q.Ask {
			q.Mid = q.Bid
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// DeleteBefore removes runs older than cutoff and returns how many were removed.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM filter_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
