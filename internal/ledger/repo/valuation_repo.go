package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/pishro-capital/ledger-core/internal/ledger/entity"
)

// ValuationRepo provides data access for the append-only valuation history.
// new_value is immutable once written; corrections are new rows.
type ValuationRepo struct {
	db *sqlx.DB
}

func NewValuationRepo(db *sqlx.DB) *ValuationRepo { return &ValuationRepo{db: db} }

// EnsureTable creates the valuations table if not exists (idempotent).
func (r *ValuationRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS valuations (
  id BIGSERIAL PRIMARY KEY,
  investment_id BIGINT NOT NULL REFERENCES investments(id) ON DELETE CASCADE,
  old_value NUMERIC(20,2),
  new_value NUMERIC(20,2) NOT NULL,
  profit_percentage DOUBLE PRECISION,
  valuation_date DATE NOT NULL,
  reason TEXT,
  updated_by BIGINT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_valuations_investment_id ON valuations(investment_id);
CREATE INDEX IF NOT EXISTS idx_valuations_date ON valuations(valuation_date);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const valuationColumns = `id, investment_id, old_value, new_value, profit_percentage,
	valuation_date, reason, updated_by, created_at`

// Insert appends one valuation snapshot and returns its ID.
func (r *ValuationRepo) Insert(ctx context.Context, val *entity.Valuation) (int64, error) {
	const q = `INSERT INTO valuations
		(investment_id, old_value, new_value, profit_percentage, valuation_date, reason, updated_by, created_at)
		VALUES (:investment_id, :old_value, :new_value, :profit_percentage, :valuation_date, :reason, :updated_by, :created_at)
		RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, val)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	return 0, errors.New("no id returned")
}

// Latest returns the governing valuation: latest date, ties broken by
// creation time then ID. sql.ErrNoRows when the history is empty.
func (r *ValuationRepo) Latest(ctx context.Context, investmentID int64) (*entity.Valuation, error) {
	const q = `SELECT ` + valuationColumns + ` FROM valuations WHERE investment_id=$1
		ORDER BY valuation_date DESC, created_at DESC, id DESC LIMIT 1`
	var val entity.Valuation
	if err := r.db.GetContext(ctx, &val, q, investmentID); err != nil {
		return nil, err
	}
	return &val, nil
}

// History returns valuations newest first; limit <= 0 returns all.
func (r *ValuationRepo) History(ctx context.Context, investmentID int64, limit int) ([]*entity.Valuation, error) {
	q := `SELECT ` + valuationColumns + ` FROM valuations WHERE investment_id=$1
		ORDER BY valuation_date DESC, created_at DESC, id DESC`
	var out []*entity.Valuation
	if limit > 0 {
		q += ` LIMIT $2`
		if err := r.db.SelectContext(ctx, &out, q, investmentID, limit); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := r.db.SelectContext(ctx, &out, q, investmentID); err != nil {
		return nil, err
	}
	return out, nil
}
