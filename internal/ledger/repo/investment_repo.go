package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/pishro-capital/ledger-core/internal/ledger/entity"
	"github.com/pishro-capital/ledger-core/pkg/dates"
)

// InvestmentRepo provides data access for the investments table using sqlx.
type InvestmentRepo struct {
	db *sqlx.DB
}

func NewInvestmentRepo(db *sqlx.DB) *InvestmentRepo { return &InvestmentRepo{db: db} }

// EnsureTable creates the investments table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *InvestmentRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS investments (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id),
  contract_type TEXT NOT NULL,
  initial_amount NUMERIC(20,2) NOT NULL CHECK (initial_amount > 0),
  start_date DATE NOT NULL,
  dividend_rate NUMERIC(8,6),
  holding_period_months INT,
  status TEXT NOT NULL DEFAULT 'active',
  cancelled_date DATE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_investments_user_id ON investments(user_id);
CREATE INDEX IF NOT EXISTS idx_investments_status ON investments(status);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const investmentColumns = `id, user_id, contract_type, initial_amount, start_date,
	dividend_rate, holding_period_months, status, cancelled_date, created_at, updated_at`

// Create inserts a new investment row and returns the new ID.
func (r *InvestmentRepo) Create(ctx context.Context, inv *entity.Investment) (int64, error) {
	const q = `INSERT INTO investments
		(user_id, contract_type, initial_amount, start_date, dividend_rate, holding_period_months, status, created_at, updated_at)
		VALUES (:user_id, :contract_type, :initial_amount, :start_date, :dividend_rate, :holding_period_months, :status, :created_at, :updated_at)
		RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, inv)
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

// GetByID fetches one investment or sql.ErrNoRows.
func (r *InvestmentRepo) GetByID(ctx context.Context, id int64) (*entity.Investment, error) {
	const q = `SELECT ` + investmentColumns + ` FROM investments WHERE id=$1`
	var inv entity.Investment
	if err := r.db.GetContext(ctx, &inv, q, id); err != nil {
		return nil, err
	}
	return &inv, nil
}

// UpdateStatus applies a lifecycle change. The cancelled date column always
// mirrors the status argument: set for cancelled, cleared otherwise.
func (r *InvestmentRepo) UpdateStatus(ctx context.Context, id int64, status entity.InvestmentStatus, cancelled dates.NullDate) error {
	const q = `UPDATE investments SET status=$2, cancelled_date=$3, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, status, cancelled)
	return err
}

// ListAll returns a page of investments, newest start date first.
func (r *InvestmentRepo) ListAll(ctx context.Context, limit, offset int) ([]*entity.Investment, error) {
	const q = `SELECT ` + investmentColumns + ` FROM investments
		ORDER BY start_date DESC, id DESC LIMIT $1 OFFSET $2`
	var out []*entity.Investment
	if err := r.db.SelectContext(ctx, &out, q, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns all investments owned by one user, newest first.
func (r *InvestmentRepo) ListByUser(ctx context.Context, userID int64) ([]*entity.Investment, error) {
	const q = `SELECT ` + investmentColumns + ` FROM investments
		WHERE user_id=$1 ORDER BY start_date DESC, id DESC`
	var out []*entity.Investment
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListIDs returns every investment ID, for aggregate reporting.
func (r *InvestmentRepo) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM investments ORDER BY id`); err != nil {
		return nil, err
	}
	return ids, nil
}
