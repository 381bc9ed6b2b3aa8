package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/pishro-capital/ledger-core/internal/ledger/entity"
)

// TransactionRepo provides data access for the append-only transaction
// ledger. There is no update or delete path: corrections are recorded as
// new entries.
type TransactionRepo struct {
	db *sqlx.DB
}

func NewTransactionRepo(db *sqlx.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// EnsureTable creates the transactions table if not exists (idempotent).
func (r *TransactionRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS transactions (
  id BIGSERIAL PRIMARY KEY,
  reference TEXT NOT NULL UNIQUE,
  investment_id BIGINT NOT NULL REFERENCES investments(id) ON DELETE CASCADE,
  type TEXT NOT NULL,
  amount NUMERIC(20,2) NOT NULL,
  transaction_date DATE NOT NULL,
  description TEXT,
  recorded_by BIGINT NOT NULL,
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_investment_id ON transactions(investment_id);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(transaction_date);
CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Insert appends one ledger entry and returns its ID. Each entry is an
// independent single-row insert so concurrent recordings against one
// investment never contend on shared state.
func (r *TransactionRepo) Insert(ctx context.Context, txn *entity.Transaction) (int64, error) {
	const q = `INSERT INTO transactions
		(reference, investment_id, type, amount, transaction_date, description, recorded_by, recorded_at)
		VALUES (:reference, :investment_id, :type, :amount, :transaction_date, :description, :recorded_by, :recorded_at)
		RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, txn)
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

// ListByInvestment returns the full ledger for one investment, ordered by
// economic date descending (record time breaks ties).
func (r *TransactionRepo) ListByInvestment(ctx context.Context, investmentID int64) ([]*entity.Transaction, error) {
	const q = `SELECT id, reference, investment_id, type, amount, transaction_date, description, recorded_by, recorded_at
		FROM transactions WHERE investment_id=$1
		ORDER BY transaction_date DESC, recorded_at DESC, id DESC`
	var out []*entity.Transaction
	if err := r.db.SelectContext(ctx, &out, q, investmentID); err != nil {
		return nil, err
	}
	return out, nil
}
