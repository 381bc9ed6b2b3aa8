package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pishro-capital/ledger-core/pkg/dates"
)

// ContractType is the kind of capital commitment an investment represents.
type ContractType string

const (
	// ContractFixedRate accrues a fixed monthly dividend rate; its value is
	// expected to be kept current by scheduled dividend transactions.
	ContractFixedRate ContractType = "fixed_rate"
	// ContractVariableHolding has no formula-based value; its worth is
	// asserted externally through manual valuations.
	ContractVariableHolding ContractType = "variable_holding"
)

func (c ContractType) Valid() bool {
	return c == ContractFixedRate || c == ContractVariableHolding
}

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TxnDeposit      TransactionType = "deposit"
	TxnWithdrawal   TransactionType = "withdrawal"
	TxnDividend     TransactionType = "dividend"
	TxnCancellation TransactionType = "cancellation"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxnDeposit, TxnWithdrawal, TxnDividend, TxnCancellation:
		return true
	}
	return false
}

// InvestmentStatus is the lifecycle state of an investment.
type InvestmentStatus string

const (
	StatusActive    InvestmentStatus = "active"
	StatusCancelled InvestmentStatus = "cancelled"
	StatusSuspended InvestmentStatus = "suspended"
)

func (s InvestmentStatus) Valid() bool {
	switch s {
	case StatusActive, StatusCancelled, StatusSuspended:
		return true
	}
	return false
}

// Investment is one capital commitment by one user.
// Invariants enforced at the store boundary: InitialAmount > 0,
// DividendRate set only for fixed-rate contracts, CancelledDate set if and
// only if Status is cancelled.
type Investment struct {
	ID                  int64               `db:"id" json:"id"`
	UserID              int64               `db:"user_id" json:"user_id"`
	ContractType        ContractType        `db:"contract_type" json:"contract_type"`
	InitialAmount       decimal.Decimal     `db:"initial_amount" json:"initial_amount"`
	StartDate           dates.Date          `db:"start_date" json:"start_date"`
	DividendRate        decimal.NullDecimal `db:"dividend_rate" json:"dividend_rate"`
	HoldingPeriodMonths *int                `db:"holding_period_months" json:"holding_period_months,omitempty"`
	Status              InvestmentStatus    `db:"status" json:"status"`
	CancelledDate       dates.NullDate      `db:"cancelled_date" json:"cancelled_date"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updated_at"`
}

// Transaction is one immutable ledger entry for an investment.
// Amount is stored as a positive magnitude; the economic sign is implied by
// Type and applied by SignedAmount, never trusted from storage.
type Transaction struct {
	ID              int64           `db:"id" json:"id"`
	Reference       string          `db:"reference" json:"reference"`
	InvestmentID    int64           `db:"investment_id" json:"investment_id"`
	Type            TransactionType `db:"type" json:"type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	TransactionDate dates.Date      `db:"transaction_date" json:"transaction_date"`
	Description     *string         `db:"description" json:"description,omitempty"`
	RecordedBy      int64           `db:"recorded_by" json:"recorded_by"`
	RecordedAt      time.Time       `db:"recorded_at" json:"recorded_at"`
}

// SignedAmount returns the transaction's effect on the balance: deposits and
// dividends add, withdrawals and cancellations subtract, regardless of the
// sign the amount was stored with.
func (t *Transaction) SignedAmount() decimal.Decimal {
	switch t.Type {
	case TxnWithdrawal, TxnCancellation:
		return t.Amount.Abs().Neg()
	default:
		return t.Amount.Abs()
	}
}

// Valuation is one dated, trusted snapshot of an investment's total worth.
// NewValue is immutable once created; corrections are new Valuation rows.
type Valuation struct {
	ID               int64               `db:"id" json:"id"`
	InvestmentID     int64               `db:"investment_id" json:"investment_id"`
	OldValue         decimal.NullDecimal `db:"old_value" json:"old_value"`
	NewValue         decimal.Decimal     `db:"new_value" json:"new_value"`
	ProfitPercentage *float64            `db:"profit_percentage" json:"profit_percentage,omitempty"`
	ValuationDate    dates.Date          `db:"valuation_date" json:"valuation_date"`
	Reason           *string             `db:"reason" json:"reason,omitempty"`
	UpdatedBy        int64               `db:"updated_by" json:"updated_by"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
}

// PortfolioSummary is the engine's computed view of an investment's standing.
type PortfolioSummary struct {
	InvestmentID   int64            `json:"investment_id"`
	ContractType   ContractType     `json:"contract_type"`
	Status         InvestmentStatus `json:"status"`
	InitialCapital decimal.Decimal  `json:"initial_capital"`
	Deposits       decimal.Decimal  `json:"deposits"`
	Withdrawals    decimal.Decimal  `json:"withdrawals"`
	Dividends      decimal.Decimal  `json:"dividends"`
	CurrentValue   decimal.Decimal  `json:"current_value"`
	// ProfitPercentage is (current-initial)/initial*100. By policy it is 0
	// when initial capital is 0; callers must not read it as a true profit
	// figure in that case.
	ProfitPercentage float64    `json:"profit_percentage"`
	LastUpdated      dates.Date `json:"last_updated"`
}
