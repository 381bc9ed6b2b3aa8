package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/pishro-capital/ledger-core/internal/ledger/entity"
	"github.com/pishro-capital/ledger-core/pkg/dates"
)

// The engine is the pure computational core of the ledger: it reconciles an
// investment's append-only transaction log with its sequence of manual
// valuations into a single current standing. It holds no state, mutates none
// of its inputs, and performs no I/O, so it is safe to call concurrently.

// LatestValuation returns the valuation that currently governs the
// investment's value: the one with the latest valuation date, ties broken by
// creation time, then by ID. Returns nil for an empty history.
func LatestValuation(vals []*entity.Valuation) *entity.Valuation {
	var latest *entity.Valuation
	for _, v := range vals {
		if latest == nil || supersedes(v, latest) {
			latest = v
		}
	}
	return latest
}

func supersedes(v, old *entity.Valuation) bool {
	if !v.ValuationDate.Equal(old.ValuationDate) {
		return v.ValuationDate.After(old.ValuationDate)
	}
	if !v.CreatedAt.Equal(old.CreatedAt) {
		return v.CreatedAt.After(old.CreatedAt)
	}
	return v.ID > old.ID
}

// Summarize computes the portfolio summary for one investment from its full
// transaction and valuation history.
//
// When at least one valuation exists, the latest one is a trusted override:
// its NewValue wins over the transaction-derived estimate. Otherwise the
// value is initial capital + deposits - withdrawals + dividends. Empty
// histories reduce to zeroes, never errors.
func Summarize(inv *entity.Investment, txns []*entity.Transaction, vals []*entity.Valuation) entity.PortfolioSummary {
	var deposits, withdrawals, dividends decimal.Decimal
	var lastTxnDate dates.Date
	for _, t := range txns {
		switch t.Type {
		case entity.TxnDeposit:
			deposits = deposits.Add(t.Amount.Abs())
		case entity.TxnWithdrawal:
			withdrawals = withdrawals.Add(t.Amount.Abs())
		case entity.TxnDividend:
			dividends = dividends.Add(t.Amount.Abs())
		}
		if lastTxnDate.IsZero() || t.TransactionDate.After(lastTxnDate) {
			lastTxnDate = t.TransactionDate
		}
	}

	var current decimal.Decimal
	var lastUpdated dates.Date
	if latest := LatestValuation(vals); latest != nil {
		current = latest.NewValue
		lastUpdated = latest.ValuationDate
	} else {
		current = inv.InitialAmount.Add(deposits).Sub(withdrawals).Add(dividends)
		if !lastTxnDate.IsZero() {
			lastUpdated = lastTxnDate
		} else {
			lastUpdated = inv.StartDate
		}
	}

	return entity.PortfolioSummary{
		InvestmentID:     inv.ID,
		ContractType:     inv.ContractType,
		Status:           inv.Status,
		InitialCapital:   inv.InitialAmount,
		Deposits:         deposits,
		Withdrawals:      withdrawals,
		Dividends:        dividends,
		CurrentValue:     current,
		ProfitPercentage: ProfitPercentage(inv.InitialAmount, current),
		LastUpdated:      lastUpdated,
	}
}

// BalanceAsOf answers "what does the raw ledger say" at the end of asOf:
// initial capital plus the signed sum of transactions dated on or before
// asOf. Valuations are not consulted here, unlike Summarize.
func BalanceAsOf(inv *entity.Investment, txns []*entity.Transaction, asOf dates.Date) decimal.Decimal {
	total := inv.InitialAmount
	for _, t := range txns {
		if t.TransactionDate.After(asOf) {
			continue
		}
		total = total.Add(t.SignedAmount())
	}
	return total
}

// ProfitPercentage is (current-initial)/initial*100, with the degenerate
// zero-capital case guarded to 0 by policy rather than failing.
func ProfitPercentage(initial, current decimal.Decimal) float64 {
	if initial.IsZero() {
		return 0
	}
	pct := current.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100))
	f, _ := pct.Float64()
	return f
}
