package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pishro-capital/ledger-core/internal/ledger/entity"
	"github.com/pishro-capital/ledger-core/pkg/dates"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testInvestment(initial string) *entity.Investment {
	return &entity.Investment{
		ID:            1,
		UserID:        7,
		ContractType:  entity.ContractVariableHolding,
		InitialAmount: d(initial),
		StartDate:     dates.MustParse("2025-01-01"),
		Status:        entity.StatusActive,
	}
}

func txn(typ entity.TransactionType, amount, date string) *entity.Transaction {
	return &entity.Transaction{
		Type:            typ,
		Amount:          d(amount),
		TransactionDate: dates.MustParse(date),
	}
}

func valuation(id int64, newValue, date string, createdAt time.Time) *entity.Valuation {
	return &entity.Valuation{
		ID:            id,
		NewValue:      d(newValue),
		ValuationDate: dates.MustParse(date),
		CreatedAt:     createdAt,
	}
}

func TestSummarizeEmptyHistories(t *testing.T) {
	inv := testInvestment("1000000")
	s := Summarize(inv, nil, nil)

	if !s.CurrentValue.Equal(d("1000000")) {
		t.Fatalf("current=%s want initial capital", s.CurrentValue)
	}
	if s.ProfitPercentage != 0 {
		t.Fatalf("profit=%v want 0", s.ProfitPercentage)
	}
	if !s.LastUpdated.Equal(inv.StartDate) {
		t.Fatalf("last_updated=%s want start date %s", s.LastUpdated, inv.StartDate)
	}
	if !s.Deposits.IsZero() || !s.Withdrawals.IsZero() || !s.Dividends.IsZero() {
		t.Fatalf("sums should be zero: %+v", s)
	}
}

func TestSummarizeTransactionsOnly(t *testing.T) {
	inv := testInvestment("1000000")
	txns := []*entity.Transaction{
		txn(entity.TxnDeposit, "500000", "2025-02-01"),
	}
	s := Summarize(inv, txns, nil)

	if !s.CurrentValue.Equal(d("1500000")) {
		t.Fatalf("current=%s want 1500000", s.CurrentValue)
	}
	if s.ProfitPercentage != 50 {
		t.Fatalf("profit=%v want 50", s.ProfitPercentage)
	}
	if !s.LastUpdated.Equal(dates.MustParse("2025-02-01")) {
		t.Fatalf("last_updated=%s want latest transaction date", s.LastUpdated)
	}
}

func TestSummarizeAllTransactionTypes(t *testing.T) {
	inv := testInvestment("1000000")
	txns := []*entity.Transaction{
		txn(entity.TxnDeposit, "300000", "2025-02-01"),
		txn(entity.TxnWithdrawal, "100000", "2025-03-01"),
		txn(entity.TxnDividend, "50000", "2025-04-01"),
		txn(entity.TxnCancellation, "0.01", "2025-04-02"),
	}
	s := Summarize(inv, txns, nil)

	if !s.Deposits.Equal(d("300000")) || !s.Withdrawals.Equal(d("100000")) || !s.Dividends.Equal(d("50000")) {
		t.Fatalf("sums wrong: %+v", s)
	}
	// 1000000 + 300000 - 100000 + 50000; cancellations carry no amount weight
	if !s.CurrentValue.Equal(d("1250000")) {
		t.Fatalf("current=%s want 1250000", s.CurrentValue)
	}
	if !s.LastUpdated.Equal(dates.MustParse("2025-04-02")) {
		t.Fatalf("last_updated=%s want 2025-04-02", s.LastUpdated)
	}
}

func TestSummarizeValuationOverridesTransactions(t *testing.T) {
	inv := testInvestment("1000000")
	txns := []*entity.Transaction{
		txn(entity.TxnDeposit, "500000", "2025-02-01"),
	}
	vals := []*entity.Valuation{
		valuation(1, "1800000", "2025-03-01", time.Now()),
	}
	s := Summarize(inv, txns, vals)

	if !s.CurrentValue.Equal(d("1800000")) {
		t.Fatalf("current=%s want valuation override 1800000", s.CurrentValue)
	}
	if s.ProfitPercentage != 80 {
		t.Fatalf("profit=%v want 80", s.ProfitPercentage)
	}
	if !s.LastUpdated.Equal(dates.MustParse("2025-03-01")) {
		t.Fatalf("last_updated=%s want valuation date", s.LastUpdated)
	}
	// the transaction sums are still reported alongside the override
	if !s.Deposits.Equal(d("500000")) {
		t.Fatalf("deposits=%s want 500000", s.Deposits)
	}
}

func TestLatestValuationOrdering(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// later valuation date wins regardless of insertion order
	byDate := []*entity.Valuation{
		valuation(2, "222", "2025-03-02", t0),
		valuation(1, "111", "2025-03-05", t0),
	}
	if got := LatestValuation(byDate); got.ID != 1 {
		t.Fatalf("latest by date: got id=%d want 1", got.ID)
	}

	// same date: later created_at wins
	byCreated := []*entity.Valuation{
		valuation(1, "111", "2025-03-02", t0.Add(time.Hour)),
		valuation(2, "222", "2025-03-02", t0),
	}
	if got := LatestValuation(byCreated); got.ID != 1 {
		t.Fatalf("latest by created_at: got id=%d want 1", got.ID)
	}

	// same date and created_at: higher id wins
	byID := []*entity.Valuation{
		valuation(1, "111", "2025-03-02", t0),
		valuation(2, "222", "2025-03-02", t0),
	}
	if got := LatestValuation(byID); got.ID != 2 {
		t.Fatalf("latest by id: got id=%d want 2", got.ID)
	}

	if LatestValuation(nil) != nil {
		t.Fatal("empty history should have no latest valuation")
	}
}

func TestSummarizeBackdatedValuationDoesNotGovern(t *testing.T) {
	inv := testInvestment("1000000")
	vals := []*entity.Valuation{
		valuation(1, "2000000", "2025-05-01", time.Now()),
		// recorded later but dated earlier: must not take over
		valuation(2, "900000", "2025-04-01", time.Now().Add(time.Minute)),
	}
	s := Summarize(inv, nil, vals)
	if !s.CurrentValue.Equal(d("2000000")) {
		t.Fatalf("current=%s want 2000000 from the latest-dated valuation", s.CurrentValue)
	}
}

func TestBalanceAsOfIgnoresValuations(t *testing.T) {
	inv := testInvestment("1000000")
	txns := []*entity.Transaction{
		txn(entity.TxnDeposit, "500000", "2025-02-01"),
	}
	vals := []*entity.Valuation{
		valuation(1, "1800000", "2025-03-01", time.Now()),
	}

	// the summary follows the valuation, the raw ledger balance does not
	if s := Summarize(inv, txns, vals); !s.CurrentValue.Equal(d("1800000")) {
		t.Fatalf("current=%s want 1800000", s.CurrentValue)
	}
	got := BalanceAsOf(inv, txns, dates.MustParse("2025-12-31"))
	if !got.Equal(d("1500000")) {
		t.Fatalf("balance=%s want 1500000", got)
	}
}

func TestBalanceAsOfDateCutoff(t *testing.T) {
	inv := testInvestment("1000000")
	txns := []*entity.Transaction{
		txn(entity.TxnDeposit, "500000", "2025-02-01"),
		txn(entity.TxnWithdrawal, "200000", "2025-03-15"),
		txn(entity.TxnDividend, "50000", "2025-06-01"),
	}

	cases := []struct {
		asOf string
		want string
	}{
		{"2025-01-31", "1000000"},
		{"2025-02-01", "1500000"}, // entries on the cutoff day count
		{"2025-03-14", "1500000"},
		{"2025-03-15", "1300000"},
		{"2025-12-31", "1350000"},
	}
	for _, c := range cases {
		got := BalanceAsOf(inv, txns, dates.MustParse(c.asOf))
		if !got.Equal(d(c.want)) {
			t.Errorf("as of %s: balance=%s want %s", c.asOf, got, c.want)
		}
	}
}

func TestProfitPercentageZeroCapital(t *testing.T) {
	if got := ProfitPercentage(decimal.Zero, d("500000")); got != 0 {
		t.Fatalf("zero capital: profit=%v want 0", got)
	}
	if got := ProfitPercentage(d("1000000"), d("800000")); got != -20 {
		t.Fatalf("loss: profit=%v want -20", got)
	}
}
