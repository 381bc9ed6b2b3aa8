package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pishro-capital/ledger-core/internal/ledger/entity"
	"github.com/pishro-capital/ledger-core/internal/notify"
	"github.com/pishro-capital/ledger-core/pkg/dates"
	"github.com/pishro-capital/ledger-core/pkg/utilities"
)

// sentinel errors for common failure modes
var (
	ErrInvestmentNotFound      = errors.New("investment not found")
	ErrValuationNotFound       = errors.New("no valuation recorded")
	ErrInvalidContractType     = errors.New("invalid contract type")
	ErrInvalidTransactionType  = errors.New("invalid transaction type")
	ErrInvalidValuationMode    = errors.New("invalid valuation mode")
	ErrAmountNotPositive       = errors.New("amount must be positive")
	ErrAmountTooLarge          = errors.New("amount exceeds accepted maximum")
	ErrPercentOutOfRange       = errors.New("percentage must be between -100 and 1000")
	ErrMissingDate             = errors.New("date is required")
	ErrMissingActor            = errors.New("acting user is required")
	ErrDividendRateRequired    = errors.New("fixed-rate contract requires a dividend rate")
	ErrDividendRateNotAllowed  = errors.New("dividend rate only applies to fixed-rate contracts")
	ErrInvalidDividendRate     = errors.New("dividend rate must be a fraction in (0, 1]")
	ErrInvalidHoldingPeriod    = errors.New("holding period must be positive")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrCancelledDateNotAllowed = errors.New("cancelled date only applies to cancelled status")
)

// maxAmount rejects transposition and overflow typos from free-text entry:
// 100 billion Toman.
var maxAmount = decimal.New(1, 11)

// descriptionMax bounds free-text descriptions and reasons; longer input is
// truncated, not rejected.
const descriptionMax = 500

// InvestmentStore is the slice of the entity store the ledger needs for
// investments. Missing rows surface as sql.ErrNoRows.
type InvestmentStore interface {
	GetByID(ctx context.Context, id int64) (*entity.Investment, error)
	Create(ctx context.Context, inv *entity.Investment) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status entity.InvestmentStatus, cancelled dates.NullDate) error
	ListAll(ctx context.Context, limit, offset int) ([]*entity.Investment, error)
	ListByUser(ctx context.Context, userID int64) ([]*entity.Investment, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

// TransactionStore appends and reads the append-only transaction log,
// ordered by transaction date descending.
type TransactionStore interface {
	Insert(ctx context.Context, txn *entity.Transaction) (int64, error)
	ListByInvestment(ctx context.Context, investmentID int64) ([]*entity.Transaction, error)
}

// ValuationStore appends and reads the append-only valuation history,
// ordered by valuation date descending. History with limit <= 0 returns the
// full history.
type ValuationStore interface {
	Insert(ctx context.Context, val *entity.Valuation) (int64, error)
	Latest(ctx context.Context, investmentID int64) (*entity.Valuation, error)
	History(ctx context.Context, investmentID int64, limit int) ([]*entity.Valuation, error)
}

// Service owns the rules for how the transaction ledger and the valuation
// history combine into current value and profit. Storage is injected; the
// service keeps no mutable state of its own and is safe for concurrent use.
type Service struct {
	investments InvestmentStore
	txns        TransactionStore
	vals        ValuationStore
	notifier    notify.Notifier
	logger      *zap.SugaredLogger
}

func NewService(inv InvestmentStore, txns TransactionStore, vals ValuationStore, n notify.Notifier, logger *zap.SugaredLogger) *Service {
	if n == nil {
		n = notify.Noop{}
	}
	return &Service{investments: inv, txns: txns, vals: vals, notifier: n, logger: logger}
}

// getInvestment maps a missing row to ErrInvestmentNotFound; a user-supplied
// identifier that resolves to nothing is a normal outcome, not a crash.
func (s *Service) getInvestment(ctx context.Context, id int64) (*entity.Investment, error) {
	inv, err := s.investments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvestmentNotFound
		}
		return nil, fmt.Errorf("get investment %d: %w", id, err)
	}
	return inv, nil
}

// GetInvestment returns one investment or ErrInvestmentNotFound.
func (s *Service) GetInvestment(ctx context.Context, id int64) (*entity.Investment, error) {
	return s.getInvestment(ctx, id)
}

// ListInvestments returns a page of investments, newest start date first.
func (s *Service) ListInvestments(ctx context.Context, limit, offset int) ([]*entity.Investment, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.investments.ListAll(ctx, limit, offset)
}

// ListInvestmentsByUser returns all investments owned by a user.
func (s *Service) ListInvestmentsByUser(ctx context.Context, userID int64) ([]*entity.Investment, error) {
	return s.investments.ListByUser(ctx, userID)
}

// CreateInvestmentInput carries the fields for a new capital commitment.
type CreateInvestmentInput struct {
	UserID              int64
	ContractType        entity.ContractType
	InitialAmount       decimal.Decimal
	StartDate           dates.Date
	DividendRate        decimal.NullDecimal
	HoldingPeriodMonths *int
}

// CreateInvestment validates contract coherence and creates the investment.
func (s *Service) CreateInvestment(ctx context.Context, in CreateInvestmentInput) (*entity.Investment, error) {
	if in.UserID <= 0 {
		return nil, ErrMissingActor
	}
	if !in.ContractType.Valid() {
		return nil, ErrInvalidContractType
	}
	if err := validateAmount(in.InitialAmount); err != nil {
		return nil, err
	}
	if in.StartDate.IsZero() {
		return nil, ErrMissingDate
	}
	switch in.ContractType {
	case entity.ContractFixedRate:
		if !in.DividendRate.Valid {
			return nil, ErrDividendRateRequired
		}
		r := in.DividendRate.Decimal
		if r.Sign() <= 0 || r.GreaterThan(decimal.NewFromInt(1)) {
			return nil, ErrInvalidDividendRate
		}
	case entity.ContractVariableHolding:
		if in.DividendRate.Valid {
			return nil, ErrDividendRateNotAllowed
		}
	}
	if in.HoldingPeriodMonths != nil && *in.HoldingPeriodMonths <= 0 {
		return nil, ErrInvalidHoldingPeriod
	}

	now := time.Now().UTC()
	inv := &entity.Investment{
		UserID:              in.UserID,
		ContractType:        in.ContractType,
		InitialAmount:       in.InitialAmount,
		StartDate:           in.StartDate,
		DividendRate:        in.DividendRate,
		HoldingPeriodMonths: in.HoldingPeriodMonths,
		Status:              entity.StatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	id, err := s.investments.Create(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("create investment: %w", err)
	}
	inv.ID = id
	return inv, nil
}

// UpdateInvestmentStatus applies a lifecycle transition.
// Allowed: active->cancelled (terminal), active->suspended, suspended->active.
// The cancelled date is set if and only if the new status is cancelled; when
// omitted it defaults to today.
func (s *Service) UpdateInvestmentStatus(ctx context.Context, id int64, status entity.InvestmentStatus, cancelled dates.NullDate) (*entity.Investment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatusTransition
	}
	inv, err := s.getInvestment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(inv.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, inv.Status, status)
	}
	if status == entity.StatusCancelled {
		if !cancelled.Valid {
			cancelled = dates.NewNull(dates.Today())
		}
	} else {
		if cancelled.Valid {
			return nil, ErrCancelledDateNotAllowed
		}
		cancelled = dates.NullDate{}
	}
	if err := s.investments.UpdateStatus(ctx, id, status, cancelled); err != nil {
		return nil, fmt.Errorf("update investment %d status: %w", id, err)
	}
	inv.Status = status
	inv.CancelledDate = cancelled
	return inv, nil
}

func transitionAllowed(from, to entity.InvestmentStatus) bool {
	switch from {
	case entity.StatusActive:
		return to == entity.StatusCancelled || to == entity.StatusSuspended
	case entity.StatusSuspended:
		return to == entity.StatusActive
	}
	// cancelled is terminal
	return false
}

// RecordTransaction appends one immutable ledger entry.
//
// The amount must be a positive magnitude within the accepted bound; the
// economic sign is implied by the type. Backdated and future-dated entries
// are both accepted: corrections and delayed reporting are normal. The write
// is a single independent insert, never a read-modify-write on a running
// balance, so concurrent recordings against one investment cannot lose
// updates. Summaries are always recomputed on read.
func (s *Service) RecordTransaction(ctx context.Context, investmentID int64, typ entity.TransactionType, amount decimal.Decimal, txnDate dates.Date, recordedBy int64, description *string) (*entity.Transaction, error) {
	if !typ.Valid() {
		return nil, ErrInvalidTransactionType
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if txnDate.IsZero() {
		return nil, ErrMissingDate
	}
	if recordedBy <= 0 {
		return nil, ErrMissingActor
	}
	inv, err := s.getInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	txn := &entity.Transaction{
		Reference:       utilities.NewReference(),
		InvestmentID:    investmentID,
		Type:            typ,
		Amount:          amount,
		TransactionDate: txnDate,
		Description:     truncated(description),
		RecordedBy:      recordedBy,
		RecordedAt:      time.Now().UTC(),
	}
	id, err := s.txns.Insert(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	txn.ID = id
	s.logger.Infow("transaction recorded",
		"investment_id", investmentID, "type", typ, "amount", amount, "reference", txn.Reference, "recorded_by", recordedBy)

	// fire-and-forget: a failed notification never rolls back the write
	go s.notifier.TransactionRecorded(inv, txn)
	return txn, nil
}

// ValuationMode selects how the new value is supplied.
type ValuationMode string

const (
	// ModeAbsolute takes the new value directly.
	ModeAbsolute ValuationMode = "absolute"
	// ModePercentage derives the new value from a percentage change against
	// the investment's current value.
	ModePercentage ValuationMode = "percentage"
)

// ValuationInput carries the fields for a new valuation snapshot.
type ValuationInput struct {
	Mode      ValuationMode
	NewValue  decimal.Decimal // absolute mode
	Percent   float64         // percentage mode, in [-100, 1000]
	Date      dates.Date
	UpdatedBy int64
	Reason    *string
}

// RecordValuation appends one immutable valuation snapshot. The old value is
// captured from the engine's current value at the moment of recording and is
// never recomputed afterward; corrections are new rows, never edits.
//
// Percentage mode keeps the source system's formula: the base is
// current/(1+p/100) except at p = -100 where the base is left as the current
// value to avoid the division collapse, and the new value is
// base*(1+p/100). For any p != -100 this algebraically lands back on the
// current value.
func (s *Service) RecordValuation(ctx context.Context, investmentID int64, in ValuationInput) (*entity.Valuation, error) {
	if in.Mode != ModeAbsolute && in.Mode != ModePercentage {
		return nil, ErrInvalidValuationMode
	}
	if in.Date.IsZero() {
		return nil, ErrMissingDate
	}
	if in.UpdatedBy <= 0 {
		return nil, ErrMissingActor
	}
	if in.Mode == ModeAbsolute {
		if err := validateAmount(in.NewValue); err != nil {
			return nil, err
		}
	} else if in.Percent < -100 || in.Percent > 1000 {
		return nil, ErrPercentOutOfRange
	}

	inv, err := s.getInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(ctx, inv)
	if err != nil {
		return nil, err
	}

	newValue := in.NewValue
	var profitPct *float64
	if in.Mode == ModePercentage {
		current, _ := summary.CurrentValue.Float64()
		base := current
		if in.Percent != -100 {
			base = current / (1 + in.Percent/100)
		}
		newValue = decimal.NewFromFloat(base * (1 + in.Percent/100)).Round(2)
		p := in.Percent
		profitPct = &p
	}

	val := &entity.Valuation{
		InvestmentID:     investmentID,
		OldValue:         decimal.NullDecimal{Decimal: summary.CurrentValue, Valid: true},
		NewValue:         newValue,
		ProfitPercentage: profitPct,
		ValuationDate:    in.Date,
		Reason:           truncated(in.Reason),
		UpdatedBy:        in.UpdatedBy,
		CreatedAt:        time.Now().UTC(),
	}
	id, err := s.vals.Insert(ctx, val)
	if err != nil {
		return nil, fmt.Errorf("insert valuation: %w", err)
	}
	val.ID = id
	s.logger.Infow("valuation recorded",
		"investment_id", investmentID, "old_value", summary.CurrentValue, "new_value", newValue, "updated_by", in.UpdatedBy)

	go s.notifier.ValuationRecorded(inv, val)
	return val, nil
}

// GetPortfolioSummary recomputes the investment's standing from its full
// transaction and valuation history.
func (s *Service) GetPortfolioSummary(ctx context.Context, investmentID int64) (entity.PortfolioSummary, error) {
	inv, err := s.getInvestment(ctx, investmentID)
	if err != nil {
		return entity.PortfolioSummary{}, err
	}
	return s.summarize(ctx, inv)
}

func (s *Service) summarize(ctx context.Context, inv *entity.Investment) (entity.PortfolioSummary, error) {
	txns, err := s.txns.ListByInvestment(ctx, inv.ID)
	if err != nil {
		return entity.PortfolioSummary{}, fmt.Errorf("list transactions for %d: %w", inv.ID, err)
	}
	vals, err := s.vals.History(ctx, inv.ID, 0)
	if err != nil {
		return entity.PortfolioSummary{}, fmt.Errorf("list valuations for %d: %w", inv.ID, err)
	}
	return Summarize(inv, txns, vals), nil
}

// BalanceAsOf answers what the raw transaction ledger says at the end of the
// given date, independent of any valuation overrides.
func (s *Service) BalanceAsOf(ctx context.Context, investmentID int64, asOf dates.Date) (decimal.Decimal, error) {
	if asOf.IsZero() {
		return decimal.Decimal{}, ErrMissingDate
	}
	inv, err := s.getInvestment(ctx, investmentID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	txns, err := s.txns.ListByInvestment(ctx, investmentID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("list transactions for %d: %w", investmentID, err)
	}
	return BalanceAsOf(inv, txns, asOf), nil
}

// TransactionHistory returns one page of the ledger, newest first, plus the
// total entry count.
func (s *Service) TransactionHistory(ctx context.Context, investmentID int64, limit, offset int) ([]*entity.Transaction, int, error) {
	if _, err := s.getInvestment(ctx, investmentID); err != nil {
		return nil, 0, err
	}
	all, err := s.txns.ListByInvestment(ctx, investmentID)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions for %d: %w", investmentID, err)
	}
	total := len(all)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*entity.Transaction{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// LatestValuation returns the governing valuation or ErrValuationNotFound.
func (s *Service) LatestValuation(ctx context.Context, investmentID int64) (*entity.Valuation, error) {
	if _, err := s.getInvestment(ctx, investmentID); err != nil {
		return nil, err
	}
	v, err := s.vals.Latest(ctx, investmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrValuationNotFound
		}
		return nil, fmt.Errorf("latest valuation for %d: %w", investmentID, err)
	}
	return v, nil
}

// ValuationHistory returns up to limit valuations, newest first.
func (s *Service) ValuationHistory(ctx context.Context, investmentID int64, limit int) ([]*entity.Valuation, error) {
	if _, err := s.getInvestment(ctx, investmentID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	vals, err := s.vals.History(ctx, investmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("valuation history for %d: %w", investmentID, err)
	}
	return vals, nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrAmountNotPositive
	}
	if amount.GreaterThan(maxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// truncated bounds free-text input instead of rejecting it.
func truncated(s *string) *string {
	if s == nil {
		return nil
	}
	r := []rune(*s)
	if len(r) <= descriptionMax {
		return s
	}
	t := string(r[:descriptionMax])
	return &t
}
