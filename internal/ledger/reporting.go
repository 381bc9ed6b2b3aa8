package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reporter is the read-only aggregation side for dashboards. It composes
// over the ledger service; an investment that fails to resolve mid-aggregate
// (deleted, storage hiccup) is skipped and logged, never aborts the total.
type Reporter struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewReporter(svc *Service, logger *zap.SugaredLogger) *Reporter {
	return &Reporter{svc: svc, logger: logger}
}

// OverviewStats are dashboard totals across all investments.
type OverviewStats struct {
	Investments         int             `json:"investments"`
	Skipped             int             `json:"skipped"`
	TotalInitialCapital decimal.Decimal `json:"total_initial_capital"`
	TotalCurrentValue   decimal.Decimal `json:"total_current_value"`
	TotalProfit         decimal.Decimal `json:"total_profit"`
	AverageROI          float64         `json:"average_roi"`
}

// UserRollup aggregates one user's investments.
type UserRollup struct {
	UserID            int64           `json:"user_id"`
	Investments       int             `json:"investments"`
	TotalInvested     decimal.Decimal `json:"total_invested"`
	TotalCurrentValue decimal.Decimal `json:"total_current_value"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	BlendedROI        float64         `json:"blended_roi"`
}

// Overview aggregates portfolio summaries across every investment.
func (r *Reporter) Overview(ctx context.Context) (OverviewStats, error) {
	ids, err := r.svc.investments.ListIDs(ctx)
	if err != nil {
		return OverviewStats{}, fmt.Errorf("list investment ids: %w", err)
	}

	var stats OverviewStats
	var roiSum float64
	for _, id := range ids {
		summary, err := r.svc.GetPortfolioSummary(ctx, id)
		if err != nil {
			// dashboards degrade gracefully
			stats.Skipped++
			r.logger.Warnw("overview skipping investment", "investment_id", id, "err", err)
			continue
		}
		stats.Investments++
		stats.TotalInitialCapital = stats.TotalInitialCapital.Add(summary.InitialCapital)
		stats.TotalCurrentValue = stats.TotalCurrentValue.Add(summary.CurrentValue)
		stats.TotalProfit = stats.TotalProfit.Add(summary.CurrentValue.Sub(summary.InitialCapital))
		roiSum += summary.ProfitPercentage
	}
	if stats.Investments > 0 {
		stats.AverageROI = roiSum / float64(stats.Investments)
	}
	return stats, nil
}

// ForUser rolls up all of one user's investments into blended totals.
func (r *Reporter) ForUser(ctx context.Context, userID int64) (UserRollup, error) {
	invs, err := r.svc.investments.ListByUser(ctx, userID)
	if err != nil {
		return UserRollup{}, fmt.Errorf("list investments for user %d: %w", userID, err)
	}

	rollup := UserRollup{UserID: userID}
	for _, inv := range invs {
		summary, err := r.svc.GetPortfolioSummary(ctx, inv.ID)
		if err != nil {
			r.logger.Warnw("rollup skipping investment", "investment_id", inv.ID, "err", err)
			continue
		}
		rollup.Investments++
		rollup.TotalInvested = rollup.TotalInvested.Add(summary.InitialCapital)
		rollup.TotalCurrentValue = rollup.TotalCurrentValue.Add(summary.CurrentValue)
	}
	rollup.TotalProfit = rollup.TotalCurrentValue.Sub(rollup.TotalInvested)
	rollup.BlendedROI = ProfitPercentage(rollup.TotalInvested, rollup.TotalCurrentValue)
	return rollup, nil
}
