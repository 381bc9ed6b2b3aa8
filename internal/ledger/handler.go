package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pishro-capital/ledger-core/internal/auth"
	"github.com/pishro-capital/ledger-core/internal/ledger/entity"
	"github.com/pishro-capital/ledger-core/pkg/dates"
)

// Handler exposes HTTP endpoints for the ledger: investments, transactions,
// valuations, summaries, and aggregate reports.
type Handler struct {
	svc      *Service
	reporter *Reporter
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, reporter *Reporter, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, reporter: reporter, logger: logger}
}

// CreateInvestmentRequest is the body for creating an investment.
type CreateInvestmentRequest struct {
	UserID              int64               `json:"user_id"`
	ContractType        string              `json:"contract_type"`
	InitialAmount       decimal.Decimal     `json:"initial_amount"`
	StartDate           dates.Date          `json:"start_date"`
	DividendRate        decimal.NullDecimal `json:"dividend_rate"`
	HoldingPeriodMonths *int                `json:"holding_period_months"`
}

func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	var req CreateInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid payload"))
		return
	}
	inv, err := h.svc.CreateInvestment(r.Context(), CreateInvestmentInput{
		UserID:              req.UserID,
		ContractType:        entity.ContractType(req.ContractType),
		InitialAmount:       req.InitialAmount,
		StartDate:           req.StartDate,
		DividendRate:        req.DividendRate,
		HoldingPeriodMonths: req.HoldingPeriodMonths,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, inv)
}

func (h *Handler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	if v := r.URL.Query().Get("user_id"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errBody("invalid user_id"))
			return
		}
		invs, err := h.svc.ListInvestmentsByUser(r.Context(), userID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, invs)
		return
	}
	invs, err := h.svc.ListInvestments(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invs)
}

func (h *Handler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.GetInvestment(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inv)
}

// UpdateStatusRequest is the body for a lifecycle transition.
type UpdateStatusRequest struct {
	Status        string         `json:"status"`
	CancelledDate dates.NullDate `json:"cancelled_date"`
}

func (h *Handler) UpdateInvestmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid payload"))
		return
	}
	inv, err := h.svc.UpdateInvestmentStatus(r.Context(), id, entity.InvestmentStatus(req.Status), req.CancelledDate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inv)
}

func (h *Handler) PortfolioSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	summary, err := h.svc.GetPortfolioSummary(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) BalanceAsOf(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	asOf, err := dates.Parse(r.URL.Query().Get("as_of"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid or missing as_of date"))
		return
	}
	balance, err := h.svc.BalanceAsOf(r.Context(), id, asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"investment_id": id,
		"as_of":         asOf,
		"balance":       balance,
	})
}

// RecordTransactionRequest is the body for appending a ledger entry.
type RecordTransactionRequest struct {
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate dates.Date      `json:"transaction_date"`
	Description     *string         `json:"description"`
}

func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errBody("acting user unknown"))
		return
	}
	var req RecordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid payload"))
		return
	}
	txn, err := h.svc.RecordTransaction(r.Context(), id, entity.TransactionType(req.Type), req.Amount, req.TransactionDate, actor, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, txn)
}

func (h *Handler) TransactionHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r)
	txns, total, err := h.svc.TransactionHistory(r.Context(), id, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"total":        total,
	})
}

// RecordValuationRequest is the body for appending a valuation snapshot.
type RecordValuationRequest struct {
	Mode          string          `json:"mode"`
	NewValue      decimal.Decimal `json:"new_value"`
	Percent       float64         `json:"percent"`
	ValuationDate dates.Date      `json:"valuation_date"`
	Reason        *string         `json:"reason"`
}

func (h *Handler) RecordValuation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, errBody("acting user unknown"))
		return
	}
	var req RecordValuationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid payload"))
		return
	}
	val, err := h.svc.RecordValuation(r.Context(), id, ValuationInput{
		Mode:      ValuationMode(req.Mode),
		NewValue:  req.NewValue,
		Percent:   req.Percent,
		Date:      req.ValuationDate,
		UpdatedBy: actor,
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, val)
}

func (h *Handler) ValuationHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	limit, _ := pageParams(r)
	vals, err := h.svc.ValuationHistory(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, vals)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reporter.Overview(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) UserReport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rollup, err := h.reporter.ForUser(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rollup)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid id"))
		return 0, false
	}
	return id, true
}

// writeError maps service sentinels to HTTP statuses; anything unexpected is
// a 500 with the detail kept in the log, not the response.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvestmentNotFound), errors.Is(err, ErrValuationNotFound):
		h.writeJSON(w, http.StatusNotFound, errBody(err.Error()))
	case errors.Is(err, ErrMissingActor):
		h.writeJSON(w, http.StatusUnauthorized, errBody(err.Error()))
	case errors.Is(err, ErrInvalidContractType),
		errors.Is(err, ErrInvalidTransactionType),
		errors.Is(err, ErrInvalidValuationMode),
		errors.Is(err, ErrAmountNotPositive),
		errors.Is(err, ErrAmountTooLarge),
		errors.Is(err, ErrPercentOutOfRange),
		errors.Is(err, ErrMissingDate),
		errors.Is(err, ErrDividendRateRequired),
		errors.Is(err, ErrDividendRateNotAllowed),
		errors.Is(err, ErrInvalidDividendRate),
		errors.Is(err, ErrInvalidHoldingPeriod),
		errors.Is(err, ErrInvalidStatusTransition),
		errors.Is(err, ErrCancelledDateNotAllowed):
		h.writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
	default:
		h.logger.Errorw("ledger request failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, errBody("internal error"))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errBody(msg string) map[string]string { return map[string]string{"error": msg} }

func pageParams(r *http.Request) (limit, offset int) {
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, _ = strconv.Atoi(v)
	}
	return limit, offset
}
