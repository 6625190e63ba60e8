package api

import (
	"net/http"
	"strconv"
	"time"

	"golang-bankrec-service/internal/models"
	"golang-bankrec-service/internal/reconciler"
	"golang-bankrec-service/internal/scheduler"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// JournalsHandler handles journal and statement line endpoints.
type JournalsHandler struct {
	service *reconciler.Service
}

// NewJournalsHandler creates a new JournalsHandler.
func NewJournalsHandler(s *reconciler.Service) *JournalsHandler {
	return &JournalsHandler{service: s}
}

// Summary handles GET /journals/{id}/summary.
func (h *JournalsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid journal ID")
		return
	}
	info, err := h.service.CollectSummaryInfo(r.Context(), id)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// CreateStatementLineRequest is the body of POST /statement-lines.
type CreateStatementLineRequest struct {
	JournalID       int64           `json:"journal_id"`
	Date            string          `json:"date"`
	PaymentRef      string          `json:"payment_ref"`
	PartnerID       int64           `json:"partner_id"`
	PartnerName     string          `json:"partner_name"`
	AccountNumber   string          `json:"account_number"`
	Amount          decimal.Decimal `json:"amount"`
	ForeignCurrency string          `json:"foreign_currency"`
	AmountCurrency  decimal.Decimal `json:"amount_currency"`
}

// CreateStatementLine handles POST /statement-lines.
func (h *JournalsHandler) CreateStatementLine(w http.ResponseWriter, r *http.Request) {
	var req CreateStatementLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid date")
		return
	}

	line := &models.StatementLine{
		JournalID:       req.JournalID,
		Date:            date,
		PaymentRef:      req.PaymentRef,
		PartnerID:       req.PartnerID,
		PartnerName:     req.PartnerName,
		AccountNumber:   req.AccountNumber,
		Amount:          req.Amount,
		ForeignCurrency: req.ForeignCurrency,
		AmountCurrency:  req.AmountCurrency,
	}
	id, err := h.service.CreateStatementLine(r.Context(), line)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	line.ID = id
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"statement_line": line,
	})
}

// AutoReconcileRequest is the body of POST /autoreconcile. TimeBudget is a
// duration such as "30s".
type AutoReconcileRequest struct {
	BatchSize  int     `json:"batch_size"`
	TimeBudget string  `json:"time_budget"`
	LineIDs    []int64 `json:"line_ids"`
}

// AutoReconcile handles POST /autoreconcile. Lines that failed are listed
// in the report; the response is an error only when the pass could not run.
func (h *JournalsHandler) AutoReconcile(w http.ResponseWriter, r *http.Request) {
	var req AutoReconcileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	opts := scheduler.Options{BatchSize: req.BatchSize, LineIDs: req.LineIDs}
	if req.TimeBudget != "" {
		budget, err := time.ParseDuration(req.TimeBudget)
		if err != nil || budget < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid time_budget")
			return
		}
		opts.TimeBudget = budget
	}

	report, err := h.service.AutoReconcile(r.Context(), opts)
	if report == nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
