package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"corebank"
)

// Handler holds the ledger the handlers delegate every operation to,
// grounded in timeoff's Handler-struct-holds-dependencies shape.
type Handler struct {
	Ledger *corebank.Ledger
}

func NewHandler(ledger *corebank.Ledger) *Handler {
	return &Handler{Ledger: ledger}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeLedgerError maps a *corebank.Error to status/envelope via
// its own HTTPStatus(); any other error degenerates to 500.
func writeLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var le *corebank.Error
	if errors.As(err, &le) {
		status = le.HTTPStatus()
	}
	writeJSON(w, status, newErrorResponse(err.Error()))
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// moneyOrZero parses s as a Money literal, treating an omitted field
// (the common case for an LCY-only leg with no fcyAmount/exchangeRate)
// as zero rather than the malformed-literal panic corebank.NewMoney
// reserves for a non-empty garbled string.
func moneyOrZero(s string) corebank.Money {
	if s == "" {
		return corebank.Zero
	}
	return corebank.NewMoney(s)
}

// CreateTransaction handles POST /transactions/entry (Create).
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{Error: "malformed request body", Field: "body", Constraint: "valid JSON"})
		return
	}
	valueDate, err := parseDate(req.ValueDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{Error: "invalid valueDate", Field: "valueDate", Constraint: "YYYY-MM-DD"})
		return
	}

	inputs := make([]corebank.LegInput, 0, len(req.Legs))
	for _, l := range req.Legs {
		inputs = append(inputs, corebank.LegInput{
			AccountNo: l.AccountNo,
			Flag: corebank.DrCrFlag(l.Flag),
			Currency: l.Currency,
			FcyAmount: moneyOrZero(l.FcyAmount),
			ExchangeRate: moneyOrZero(l.ExchangeRate),
			LcyAmount: corebank.NewMoney(l.LcyAmount),
			Narration: l.Narration,
		})
	}

	base, legs, err := h.Ledger.Engine.Create(valueDate, req.Narration, inputs, req.UserID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, legsToResponse(base, legs))
}

// PostTransaction handles POST /transactions/{id}/post.
func (h *Handler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	base := chi.URLParam(r, "id")
	var req ActionRequest
	_ = decodeJSON(r, &req)

	legs, err := h.Ledger.Engine.Post(base, req.UserID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, legsToResponse(base, legs))
}

// VerifyTransaction handles POST /transactions/{id}/verify.
func (h *Handler) VerifyTransaction(w http.ResponseWriter, r *http.Request) {
	base := chi.URLParam(r, "id")
	var req ActionRequest
	_ = decodeJSON(r, &req)

	legs, err := h.Ledger.Engine.Verify(base, req.UserID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, legsToResponse(base, legs))
}

// ReverseTransaction handles POST /transactions/{id}/reverse.
func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	base := chi.URLParam(r, "id")
	var req ActionRequest
	_ = decodeJSON(r, &req)

	newBase, legs, err := h.Ledger.Engine.Reverse(base, req.Reason, req.UserID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, legsToResponse(newBase, legs))
}

// ListTransactions handles GET /transactions?page&size, a paged list
// grouped by base tranId.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size < 1 {
		size = 20
	}

	all, err := h.Ledger.Storage.AllLegs()
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	byBase := make(map[string][]corebank.Leg)
	for _, l := range all {
		base, _, err := corebank.SplitLegTranID(l.TranID)
		if err != nil {
			continue
		}
		byBase[base] = append(byBase[base], l)
	}
	bases := make([]string, 0, len(byBase))
	for b := range byBase {
		bases = append(bases, b)
	}
	sort.Strings(bases)

	total := len(bases)
	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	items := make([]TransactionResponse, 0, end-start)
	for _, base := range bases[start:end] {
		legs := byBase[base]
		sort.Slice(legs, func(i, j int) bool { return legs[i].LineNo < legs[j].LineNo })
		items = append(items, legsToResponse(base, legs))
	}

	writeJSON(w, http.StatusOK, PagedTransactionsResponse{Page: page, Size: size, Total: total, Items: items})
}

// RunEOD handles POST /admin/run-eod?userId=.
func (h *Handler) RunEOD(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	result, err := h.Ledger.EOD.RunAll(userID)
	if err != nil {
		jobs := make([]EODJobResponse, 0, len(result.Jobs))
		for _, j := range result.Jobs {
			jobs = append(jobs, jobResultToDTO(j))
		}
		writeJSON(w, http.StatusConflict, EODRunResponse{
			EODDate: result.EODDate.Format("2006-01-02"), Jobs: jobs, FailedAtJob: result.FailedAtJob,
		})
		return
	}
	jobs := make([]EODJobResponse, 0, len(result.Jobs))
	for _, j := range result.Jobs {
		jobs = append(jobs, jobResultToDTO(j))
	}
	writeJSON(w, http.StatusOK, EODRunResponse{EODDate: result.EODDate.Format("2006-01-02"), Jobs: jobs})
}

// RunEODJob handles POST /admin/eod/batch/{job}.
func (h *Handler) RunEODJob(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")
	userID := r.URL.Query().Get("userId")
	result, err := h.Ledger.EOD.RunJob(job, userID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResultToDTO(result))
}

// EODStatus handles GET /admin/eod/status.
func (h *Handler) EODStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Ledger.EOD.CurrentStatus()
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EODStatusResponse{
		SystemDate: status.SystemDate.Format("2006-01-02"),
		CurrentDate: time.Now().Format("2006-01-02"),
		LastEODDate: status.LastEODDate,
		LastEODUser: status.LastEODUser,
	})
}

// SetSystemDate handles POST /admin/set-system-date?systemDateStr=.
func (h *Handler) SetSystemDate(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("systemDateStr")
	userID := r.URL.Query().Get("userId")
	date, err := parseDate(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{Error: "invalid systemDateStr", Field: "systemDateStr", Constraint: "YYYY-MM-DD"})
		return
	}
	h.Ledger.Clock.Set(date, userID)
	if err := h.Ledger.Storage.PutParameter("System_Date", date.Format("20060102")); err != nil {
		writeLedgerError(w, corebank.IOErrorf(corebank.CodeReportWrite, err, "persisting System_Date"))
		return
	}
	if _, err := h.Ledger.Events.Append(corebank.EventSetSystemDate, corebank.SystemDateChangedPayload{NewDate: date, UserID: userID}, date, userID); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EODStatusResponse{SystemDate: date.Format("2006-01-02"), CurrentDate: time.Now().Format("2006-01-02")})
}

// RunBOD handles the BOD promotion run. It is not itself named in the
// literal endpoint list, exposed under /admin for operator parity with
// run-eod since the BOD processor (C11) is on-demand.
func (h *Handler) RunBOD(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	summary, err := h.Ledger.BOD.Run(userID)
	if err != nil {
		writeJSON(w, http.StatusConflict, BODResponse{
			BusinessDate: summary.BusinessDate, PendingBefore: summary.PendingBefore,
			PendingAfter: summary.PendingAfter, ProcessedCount: summary.ProcessedCount,
			FailedTranID: summary.FailedTranID,
		})
		return
	}
	writeJSON(w, http.StatusOK, BODResponse{
		BusinessDate: summary.BusinessDate, PendingBefore: summary.PendingBefore,
		PendingAfter: summary.PendingAfter, ProcessedCount: summary.ProcessedCount,
	})
}

// DownloadReport handles
// GET /admin/eod/batch-job-7/download/{kind}/{yyyymmdd} : raw file
// bytes for either the trial-balance CSV or the balance-sheet XLSX.
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	yyyymmdd := chi.URLParam(r, "yyyymmdd")

	var filename, contentType string
	switch kind {
	case "trial-balance":
		filename = "TrialBalance_" + yyyymmdd + ".csv"
		contentType = "text/csv"
	case "balance-sheet":
		filename = "BalanceSheet_" + yyyymmdd + ".xlsx"
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		writeJSON(w, http.StatusNotFound, newErrorResponse("unknown report kind "+kind))
		return
	}

	path := filepath.Join(h.Ledger.Reports.OutDir(), yyyymmdd, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		writeJSON(w, http.StatusNotFound, newErrorResponse("report not found: "+path))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	_, _ = w.Write(data)
}
