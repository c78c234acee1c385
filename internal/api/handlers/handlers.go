package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pepmo/voucher-ops/internal/api/middleware"
	"github.com/pepmo/voucher-ops/internal/jobs"
	"github.com/pepmo/voucher-ops/internal/provider"
	"github.com/pepmo/voucher-ops/internal/recon"
	"github.com/pepmo/voucher-ops/internal/report"
	"github.com/pepmo/voucher-ops/internal/results"
)

// DataSource is the upstream access the voucher endpoints need.
// Implemented by provider.Client.
type DataSource interface {
	FetchDay(ctx context.Context, date, filter string) provider.DayData
	FetchPinelabsDay(ctx context.Context, date string) ([]*provider.Record, error)
	FetchDetail(ctx context.Context, userID, orderID, prov string) (map[string]interface{}, error)
}

// VouchersHandler handles the voucher-transactions endpoints.
type VouchersHandler struct {
	source DataSource
	store  results.Store
	log    zerolog.Logger
}

// NewVouchersHandler creates a new vouchers handler.
func NewVouchersHandler(source DataSource, store results.Store, log zerolog.Logger) *VouchersHandler {
	return &VouchersHandler{
		source: source,
		store:  store,
		log:    log,
	}
}

// ListTransactions handles GET /api/voucher-transactions.
// Query params: date (defaults to today), provider (pinelabs, gyftr, all).
// The response carries the enriched set newest-first; the set is also kept
// in the results store for the export and drawer endpoints.
func (h *VouchersHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	prov := r.URL.Query().Get("provider")

	day := h.source.FetchDay(ctx, date, prov)

	prevClosing, err := recon.PreviousDayClosing(ctx, h.source, date)
	if err != nil {
		h.log.Warn().Err(err).Str("date", date).Msg("No carry-forward baseline for day view")
	}
	recon.EnrichInteractive(day.Transactions, prevClosing)
	provider.SortNewestFirst(day.Transactions)

	h.store.Put(&results.Snapshot{
		Date:         date,
		Provider:     prov,
		Transactions: day.Transactions,
		TotalAmount:  day.TotalAmount,
		TotalVolume:  day.TotalVolume,
	})

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"date":               date,
		"provider":           prov,
		"total_amount":       day.TotalAmount,
		"total_volume":       day.TotalVolume,
		"latest_svc_balance": latestSVCBalance(day.Transactions),
		"count":              len(day.Transactions),
		"data":               day.Transactions,
	})
}

// latestSVCBalance is the top-card value: the closing balance of the most
// recent pinelabs transaction, nil when the day has none.
func latestSVCBalance(records []*provider.Record) *float64 {
	for _, txn := range records {
		if txn.Provider == provider.Pinelabs {
			return txn.ClosingBalance
		}
	}
	return nil
}

// ExportCSV handles GET /api/voucher-transactions/export.
// It downloads whatever day view was last loaded, same date and provider
// filter, as CSV.
func (h *VouchersHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.store.Latest()
	if !ok || len(snap.Transactions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "No data to export. Load /api/voucher-transactions first.")
		return
	}

	filename := fmt.Sprintf("voucher-transactions-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := report.WriteCSV(w, snap.Transactions); err != nil {
		h.log.Error().Err(err).Msg("CSV export failed mid-stream")
	}
}

// Detail handles GET /api/voucher-transactions/{user_id}/{order_id}.
// It merges the upstream detail payload with the enriched record from the
// last-loaded day view, so the drawer shows derived balances without a
// second reconciliation pass.
func (h *VouchersHandler) Detail(w http.ResponseWriter, r *http.Request, userID, orderID string) {
	ctx := r.Context()
	prov := r.URL.Query().Get("provider")

	detail, err := h.source.FetchDetail(ctx, userID, orderID, prov)
	if err != nil {
		h.log.Error().Err(err).Str("order_id", orderID).Msg("Detail fetch failed")
		middleware.WriteError(w, http.StatusBadGateway, "Detail API failed")
		return
	}

	snap, ok := h.store.Latest()
	if !ok {
		middleware.WriteJSON(w, http.StatusOK, detail)
		return
	}
	matched, ok := snap.Find(orderID)
	if !ok {
		middleware.WriteJSON(w, http.StatusOK, detail)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, mergeDetail(detail, matched))
}

// mergeDetail overlays the cached enriched record onto the upstream detail
// payload. The cached values win: they carry the provider tag and derived
// balances the detail endpoint knows nothing about.
func mergeDetail(detail map[string]interface{}, txn *provider.Record) map[string]interface{} {
	merged := make(map[string]interface{}, len(detail)+8)
	for k, v := range detail {
		merged[k] = v
	}

	raw, err := json.Marshal(txn)
	if err != nil {
		return merged
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return merged
	}
	for k, v := range fields {
		merged[k] = v
	}
	merged["timestamp"] = txn.Date + " " + txn.Time

	return merged
}

// ReportsHandler handles report trigger requests.
type ReportsHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(publisher jobs.Publisher, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		publisher: publisher,
		log:       log,
	}
}

// EnqueueSend handles POST /api/reports/send.
// Body (optional): {"date": "YYYY-MM-DD", "recipients": [...]}. An empty
// body means yesterday's report to the configured recipients.
func (h *ReportsHandler) EnqueueSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date       string   `json:"date"`
		Recipients []string `json:"recipients"`
	}
	// An empty or absent body is fine; only malformed JSON is rejected.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Date != "" {
		if _, err := recon.ParseQueryDate(req.Date); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date")
			return
		}
	}

	job := &jobs.SendReportJob{
		ReportDate: req.Date,
		Recipients: req.Recipients,
	}

	if err := h.publisher.PublishSendReport(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue report job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue report job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("date", job.ReportDate).Msg("Report job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		ReportDate: r.URL.Query().Get("date"),
		Status:     jobs.JobStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}
