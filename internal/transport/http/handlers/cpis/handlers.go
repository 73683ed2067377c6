package cpishandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cpis/internal/domain/audit"
	"cpis/internal/domain/auth"
	"cpis/internal/domain/cpis"
	"cpis/internal/domain/performance"
	"cpis/internal/platform/jobs"
	"cpis/internal/platform/report"
	"cpis/internal/transport/http/api"
	"cpis/internal/transport/http/middleware"
	"cpis/internal/transport/http/shared"
)

const (
	defaultHistoryLimit = 12
	maxHistoryLimit     = 60
	maxSnapshotRecords  = 10000
	defaultRunLimit     = 20
	maxRunLimit         = 100
)

type ScoreService interface {
	EmployeeIDByUserID(ctx context.Context, tenantID, userID string) (string, error)
	Score(ctx context.Context, tenantID, employeeID string, window performance.Window) (cpis.Result, error)
	ScoreSnapshot(in cpis.Input) (cpis.Result, error)
	ListScores(ctx context.Context, tenantID, employeeID string, limit int) ([]performance.StoredScore, error)
	PeriodScores(ctx context.Context, tenantID string, periodIndex int) ([]performance.StoredScore, error)
	Policy() cpis.Policy
}

type Recomputer interface {
	EnqueueRecompute(ctx context.Context, tenantID string, window performance.Window) (string, error)
	RunRecomputeNow(ctx context.Context, tenantID string, window performance.Window) (performance.RecomputeSummary, error)
	ListRuns(ctx context.Context, tenantID string, filter jobs.RunFilter, limit, offset int) ([]jobs.Run, error)
	RunByID(ctx context.Context, tenantID, runID string) (jobs.Run, error)
}

type ScorecardArchive interface {
	Archive(ctx context.Context, card report.Scorecard, pdf []byte) (string, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, evt audit.Event) error
}

type Handler struct {
	Service    ScoreService
	Jobs       Recomputer
	Scorecards ScorecardArchive
	Audit      AuditRecorder
	Perms      middleware.PermissionChecker
	now        func() time.Time
}

func NewHandler(service ScoreService, jobs Recomputer, scorecards ScorecardArchive, auditSvc AuditRecorder, perms middleware.PermissionChecker) *Handler {
	return &Handler{Service: service, Jobs: jobs, Scorecards: scorecards, Audit: auditSvc, Perms: perms, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cpis", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermCPISPolicy, h.Perms)).Get("/policy", h.handlePolicy)
		r.With(middleware.RequirePermission(auth.PermCPISScore, h.Perms)).Post("/score", h.handleScoreSnapshot)
		r.With(middleware.RequirePermission(auth.PermCPISRecompute, h.Perms)).Post("/recompute", h.handleRecompute)
		r.With(middleware.RequirePermission(auth.PermCPISReadAll, h.Perms)).Get("/scores.xlsx", h.handleScoresExport)
		r.With(middleware.RequirePermission(auth.PermCPISRecompute, h.Perms)).Get("/jobs", h.handleListRuns)
		r.With(middleware.RequirePermission(auth.PermCPISRecompute, h.Perms)).Get("/jobs/{runID}", h.handleGetRun)
		r.Route("/employees/{employeeID}", func(r chi.Router) {
			r.Use(middleware.RequirePermission(auth.PermCPISRead, h.Perms, auth.PermCPISReadAll))
			r.Get("/", h.handleEmployeeScore)
			r.Get("/history", h.handleHistory)
			r.Get("/scorecard.pdf", h.handleScorecard)
		})
	})
}

func (h *Handler) handlePolicy(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Service.Policy(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeeScore(w http.ResponseWriter, r *http.Request) {
	user, employeeID, ok := h.authorizeEmployee(w, r)
	if !ok {
		return
	}
	window, ok := h.parseWindow(w, r, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if !ok {
		return
	}

	result, err := h.Service.Score(r.Context(), user.TenantID, employeeID, window)
	if err != nil {
		h.failScore(w, r, employeeID, err)
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, employeeID, ok := h.authorizeEmployee(w, r)
	if !ok {
		return
	}
	limit := shared.ParseLimit(r, defaultHistoryLimit, maxHistoryLimit)
	scores, err := h.Service.ListScores(r.Context(), user.TenantID, employeeID, limit)
	if err != nil {
		slog.Warn("cpis history lookup failed", "employeeId", employeeID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "history_failed", "failed to load score history", middleware.GetRequestID(r.Context()))
		return
	}
	if scores == nil {
		scores = []performance.StoredScore{}
	}
	api.Success(w, scores, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleScorecard(w http.ResponseWriter, r *http.Request) {
	user, employeeID, ok := h.authorizeEmployee(w, r)
	if !ok {
		return
	}
	window, ok := h.parseWindow(w, r, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if !ok {
		return
	}
	result, err := h.Service.Score(r.Context(), user.TenantID, employeeID, window)
	if err != nil {
		h.failScore(w, r, employeeID, err)
		return
	}

	card := report.Scorecard{
		TenantID:    user.TenantID,
		EmployeeID:  employeeID,
		PeriodIndex: performance.PeriodIndex(window.To),
		From:        window.From,
		To:          window.To,
		Result:      result,
	}
	pdf, err := report.Render(card)
	if err != nil {
		slog.Warn("scorecard render failed", "employeeId", employeeID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "scorecard_failed", "failed to render scorecard", middleware.GetRequestID(r.Context()))
		return
	}
	if h.Scorecards != nil {
		if _, err := h.Scorecards.Archive(r.Context(), card, pdf); err != nil {
			slog.Warn("scorecard archive failed", "employeeId", employeeID, "err", err)
		}
	}
	h.record(r, user, audit.ActionScorecardExport, "employee", employeeID, map[string]any{"periodIndex": card.PeriodIndex, "score": result.Score})

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="cpis-`+employeeID+`-`+strconv.Itoa(card.PeriodIndex)+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// handleScoresExport streams the stored scores of one period (?period=YYYY-MM,
// default the current month) as a spreadsheet.
func (h *Handler) handleScoresExport(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	period := performance.PeriodIndex(h.now())
	if raw := strings.TrimSpace(r.URL.Query().Get("period")); raw != "" {
		parsed, err := performance.ParsePeriod(raw)
		if err != nil {
			v := shared.NewValidator()
			v.Add("period", "must be a month in YYYY-MM format")
			v.Reject(w, middleware.GetRequestID(r.Context()))
			return
		}
		period = parsed
	}

	scores, err := h.Service.PeriodScores(r.Context(), user.TenantID, period)
	if err != nil {
		slog.Warn("cpis period scores lookup failed", "tenantId", user.TenantID, "period", period, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to load scores", middleware.GetRequestID(r.Context()))
		return
	}
	bands := h.Service.Policy().Grades
	grades := make([]string, len(bands))
	for i, b := range bands {
		grades[i] = b.Grade
	}
	book, err := report.ScoresWorkbook(period, grades, scores)
	if err != nil {
		slog.Warn("cpis workbook render failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to render workbook", middleware.GetRequestID(r.Context()))
		return
	}
	label := performance.PeriodLabel(period)
	h.record(r, user, audit.ActionScoresExport, "period", label, map[string]any{"employees": len(scores)})

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="cpis-scores-`+label+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(book)
}

type snapshotPayload struct {
	SubjectID string                `json:"subjectId"`
	Records   []cpis.RawRecord      `json:"records"`
	History   cpis.HistoricalSeries `json:"history"`
}

func (h *Handler) handleScoreSnapshot(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload snapshotPayload
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("subjectId", payload.SubjectID, "is required")
	if len(payload.Records) > maxSnapshotRecords {
		v.Add("records", "must not contain more than "+strconv.Itoa(maxSnapshotRecords)+" records")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	for i := range payload.Records {
		if strings.TrimSpace(payload.Records[i].SubjectID) == "" {
			payload.Records[i].SubjectID = payload.SubjectID
		}
	}

	in := cpis.Input{SubjectID: payload.SubjectID, Records: payload.Records, History: payload.History}
	result, err := h.Service.ScoreSnapshot(in)
	if err != nil {
		h.failScore(w, r, payload.SubjectID, err)
		return
	}
	h.record(r, user, audit.ActionSnapshotScore, "subject", payload.SubjectID, map[string]any{"records": len(payload.Records), "score": result.Score})
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

type recomputePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
	Wait bool   `json:"wait"`
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload recomputePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	window, ok := h.parseWindow(w, r, payload.From, payload.To)
	if !ok {
		return
	}

	if payload.Wait {
		summary, err := h.Jobs.RunRecomputeNow(r.Context(), user.TenantID, window)
		if err != nil {
			slog.Warn("cpis recompute failed", "tenantId", user.TenantID, "err", err)
			api.Fail(w, http.StatusInternalServerError, "recompute_failed", "recompute failed", middleware.GetRequestID(r.Context()))
			return
		}
		h.record(r, user, audit.ActionRecompute, "tenant", user.TenantID, summary)
		api.Success(w, summary, middleware.GetRequestID(r.Context()))
		return
	}

	runID, err := h.Jobs.EnqueueRecompute(r.Context(), user.TenantID, window)
	if errors.Is(err, jobs.ErrQueueFull) {
		api.Fail(w, http.StatusServiceUnavailable, "queue_full", "recompute queue is full, retry later", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "recompute_failed", "failed to enqueue recompute", middleware.GetRequestID(r.Context()))
		return
	}
	body := map[string]any{"runId": runID, "periodIndex": performance.PeriodIndex(window.To)}
	h.record(r, user, audit.ActionRecompute, "tenant", user.TenantID, body)
	api.Accepted(w, body, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	q := r.URL.Query()
	filter := jobs.RunFilter{JobType: jobs.JobCPISRecompute, Status: strings.TrimSpace(q.Get("status"))}

	v := shared.NewValidator()
	if filter.Status != "" && !jobs.ValidStatus(filter.Status) {
		v.Add("status", "must be one of queued, running, completed, failed")
	}
	if from := v.OptionalDate("from", q.Get("from")); !from.IsZero() {
		filter.StartedFrom = &from
	}
	if to := v.OptionalEndDate("to", q.Get("to")); !to.IsZero() {
		filter.StartedTo = &to
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	runs, err := h.Jobs.ListRuns(r.Context(), user.TenantID, filter, shared.ParseLimit(r, defaultRunLimit, maxRunLimit), shared.ParseOffset(r))
	if err != nil {
		slog.Warn("job run list failed", "tenantId", user.TenantID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "jobs_failed", "failed to list job runs", middleware.GetRequestID(r.Context()))
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	runID := chi.URLParam(r, "runID")
	if _, err := uuid.Parse(runID); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "run id must be a uuid", middleware.GetRequestID(r.Context()))
		return
	}
	run, err := h.Jobs.RunByID(r.Context(), user.TenantID, runID)
	if errors.Is(err, jobs.ErrRunNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "job run not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Warn("job run lookup failed", "runId", runID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "jobs_failed", "failed to load job run", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

// authorizeEmployee resolves the path employee and checks that the caller may
// see them: employees only themselves, roles with cpis.read.all anyone in
// their tenant.
func (h *Handler) authorizeEmployee(w http.ResponseWriter, r *http.Request) (auth.UserContext, string, bool) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return user, "", false
	}
	employeeID := strings.TrimSpace(chi.URLParam(r, "employeeID"))
	if employeeID == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "employee id required", reqID)
		return user, "", false
	}

	readAll, err := h.Perms.HasPermission(r.Context(), user.RoleName, auth.PermCPISReadAll)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", reqID)
		return user, "", false
	}
	if readAll {
		return user, employeeID, true
	}

	selfID, err := h.Service.EmployeeIDByUserID(r.Context(), user.TenantID, user.UserID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		slog.Warn("cpis self employee lookup failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "employee_lookup_failed", "failed to resolve employee", reqID)
		return user, "", false
	}
	if selfID == "" || selfID != employeeID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
		return user, "", false
	}
	return user, employeeID, true
}

// parseWindow defaults to the current calendar month, or the month of "to".
func (h *Handler) parseWindow(w http.ResponseWriter, r *http.Request, fromRaw, toRaw string) (performance.Window, bool) {
	window := performance.MonthWindow(h.now())
	v := shared.NewValidator()
	from := v.OptionalDate("from", fromRaw)
	to := v.OptionalEndDate("to", toRaw)
	if !to.IsZero() {
		window = performance.MonthWindow(to)
		window.To = to
	}
	if !from.IsZero() {
		window.From = from
	}
	v.DateOrder("from", window.From, "to", window.To)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return performance.Window{}, false
	}
	return window, true
}

func (h *Handler) failScore(w http.ResponseWriter, r *http.Request, subjectID string, err error) {
	reqID := middleware.GetRequestID(r.Context())
	var malformed *cpis.MalformedEvidenceError
	if errors.As(err, &malformed) {
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "malformed_evidence", "evidence contains malformed records", malformedDetails(err), reqID)
		return
	}
	slog.Warn("cpis score failed", "subjectId", subjectID, "err", err)
	api.Fail(w, http.StatusInternalServerError, "score_failed", "failed to compute score", reqID)
}

type malformedDetail struct {
	Index     int    `json:"index"`
	Dimension string `json:"dimensionCode,omitempty"`
	Reason    string `json:"reason"`
}

func malformedDetails(err error) []malformedDetail {
	var out []malformedDetail
	var walk func(error)
	walk = func(err error) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		var m *cpis.MalformedEvidenceError
		if errors.As(err, &m) {
			out = append(out, malformedDetail{Index: m.Index, Dimension: m.Dimension, Reason: m.Reason})
		}
	}
	walk(err)
	return out
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	err := h.Audit.Record(r.Context(), audit.Event{
		TenantID:   user.TenantID,
		ActorID:    user.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		After:      after,
	})
	if err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}
