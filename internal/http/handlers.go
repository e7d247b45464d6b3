package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"pivotboard/internal/core"
	"pivotboard/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady runs every readiness check with a shared deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status = "not_ready"
			code = http.StatusServiceUnavailable
			s.logger.WarnContext(ctx, "Readiness check failed", "check", name, log.FieldError, err.Error())
			continue
		}
		checks[name] = "ok"
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes request counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", tm.TotalRequests)

	fmt.Fprintf(w, "# HELP http_requests_in_flight Requests currently being served\n")
	fmt.Fprintf(w, "# TYPE http_requests_in_flight gauge\n")
	fmt.Fprintf(w, "http_requests_in_flight %d\n\n", tm.InFlight)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.limiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func (s *Server) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	widgets, err := s.widgets.ListWidgets(r.Context())
	if err != nil {
		s.fail(w, r, "list widgets", err)
		return
	}
	sort.Slice(widgets, func(i, j int) bool { return widgets[i].ID < widgets[j].ID })
	NewJSONResponse().Body(widgets).Write(w)
}

func (s *Server) handleCreateWidget(w http.ResponseWriter, r *http.Request) {
	if resp := RequireJSON(r); resp != nil {
		resp.Write(w)
		return
	}
	var widget core.Widget
	if err := DecodeJSON(r, &widget, false); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	widget.ID = ""
	saved, err := s.widgets.SaveWidget(r.Context(), widget)
	if err != nil {
		s.fail(w, r, "create widget", err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/widgets/"+saved.ID).
		Body(saved).
		Write(w)
}

func (s *Server) handlePutWidget(w http.ResponseWriter, r *http.Request) {
	if resp := RequireJSON(r); resp != nil {
		resp.Write(w)
		return
	}
	id := r.PathValue("id")
	var widget core.Widget
	if err := DecodeJSON(r, &widget, false); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if widget.ID != "" && widget.ID != id {
		BadRequestError("widget id in body does not match the URL").Write(w)
		return
	}
	widget.ID = id
	saved, err := s.widgets.SaveWidget(r.Context(), widget)
	if err != nil {
		s.fail(w, r, "save widget", err)
		return
	}
	NewJSONResponse().Body(saved).Write(w)
}

func (s *Server) handleGetWidget(w http.ResponseWriter, r *http.Request) {
	widget, err := s.widgets.GetWidget(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "get widget", err)
		return
	}
	NewJSONResponse().Body(widget).Write(w)
}

func (s *Server) handleDeleteWidget(w http.ResponseWriter, r *http.Request) {
	if err := s.widgets.DeleteWidget(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, "delete widget", err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	session, err := ParseSession(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	grid, err := s.widgets.Grid(r.Context(), r.PathValue("id"), session)
	if err != nil {
		s.fail(w, r, "render grid", err)
		return
	}
	NewJSONResponse().Body(grid).Write(w)
}

type refreshResponse struct {
	Version  int64 `json:"version"`
	Adopted  bool  `json:"adopted"`
	RowCount int   `json:"rowCount"`
	Warnings int   `json:"warnings"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := DecodeJSON(r, &req, true); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if req.Version < 0 {
		BadRequestError("version must not be negative").Write(w)
		return
	}
	snap, adopted, err := s.widgets.Refresh(r.Context(), r.PathValue("id"), req.Version, req.Filters)
	if err != nil {
		s.fail(w, r, "refresh widget", err)
		return
	}
	resp := refreshResponse{Adopted: adopted}
	if snap != nil {
		resp.Version = snap.Version
		resp.RowCount = snap.Table.RowCount
		resp.Warnings = len(snap.Table.Warnings)
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	var req expandRequest
	if err := DecodeJSON(r, &req, false); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if req.Expanded == nil {
		BadRequestError("expanded is required").Write(w)
		return
	}
	if len(req.Path) == 0 {
		BadRequestError("path must name a row below the root").Write(w)
		return
	}
	grid, err := s.widgets.SetExpanded(r.Context(), r.PathValue("id"), sanitizeInput(req.Session), cleanPath(req.Path), *req.Expanded)
	if err != nil {
		s.fail(w, r, "expand row", err)
		return
	}
	NewJSONResponse().Body(grid).Write(w)
}

func (s *Server) handleTogglePercentage(w http.ResponseWriter, r *http.Request) {
	var req percentageRequest
	if err := DecodeJSON(r, &req, false); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	grid, err := s.widgets.TogglePercentage(r.Context(), r.PathValue("id"), sanitizeInput(req.Session), cleanPath(req.Path))
	if err != nil {
		s.fail(w, r, "toggle percentage", err)
		return
	}
	NewJSONResponse().Body(grid).Write(w)
}

func (s *Server) handleDrilldown(w http.ResponseWriter, r *http.Request) {
	var req drilldownRequest
	if err := DecodeJSON(r, &req, false); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	clauses, err := s.widgets.Drilldown(r.Context(), r.PathValue("id"), cleanPath(req.RowPath), cleanPath(req.ColumnPath))
	if err != nil {
		s.fail(w, r, "drilldown", err)
		return
	}
	NewJSONResponse().Body(map[string]any{"filters": clauses}).Write(w)
}

// fail logs err and writes the matching error response. Client errors are
// logged at debug since the access log already records the status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFor(err)
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
	fields := log.NewFields().WithOperation(strings.ReplaceAll(op, " ", "_")).WithError(err)
	fields[log.FieldWidgetID] = r.PathValue("id")
	if resp.statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	resp.Write(w)
}
