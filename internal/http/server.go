package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pivotboard/internal/core"
	"pivotboard/internal/log"
	"pivotboard/internal/middleware/ratelimit"
	"pivotboard/internal/middleware/security"
	"pivotboard/internal/middleware/trace"
	"pivotboard/internal/render"
	"pivotboard/internal/services"
)

// WidgetAPI is the service surface the handlers use.
type WidgetAPI interface {
	SaveWidget(ctx context.Context, w core.Widget) (core.Widget, error)
	GetWidget(ctx context.Context, id string) (core.Widget, error)
	ListWidgets(ctx context.Context) ([]core.Widget, error)
	DeleteWidget(ctx context.Context, id string) error
	Grid(ctx context.Context, id, session string) (render.Grid, error)
	Refresh(ctx context.Context, id string, version int64, filters []core.FilterClause) (*services.Snapshot, bool, error)
	SetExpanded(ctx context.Context, id, session string, path []string, expanded bool) (render.Grid, error)
	TogglePercentage(ctx context.Context, id, session string, path []string) (render.Grid, error)
	Drilldown(ctx context.Context, id string, rowPath, columnPath []string) ([]core.FilterClause, error)
}

var _ WidgetAPI = (*services.WidgetService)(nil)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	RateLimit       ratelimit.Config
	ReadinessChecks map[string]ReadinessCheck
	TrustedProxies  []string
}

type Server struct {
	http.Server
	widgets WidgetAPI
	logger  *log.Logger

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	clientIP *security.ClientIP
	checks   map[string]ReadinessCheck
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Call Shutdown to stop it and its background goroutines.
func NewServer(addr string, widgets WidgetAPI, logger *log.Logger, opts Options) (*Server, error) {
	clientIP, err := security.NewClientIP(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		widgets:  widgets,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		tracer:   trace.NewMiddleware(),
		clientIP: clientIP,
		checks:   opts.ReadinessChecks,
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/widgets", s.handleListWidgets)
	mux.HandleFunc("POST /api/widgets", s.handleCreateWidget)
	mux.HandleFunc("GET /api/widgets/{id}", s.handleGetWidget)
	mux.HandleFunc("PUT /api/widgets/{id}", s.handlePutWidget)
	mux.HandleFunc("DELETE /api/widgets/{id}", s.handleDeleteWidget)
	mux.HandleFunc("GET /api/widgets/{id}/grid", s.handleGrid)
	mux.HandleFunc("POST /api/widgets/{id}/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/widgets/{id}/expand", s.handleExpand)
	mux.HandleFunc("POST /api/widgets/{id}/percentage", s.handleTogglePercentage)
	mux.HandleFunc("POST /api/widgets/{id}/drilldown", s.handleDrilldown)

	writes := func(r *http.Request) bool { return r.Method != http.MethodGet && r.Method != http.MethodHead }
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	}

	var h http.Handler = mux
	h = s.limiter.Middleware(s.clientIP.Extract, writes, onLimit)(h)
	h = log.AccessLog(h)
	h = log.RequestIDMiddleware(trace.FromRequest)(h)
	h = log.Middleware(logger)(h)
	h = s.tracer.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
