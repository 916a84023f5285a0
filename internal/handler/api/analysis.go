package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/services/narrative"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"
	pkgmetrics "StockPulse/pkg/metrics"
	xutil "StockPulse/pkg/util"
)

// Streamer produces the fragment stream for one request.
type Streamer interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) <-chan models.Fragment
	Scan(ctx context.Context, req models.ScanRequest) <-chan models.Fragment
}

var _ Streamer = (*usecase.Orchestrator)(nil)

// Prober checks a narrative endpoint.
type Prober interface {
	Probe(ctx context.Context, req models.TestAPIRequest) narrative.ProbeResult
}

// AnalysisHandler serves the analysis HTTP and websocket endpoints.
type AnalysisHandler struct {
	streamer Streamer
	prober   Prober
	archive  domrepo.BarArchive
	metrics  domrepo.Metrics
	logger   *applogger.Logger
	now      func() time.Time
}

func NewAnalysisHandler(streamer Streamer, prober Prober, archive domrepo.BarArchive, metrics domrepo.Metrics, logger *applogger.Logger) *AnalysisHandler {
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &AnalysisHandler{
		streamer: streamer,
		prober:   prober,
		archive:  archive,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/analyze", h.Analyze)
	g.POST("/scan", h.Scan)
	g.POST("/test_api_connection", h.TestAPIConnection)
	g.GET("/bars/:code", h.Bars)

	ws := e.Group("/ws")
	ws.GET("/analyze", h.AnalyzeWS)
	ws.GET("/scan", h.ScanWS)
}

// Analyze streams one symbol as NDJSON.
func (h *AnalysisHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.logger.Info("analyze requested",
		applogger.Symbol(req.Symbol),
		applogger.Market(req.Market),
		applogger.Bool("stream", req.Stream),
	)
	return h.stream(c, "http_analyze", func(ctx context.Context) <-chan models.Fragment {
		return h.streamer.Analyze(ctx, *req)
	})
}

// Scan streams a batch scan as NDJSON.
func (h *AnalysisHandler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.logger.Info("scan requested",
		applogger.Int("symbols", len(req.Symbols)),
		applogger.Market(req.Market),
		applogger.Int("min_score", req.MinScore),
	)
	return h.stream(c, "http_scan", func(ctx context.Context) <-chan models.Fragment {
		return h.streamer.Scan(ctx, *req)
	})
}

// stream runs start under a context that is cancelled as soon as writing fails, so the
// producer stops fetching and narrating for a client that is gone.
func (h *AnalysisHandler) stream(c echo.Context, op string, start func(ctx context.Context) <-chan models.Fragment) error {
	began := time.Now()
	defer func() { h.metrics.RecordLatency(op, time.Since(began).Seconds()) }()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	frags := start(ctx)

	if err := xhttp.StreamNDJSON(c, frags); err != nil {
		h.logger.Warn("stream write failed", applogger.String("op", op), applogger.Error(err))
	}
	cancel()
	for range frags {
	}
	return nil
}

// TestAPIConnection answers 200 when the endpoint accepted the probe and 400 otherwise.
func (h *AnalysisHandler) TestAPIConnection(c echo.Context) error {
	req := &models.TestAPIRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, narrative.ProbeResult{Message: verr[0].Message})
	}
	res := h.prober.Probe(c.Request().Context(), *req)
	if !res.Success {
		return c.JSON(http.StatusBadRequest, res)
	}
	return c.JSON(http.StatusOK, res)
}

// Bars returns archived bars for one symbol. from defaults to one year before to.
func (h *AnalysisHandler) Bars(c echo.Context) error {
	if h.archive == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("bar archive disabled"))
	}
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	to := xutil.ParseTimeDefault(req.To, h.now().UTC())
	from := xutil.ParseTimeDefault(req.From, to.AddDate(-1, 0, 0))
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("from %s is after to %s", xutil.FormatDay(from), xutil.FormatDay(to)))
	}

	table, err := h.archive.QueryBars(c.Request().Context(), req.Code, req.MarketType(), xutil.StartOfDay(from), to, req.Limit)
	if err != nil {
		h.logger.Error("bar query failed", applogger.Symbol(req.Code), applogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if table.Empty() {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no archived bars for %s", req.Code))
	}
	return xhttp.ListResponse(c, table.Bars, int64(table.Len()))
}

// Health reports liveness and, when an archive is configured, its reachability.
func (h *AnalysisHandler) Health(c echo.Context) error {
	status := map[string]string{"status": "ok"}
	if h.archive != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.archive.Health(ctx); err != nil {
			status["archive"] = err.Error()
			status["status"] = "degraded"
			return c.JSON(http.StatusServiceUnavailable, status)
		}
		status["archive"] = "ok"
	}
	return c.JSON(http.StatusOK, status)
}
