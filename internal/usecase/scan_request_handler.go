package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	xhttp "StockPulse/pkg/http"
	pkgkafka "StockPulse/pkg/kafka"
	applogger "StockPulse/pkg/logger"
	pkgmetrics "StockPulse/pkg/metrics"
)

// ScanRequestHandler runs one batch scan per Kafka message and publishes its fragments.
type ScanRequestHandler struct {
	topic     string
	orch      *Orchestrator
	publisher domrepo.FragmentPublisher
	metrics   domrepo.Metrics
	logger    *applogger.Logger
}

func NewScanRequestHandler(topic string, orch *Orchestrator, publisher domrepo.FragmentPublisher, metrics domrepo.Metrics, logger *applogger.Logger) *ScanRequestHandler {
	if metrics == nil {
		metrics = pkgmetrics.Nop{}
	}
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &ScanRequestHandler{topic: topic, orch: orch, publisher: publisher, metrics: metrics, logger: logger}
}

func (h *ScanRequestHandler) Topic() string { return h.topic }

// Handle expects a ScanRequest JSON body. Invalid payloads return an error, so after the
// consumer retries they end up in the DLQ.
func (h *ScanRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req models.ScanRequest
	if verrs := xhttp.DecodeAndValidate(ctx, b, &req); verrs != nil {
		h.metrics.RecordError("scan_request_invalid")
		return fmt.Errorf("invalid scan request: %+v", verrs)
	}
	if req.RequestID == "" {
		req.RequestID = pkgkafka.TraceIDFrom(ctx)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	start := time.Now()
	if t, ok := pkgkafka.StartTimeFrom(ctx); ok {
		start = t
	}
	n, err := ForwardFragments(ctx, h.publisher, req.RequestID, func(ctx context.Context) <-chan models.Fragment {
		return h.orch.Scan(ctx, req)
	})
	h.metrics.RecordLatency("kafka_scan", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("kafka_scan_publish")
		return err
	}
	h.logger.Info("scan request served",
		applogger.String("request_id", req.RequestID),
		applogger.Int("symbols", len(req.Symbols)),
		applogger.Int("fragments", n),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*ScanRequestHandler)(nil)
