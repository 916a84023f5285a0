package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"StockPulse/internal/domain/models"
	xhttp "StockPulse/pkg/http"
	applogger "StockPulse/pkg/logger"
)

const (
	wsWriteWait   = 10 * time.Second
	wsRequestWait = 30 * time.Second
	wsMaxMessage  = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsError is sent when the first frame is not a valid request.
type wsError struct {
	Error  string                  `json:"error"`
	Status models.Status           `json:"status"`
	Errors []xhttp.ValidationError `json:"errors,omitempty"`
}

// AnalyzeWS reads one AnalyzeRequest frame, then writes each fragment as a JSON text frame.
func (h *AnalysisHandler) AnalyzeWS(c echo.Context) error {
	return h.serveWS(c, "ws_analyze", func(ctx context.Context, data []byte) (<-chan models.Fragment, []xhttp.ValidationError) {
		var req models.AnalyzeRequest
		if verrs := xhttp.DecodeAndValidate(ctx, data, &req); verrs != nil {
			return nil, verrs
		}
		return h.streamer.Analyze(ctx, req), nil
	})
}

// ScanWS reads one ScanRequest frame, then writes each fragment as a JSON text frame.
func (h *AnalysisHandler) ScanWS(c echo.Context) error {
	return h.serveWS(c, "ws_scan", func(ctx context.Context, data []byte) (<-chan models.Fragment, []xhttp.ValidationError) {
		var req models.ScanRequest
		if verrs := xhttp.DecodeAndValidate(ctx, data, &req); verrs != nil {
			return nil, verrs
		}
		return h.streamer.Scan(ctx, req), nil
	})
}

type wsStart func(ctx context.Context, data []byte) (<-chan models.Fragment, []xhttp.ValidationError)

func (h *AnalysisHandler) serveWS(c echo.Context, op string, start wsStart) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", applogger.String("op", op), applogger.Error(err))
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	began := time.Now()
	defer func() { h.metrics.RecordLatency(op, time.Since(began).Seconds()) }()

	_ = conn.SetReadDeadline(time.Now().Add(wsRequestWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		h.logger.Debug("websocket closed before request", applogger.String("op", op), applogger.Error(err))
		return nil
	}
	_ = conn.SetReadDeadline(time.Time{})

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	frags, verrs := start(ctx, data)
	if verrs != nil {
		h.metrics.RecordError(op + "_invalid")
		h.writeJSON(conn, wsError{Error: "invalid request", Status: models.StatusError, Errors: verrs})
		h.close(conn, websocket.ClosePolicyViolation, "invalid request")
		return nil
	}

	// a read error means the client left; stop the stream
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	for f := range frags {
		if !h.writeJSON(conn, f) {
			cancel()
			for range frags {
			}
			return nil
		}
	}
	h.close(conn, websocket.CloseNormalClosure, "done")
	return nil
}

func (h *AnalysisHandler) writeJSON(conn *websocket.Conn, v interface{}) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(v); err != nil {
		h.logger.Debug("websocket write failed", applogger.Error(err))
		return false
	}
	return true
}

func (h *AnalysisHandler) close(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}
