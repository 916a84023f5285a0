package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/domain/models"
)

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readAll(t *testing.T, conn *websocket.Conn) ([]map[string]interface{}, error) {
	t.Helper()
	var out []map[string]interface{}
	for {
		var m map[string]interface{}
		if err := conn.ReadJSON(&m); err != nil {
			return out, err
		}
		out = append(out, m)
	}
}

func TestScanWebsocketStreamsFragments(t *testing.T) {
	s := &stubStreamer{scan: []models.Fragment{
		models.BatchInitFragment(models.BatchInit{Symbols: []string{"A"}, Market: models.MarketA}),
		models.SummaryFragment(models.AnalysisSummary{Symbol: "A", Score: 66, Status: models.StatusWaiting}),
		models.CompletionFragment(1, 1),
	}}
	srv := httptest.NewServer(newTestEcho(NewAnalysisHandler(s, &stubProber{}, nil, nil, nil)))
	defer srv.Close()

	conn := dialWS(t, srv, "/ws/scan")
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"stock_codes": []string{"A"}, "min_score": 60}))

	msgs, err := readAll(t, conn)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "batch", msgs[0]["stream_type"])
	assert.Equal(t, "waiting", msgs[1]["status"])
	assert.Equal(t, true, msgs[2]["scan_completed"])
}

func TestAnalyzeWebsocketRejectsInvalidFirstFrame(t *testing.T) {
	s := &stubStreamer{}
	srv := httptest.NewServer(newTestEcho(NewAnalysisHandler(s, &stubProber{}, nil, nil, nil)))
	defer srv.Close()

	conn := dialWS(t, srv, "/ws/analyze")
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"market_type":"US"}`)))

	msgs, err := readAll(t, conn)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "%v", err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "invalid request", msgs[0]["error"])
	assert.Equal(t, "error", msgs[0]["status"])
}
