package http

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

// MIMEApplicationNDJSON is one JSON document per line.
const MIMEApplicationNDJSON = "application/x-ndjson"

// StreamNDJSON writes every item of items as one JSON line and flushes after each.
// It returns when items is closed or the client goes away.
func StreamNDJSON[T any](c echo.Context, items <-chan T) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, MIMEApplicationNDJSON)
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(res)
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case item, ok := <-items:
			if !ok {
				return nil
			}
			if err := enc.Encode(item); err != nil {
				return err
			}
			res.Flush()
		}
	}
}
