package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"player-auction-bot/internal/auction"
)

const maxBodyBytes = 1 << 16

var (
	ErrCouldNotReadBody  = errors.New("could not read request body")
	ErrCouldNotParseBody = errors.New("could not parse request body")
)

// httpResp is the envelope of every API response.
type httpResp struct {
	Status  int          `json:"status"`
	IsError bool         `json:"is_error"`
	Kind    auction.Kind `json:"kind,omitempty"`
	Error   string       `json:"error,omitempty"`
	Data    any          `json:"data,omitempty"`
}

func getBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return ErrCouldNotReadBody
	}
	if err := json.Unmarshal(body, v); err != nil {
		return ErrCouldNotParseBody
	}
	return nil
}

func sendResponse(rw http.ResponseWriter, resp httpResp) {
	out, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		rw.Header().Set("Content-Type", "application/json; charset=utf-8")
		rw.WriteHeader(http.StatusInternalServerError)
		_, _ = rw.Write([]byte(`{"status": 500, "is_error": true, "kind": "internal", "error": "could not marshal response"}`))
		return
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(resp.Status)
	_, _ = rw.Write(out)
}

func sendData(rw http.ResponseWriter, status int, data any) {
	sendResponse(rw, httpResp{Status: status, Data: data})
}

func sendBadRequest(rw http.ResponseWriter, format string, args ...any) {
	sendResponse(rw, httpResp{
		Status:  http.StatusBadRequest,
		IsError: true,
		Error:   fmt.Sprintf(format, args...),
	})
}

// sendError writes a command failure. Internal errors are logged and
// masked.
func sendError(rw http.ResponseWriter, r *http.Request, err error) {
	kind := auction.KindOf(err)
	status := statusOf(kind)

	logEvent := log.Warn()
	if kind == auction.KindInternal {
		logEvent = log.Error()
	}
	logEvent.Err(err).
		Str("request_id", RequestID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("kind", string(kind)).
		Msg("Command rejected")

	sendResponse(rw, httpResp{
		Status:  status,
		IsError: true,
		Kind:    kind,
		Error:   auction.ReasonOf(err),
	})
}

func statusOf(kind auction.Kind) int {
	switch kind {
	case auction.KindNotFound:
		return http.StatusNotFound
	case auction.KindInvalidRole:
		return http.StatusForbidden
	case auction.KindLockContention:
		return http.StatusConflict
	case auction.KindRateLimited:
		return http.StatusTooManyRequests
	case auction.KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}
