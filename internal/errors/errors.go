// Package errors maps protocol error payloads onto the HTTP surface.
// Websocket-level errors travel as GameMessage error variants instead
// and are emitted by the session.
package errors

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"lanquiz/api"
)

var errorCodeHTTPStatus = map[api.ErrorCode]int{
	api.InvalidMessageCode:  http.StatusBadRequest,
	api.SessionFullCode:     http.StatusForbidden,
	api.SessionClosedCode:   http.StatusConflict,
	api.TooManyRequestsCode: http.StatusTooManyRequests,
	api.InternalErrorCode:   http.StatusInternalServerError,
}

// WriteHTTPError logs and writes an error payload with the status code
// mapped from its protocol error code.
func WriteHTTPError(ctx context.Context, w http.ResponseWriter, data api.ErrorData) {
	status, ok := errorCodeHTTPStatus[data.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	slog.ErrorContext(ctx, "http error",
		slog.Int("status_code", status),
		slog.Int("error_code", int(data.Code)),
		slog.String("message", data.Message))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	res := api.GameMessage[api.ErrorData]{Type: api.GameMessageError, Data: data}
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.ErrorContext(ctx, "encode http error response", slog.Any("error", err))
	}
}

func TooManyRequestsError() api.ErrorData {
	return api.ErrorData{
		Code:    api.TooManyRequestsCode,
		Message: "too many join attempts",
	}
}

func SessionClosedError() api.ErrorData {
	return api.ErrorData{
		Code:    api.SessionClosedCode,
		Message: "no open session",
	}
}

func InternalServerError() api.ErrorData {
	return api.ErrorData{
		Code:    api.InternalErrorCode,
		Message: "unexpected error",
	}
}
