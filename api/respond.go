package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/types"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Code      types.ErrorCode `json:"code"`
	Message   string          `json:"message"`
	Retryable bool            `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an engine error onto an HTTP status and the error envelope.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	code := types.GetErrorCode(err)
	status := statusFor(code)
	if e, ok := err.(*types.Error); ok && e.HTTPStatus != 0 {
		status = e.HTTPStatus
	}

	msg := "internal error"
	if e, ok := err.(*types.Error); ok {
		msg = e.Message
	}
	if status >= 500 {
		logger.Error("request failed", zap.String("code", string(code)), zap.Error(err))
	}

	writeJSON(w, status, errorBody{
		Code:      code,
		Message:   msg,
		Retryable: types.IsRetryable(err),
	})
}

func statusFor(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrUnauthorized:
		return http.StatusUnauthorized
	case types.ErrContactBusy, types.ErrRateLimited:
		return http.StatusTooManyRequests
	case types.ErrTurnDeadline:
		return http.StatusGatewayTimeout
	case types.ErrCollaborator:
		return http.StatusBadGateway
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
