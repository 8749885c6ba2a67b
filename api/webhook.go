package api

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/types"
)

// maxWebhookBody bounds a webhook payload. Providers send small JSON; a
// larger body is not a conversation event.
const maxWebhookBody = 64 << 10

// handleWebhook runs one inbound event through the engine and acknowledges
// synchronously with the outcome.
func (rt *Router) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, rt.logger, types.NewError(types.ErrInvalidRequest, "unreadable body").WithCause(err))
		return
	}

	if !rt.deps.Normalizer.VerifySignature(raw, r.Header.Get("X-Signature")) {
		rt.logger.Warn("webhook signature mismatch", zap.String("request_id", RequestIDFrom(r.Context())))
		writeError(w, rt.logger, types.NewError(types.ErrUnauthorized, "invalid webhook signature"))
		return
	}

	res, err := rt.deps.Engine.ProcessEvent(r.Context(), raw)
	if err != nil {
		// A duplicate is acknowledged as success so the provider stops
		// retrying a delivery we already handled.
		if types.IsCode(err, types.ErrDuplicateEvent) {
			writeJSON(w, http.StatusOK, res)
			return
		}
		writeError(w, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
