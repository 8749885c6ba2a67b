package api

import (
	"net/http"
	"strconv"

	"github.com/leadflowhq/leadflow/types"
)

// Manual override endpoints. A human taking over a conversation pauses the
// contact; the engine records inbound messages but takes no automated action
// until resume.

func (rt *Router) handlePause(w http.ResponseWriter, r *http.Request) {
	contactID := r.PathValue("id")
	if contactID == "" {
		writeError(w, rt.logger, types.NewError(types.ErrInvalidRequest, "missing contact id"))
		return
	}
	if err := rt.deps.Engine.Pause(r.Context(), contactID); err != nil {
		writeError(w, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"contact_id": contactID, "status": "paused"})
}

func (rt *Router) handleResume(w http.ResponseWriter, r *http.Request) {
	contactID := r.PathValue("id")
	if contactID == "" {
		writeError(w, rt.logger, types.NewError(types.ErrInvalidRequest, "missing contact id"))
		return
	}
	if err := rt.deps.Engine.Resume(r.Context(), contactID); err != nil {
		writeError(w, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"contact_id": contactID, "status": "active"})
}

// handleHistory searches the contact's conversation archive.
func (rt *Router) handleHistory(w http.ResponseWriter, r *http.Request) {
	contactID := r.PathValue("id")
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	msgs, err := rt.deps.Engine.History(r.Context(), contactID, query, limit)
	if err != nil {
		writeError(w, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contact_id": contactID, "messages": msgs})
}

// handleStats reports side-effect queue counters.
func (rt *Router) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.deps.Queue.Stats())
}
