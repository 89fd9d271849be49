package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bakbak-chat/bakbakgo/internal/middleware"
)

// latestSummary returns the newest stored digest for a chat
func (r *Router) latestSummary(w http.ResponseWriter, req *http.Request) {
	s, err := r.summary.Latest(req.Context(), middleware.UserID(req), pathVar(req, "chatId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// requestSummary asks for a fresh digest. In queued mode the response
// only acknowledges; the digest lands via the GET endpoint.
func (r *Router) requestSummary(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Limit int    `json:"limit"`
		Mode  string `json:"mode"`
	}
	// The body is optional; an empty or absent one means defaults
	if req.Body != nil {
		json.NewDecoder(req.Body).Decode(&body)
	}

	result, err := r.summary.Request(req.Context(), middleware.UserID(req), pathVar(req, "chatId"), body.Limit, body.Mode)
	if err != nil {
		respondError(w, err)
		return
	}
	status := http.StatusOK
	if result.Queued {
		status = http.StatusAccepted
	}
	respondJSON(w, status, result)
}
