package handlers

import (
	"net/http"

	"github.com/bakbak-chat/bakbakgo/internal/middleware"
)

// listRecentlyDeleted returns the caller's restorable items
func (r *Router) listRecentlyDeleted(w http.ResponseWriter, req *http.Request) {
	records, err := r.retention.List(req.Context(), middleware.UserID(req))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": records})
}

// restoreItem brings a soft-deleted message back from its snapshot
func (r *Router) restoreItem(w http.ResponseWriter, req *http.Request) {
	payload, err := r.retention.Restore(req.Context(), middleware.UserID(req), pathVar(req, "itemId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

// permanentDelete purges an item ahead of its expiry
func (r *Router) permanentDelete(w http.ResponseWriter, req *http.Request) {
	if err := r.retention.PermanentDelete(req.Context(), middleware.UserID(req), pathVar(req, "itemId")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"purged": true})
}
