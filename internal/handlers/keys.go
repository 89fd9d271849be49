package handlers

import (
	"net/http"

	"github.com/bakbak-chat/bakbakgo/internal/keys"
	"github.com/bakbak-chat/bakbakgo/internal/middleware"
	"github.com/bakbak-chat/bakbakgo/internal/models"
)

// publishKeys stores the caller's full prekey bundle
func (r *Router) publishKeys(w http.ResponseWriter, req *http.Request) {
	var body keys.PublishRequest
	if err := decodeBody(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if err := r.keys.Publish(req.Context(), middleware.UserID(req), body); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]bool{"published": true})
}

// fetchBundle serves a session-start bundle for the target user.
// The one-time prekey in the response is consumed by this call.
func (r *Router) fetchBundle(w http.ResponseWriter, req *http.Request) {
	bundle, err := r.keys.FetchBundle(req.Context(), pathVar(req, "userId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bundle)
}

// replenishKeys appends fresh one-time prekeys to the caller's pool
func (r *Router) replenishKeys(w http.ResponseWriter, req *http.Request) {
	var body struct {
		OneTimePreKeys []models.OneTimePreKeyInfo `json:"oneTimePreKeys"`
	}
	if err := decodeBody(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if err := r.keys.Replenish(req.Context(), middleware.UserID(req), body.OneTimePreKeys); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"replenished": true})
}

// countKeys reports the caller's remaining one-time pool size
func (r *Router) countKeys(w http.ResponseWriter, req *http.Request) {
	n, err := r.keys.Count(req.Context(), middleware.UserID(req))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": n})
}
