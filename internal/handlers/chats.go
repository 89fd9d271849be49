package handlers

import (
	"net/http"

	"github.com/bakbak-chat/bakbakgo/internal/middleware"
)

// listChats returns the caller's chats with unread counters and pins
func (r *Router) listChats(w http.ResponseWriter, req *http.Request) {
	items, err := r.chat.ListChats(req.Context(), middleware.UserID(req))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"chats": items})
}

// pinChat pins a chat for the calling user only
func (r *Router) pinChat(w http.ResponseWriter, req *http.Request) {
	payload, err := r.chat.PinChat(req.Context(), middleware.UserID(req), pathVar(req, "chatId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

// unpinChat removes the caller's pin
func (r *Router) unpinChat(w http.ResponseWriter, req *http.Request) {
	payload, err := r.chat.UnpinChat(req.Context(), middleware.UserID(req), pathVar(req, "chatId"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payload)
}
