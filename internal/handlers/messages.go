package handlers

import (
	"net/http"
	"strconv"

	"github.com/bakbak-chat/bakbakgo/internal/middleware"
	"github.com/bakbak-chat/bakbakgo/internal/websocket"
)

// getHistory returns one page of chat history. Fetching marks the chat
// read for the caller; clients do not issue a separate bulk-read call.
func (r *Router) getHistory(w http.ResponseWriter, req *http.Request) {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	result, err := r.chat.GetHistory(req.Context(), middleware.UserID(req), pathVar(req, "chatId"), page)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// sendMessage is the REST mirror of the message:send socket event
func (r *Router) sendMessage(w http.ResponseWriter, req *http.Request) {
	var body websocket.SendRequest
	if err := decodeBody(req, &body); err != nil {
		respondError(w, err)
		return
	}
	body.ChatID = pathVar(req, "chatId")

	payload, err := r.chat.Send(req.Context(), middleware.UserID(req), body)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, payload)
}

// editMessage rewrites content within the edit window
func (r *Router) editMessage(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeBody(req, &body); err != nil {
		respondError(w, err)
		return
	}

	payload, err := r.chat.EditMessage(req.Context(), middleware.UserID(req), pathVar(req, "id"), body.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

// unsendMessage soft-deletes; the message enters recently-deleted
func (r *Router) unsendMessage(w http.ResponseWriter, req *http.Request) {
	if err := r.chat.UnsendMessage(req.Context(), middleware.UserID(req), pathVar(req, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// toggleReaction adds or removes the caller's emoji on a message
func (r *Router) toggleReaction(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := decodeBody(req, &body); err != nil {
		respondError(w, err)
		return
	}

	payload, err := r.chat.ToggleReaction(req.Context(), middleware.UserID(req), pathVar(req, "id"), body.Emoji)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

// markMessageRead records a single-message read receipt
func (r *Router) markMessageRead(w http.ResponseWriter, req *http.Request) {
	if err := r.chat.MarkMessageRead(req.Context(), middleware.UserID(req), pathVar(req, "id"), ""); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"read": true})
}
