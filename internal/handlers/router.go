package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bakbak-chat/bakbakgo/internal/apperr"
	"github.com/bakbak-chat/bakbakgo/internal/chat"
	"github.com/bakbak-chat/bakbakgo/internal/keys"
	"github.com/bakbak-chat/bakbakgo/internal/middleware"
	"github.com/bakbak-chat/bakbakgo/internal/retention"
	"github.com/bakbak-chat/bakbakgo/internal/summary"
	"github.com/bakbak-chat/bakbakgo/internal/websocket"
)

// Router wraps the mux router and the domain services
type Router struct {
	*mux.Router
	hub       *websocket.Hub
	chat      *chat.Service
	retention *retention.Manager
	keys      *keys.Broker
	summary   *summary.Dispatcher
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(hub *websocket.Hub, chatSvc *chat.Service, ret *retention.Manager, kb *keys.Broker, sum *summary.Dispatcher, jwtSecret string) *Router {
	r := &Router{
		Router:    mux.NewRouter(),
		hub:       hub,
		chat:      chatSvc,
		retention: ret,
		keys:      kb,
		summary:   sum,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	auth := middleware.AuthMiddleware(jwtSecret)

	// Socket endpoint; the token rides the query string during upgrade
	r.Handle("/ws", auth(http.HandlerFunc(r.serveWs))).Methods("GET")

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)

	// Chats
	api.HandleFunc("/chats", r.listChats).Methods("GET")
	api.HandleFunc("/chats/{chatId}/pin", r.pinChat).Methods("POST")
	api.HandleFunc("/chats/{chatId}/pin", r.unpinChat).Methods("DELETE")

	// Messages
	api.HandleFunc("/chats/{chatId}/messages", r.getHistory).Methods("GET")
	api.HandleFunc("/chats/{chatId}/messages", r.sendMessage).Methods("POST")
	api.HandleFunc("/messages/{id}", r.editMessage).Methods("PATCH")
	api.HandleFunc("/messages/{id}", r.unsendMessage).Methods("DELETE")
	api.HandleFunc("/messages/{id}/reactions", r.toggleReaction).Methods("POST")
	api.HandleFunc("/messages/{id}/read", r.markMessageRead).Methods("POST")

	// Recently deleted
	api.HandleFunc("/recently-deleted", r.listRecentlyDeleted).Methods("GET")
	api.HandleFunc("/recently-deleted/{itemId}/restore", r.restoreItem).Methods("POST")
	api.HandleFunc("/recently-deleted/{itemId}", r.permanentDelete).Methods("DELETE")

	// Prekey bundles
	api.HandleFunc("/keys", r.publishKeys).Methods("POST")
	api.HandleFunc("/keys/replenish", r.replenishKeys).Methods("POST")
	api.HandleFunc("/keys/count", r.countKeys).Methods("GET")
	api.HandleFunc("/keys/{userId}/bundle", r.fetchBundle).Methods("GET")

	// Summaries
	api.HandleFunc("/chats/{chatId}/summary", r.latestSummary).Methods("GET")
	api.HandleFunc("/chats/{chatId}/summary", r.requestSummary).Methods("POST")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": len(r.hub.ConnectedUsers()),
	})
}

// serveWs upgrades an authenticated request to a socket session
func (r *Router) serveWs(w http.ResponseWriter, req *http.Request) {
	websocket.ServeWs(r.hub, w, req, middleware.UserID(req))
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps an application error onto the HTTP surface,
// preserving the code so clients branch on it, not on the message.
func respondError(w http.ResponseWriter, err error) {
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) {
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"code":  string(apperr.CodeInternal),
			"error": "internal error",
		})
		return
	}
	respondJSON(w, apperr.HTTPStatus(err), map[string]string{
		"code":  string(appErr.Code),
		"error": appErr.Message,
	})
}

// decodeBody parses a JSON request body into dst
func decodeBody(req *http.Request, dst interface{}) error {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		return apperr.InvalidArg("invalid request body")
	}
	return nil
}

func pathVar(req *http.Request, name string) string {
	return mux.Vars(req)[name]
}
