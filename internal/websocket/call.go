package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/bakbak-chat/bakbakgo/internal/apperr"
	"github.com/bakbak-chat/bakbakgo/internal/events"
)

// signalQueueSize bounds the in-flight signals per call. Offer, answer
// and a realistic ICE candidate burst fit well under this.
const signalQueueSize = 128

type callState int

const (
	callInitiated callState = iota
	callEnded
)

// callSession tracks one in-flight call between two connected users.
// Signaling payloads are opaque; the server only relays them.
type callSession struct {
	id       string
	callerID string
	calleeID string

	mu     sync.Mutex
	state  callState
	queue  chan queuedSignal
	closed bool
}

type queuedSignal struct {
	toUserID string
	data     []byte
}

// peerOf returns the other leg of the call, or "" for a non-participant.
func (s *callSession) peerOf(userID string) string {
	switch userID {
	case s.callerID:
		return s.calleeID
	case s.calleeID:
		return s.callerID
	}
	return ""
}

type offerResult int

const (
	offerQueued offerResult = iota
	offerClosed
	offerFull
)

// offer places a signal on the session queue.
func (s *callSession) offer(sig queuedSignal) offerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return offerClosed
	}
	select {
	case s.queue <- sig:
		return offerQueued
	default:
		return offerFull
	}
}

func (s *callSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.state = callEnded
	close(s.queue)
}

// callRouter owns all active call sessions. No call state survives a
// process restart; clients renegotiate.
type callRouter struct {
	hub *Hub

	mu       sync.Mutex
	sessions map[string]*callSession
	byUser   map[string]map[string]struct{}
}

func newCallRouter(h *Hub) *callRouter {
	return &callRouter{
		hub:      h,
		sessions: make(map[string]*callSession),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func newCallID() string {
	return fmt.Sprintf("call_%d_%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// initiate handles call:init. The callee must be connected right now;
// otherwise the caller gets call:failed and nothing is retained.
func (r *callRouter) initiate(c *Client, data json.RawMessage) {
	var req struct {
		CalleeID string `json:"calleeId"`
		ChatID   string `json:"chatId,omitempty"`
		CallType string `json:"callType,omitempty"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.CalleeID == "" {
		c.sendError(apperr.ErrMissingCallee)
		return
	}
	if req.CallType == "" {
		req.CallType = "audio"
	}

	if !r.hub.IsUserOnline(req.CalleeID) {
		r.callFailed(c, req.CalleeID)
		return
	}

	session := &callSession{
		id:       newCallID(),
		callerID: c.UserID,
		calleeID: req.CalleeID,
		queue:    make(chan queuedSignal, signalQueueSize),
	}

	r.mu.Lock()
	r.sessions[session.id] = session
	r.index(c.UserID, session.id)
	r.index(req.CalleeID, session.id)
	r.mu.Unlock()

	go r.drain(session)

	delivered := r.hub.SendToUser(req.CalleeID, events.IncomingCall, map[string]interface{}{
		"callId":   session.id,
		"callerId": c.UserID,
		"callType": req.CallType,
		"chatId":   req.ChatID,
	})
	if !delivered {
		// Callee dropped between the presence check and delivery
		r.remove(session)
		r.callFailed(c, req.CalleeID)
		return
	}

	payload, err := marshalEvent(events.CallInitiated, map[string]interface{}{
		"callId":   session.id,
		"calleeId": req.CalleeID,
		"callType": req.CallType,
	})
	if err == nil {
		c.enqueue(payload)
	}
}

// signal relays one call:signal frame to the peer. Unknown call ids are
// dropped quietly; late candidates after call:end are expected traffic.
func (r *callRouter) signal(c *Client, data json.RawMessage) {
	var req struct {
		CallID  string          `json:"callId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.CallID == "" {
		return
	}

	r.mu.Lock()
	session := r.sessions[req.CallID]
	r.mu.Unlock()
	if session == nil {
		return
	}
	peer := session.peerOf(c.UserID)
	if peer == "" {
		return
	}

	out, err := marshalEvent(events.CallSignal, map[string]interface{}{
		"callId":  req.CallID,
		"from":    c.UserID,
		"payload": req.Payload,
	})
	if err != nil {
		return
	}
	switch session.offer(queuedSignal{toUserID: peer, data: out}) {
	case offerQueued:
	case offerClosed:
		// Late candidate after call:end; expected traffic
	case offerFull:
		// Candidates must never be silently lost while the peer is
		// connected. A backed-up queue ends the call so both sides
		// renegotiate instead of proceeding with gaps.
		log.Printf("⚠️ Signal queue overflow on call %s, ending call", req.CallID)
		r.terminate(session, "signaling overflow")
	}
}

// end tears a call down from either side.
func (r *callRouter) end(c *Client, callID string) {
	r.mu.Lock()
	session := r.sessions[callID]
	r.mu.Unlock()
	if session == nil {
		c.sendError(apperr.ErrUnknownCall)
		return
	}
	peer := session.peerOf(c.UserID)
	if peer == "" {
		return
	}
	r.remove(session)
	r.hub.SendToUser(peer, events.CallEnded, map[string]interface{}{
		"callId":  callID,
		"endedBy": c.UserID,
	})
}

// dropUser ends every call the user participates in. Called by the hub
// when a connection is removed.
func (r *callRouter) dropUser(userID string) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		ids = append(ids, id)
	}
	sessions := make([]*callSession, 0, len(ids))
	for _, id := range ids {
		if s := r.sessions[id]; s != nil {
			sessions = append(sessions, s)
		}
	}
	r.mu.Unlock()

	for _, session := range sessions {
		peer := session.peerOf(userID)
		r.remove(session)
		if peer != "" {
			r.hub.SendToUser(peer, events.CallEnded, map[string]interface{}{
				"callId":  session.id,
				"endedBy": userID,
			})
		}
	}
}

// drain delivers queued signals in arrival order, one at a time. A
// delivery failure ends the call so neither side continues with a gap
// in its candidate stream.
func (r *callRouter) drain(session *callSession) {
	for sig := range session.queue {
		if !r.hub.sendRaw(sig.toUserID, sig.data) {
			log.Printf("⚠️ Signal delivery failed on call %s to %s, ending call", session.id, sig.toUserID)
			r.terminate(session, "signal delivery failed")
			return
		}
	}
}

// callFailed reports an unreachable callee back to the caller.
func (r *callRouter) callFailed(c *Client, calleeID string) {
	payload, err := marshalEvent(events.CallFailed, map[string]interface{}{
		"calleeId": calleeID,
		"code":     string(apperr.CodeUnavailable),
		"reason":   apperr.ErrCalleeUnavailable.Error(),
	})
	if err == nil {
		c.enqueue(payload)
	}
}

// terminate force-ends a call and tells both sides to renegotiate.
func (r *callRouter) terminate(session *callSession, reason string) {
	r.remove(session)
	payload := map[string]interface{}{
		"callId": session.id,
		"reason": reason,
	}
	r.hub.SendToUser(session.callerID, events.CallEnded, payload)
	r.hub.SendToUser(session.calleeID, events.CallEnded, payload)
}

// index must be called with r.mu held.
func (r *callRouter) index(userID, callID string) {
	set := r.byUser[userID]
	if set == nil {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[callID] = struct{}{}
}

func (r *callRouter) remove(session *callSession) {
	r.mu.Lock()
	delete(r.sessions, session.id)
	r.unindex(session.callerID, session.id)
	r.unindex(session.calleeID, session.id)
	r.mu.Unlock()
	session.close()
}

// unindex must be called with r.mu held.
func (r *callRouter) unindex(userID, callID string) {
	set := r.byUser[userID]
	if set == nil {
		return
	}
	delete(set, callID)
	if len(set) == 0 {
		delete(r.byUser, userID)
	}
}

// activeCalls reports the number of live sessions.
func (r *callRouter) activeCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
