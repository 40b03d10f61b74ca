// Package handlers wires the host's HTTP surface: the websocket
// session endpoint peers connect to, and a read-only session info
// endpoint.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	errs "lanquiz/internal/errors"
	"lanquiz/internal/quiz"
	"lanquiz/internal/rate"
	"lanquiz/internal/transport"
)

// SessionHandler returns the websocket endpoint handler. Connections
// are admitted through the join limiter, then handed to the transport,
// which feeds the session's processing loop.
func SessionHandler(session *quiz.Session, ws *transport.WS, limiter *rate.JoinLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if snap := session.Snapshot(); snap.Phase == quiz.PhaseMenu {
			errs.WriteHTTPError(r.Context(), w, errs.SessionClosedError())
			return
		}
		if limiter != nil && !limiter.Allow(remoteAddr(r)) {
			errs.WriteHTTPError(r.Context(), w, errs.TooManyRequestsError())
			return
		}

		ws.Accept(w, r)
	}
}

// InfoHandler serves a read-only snapshot of the session state.
func InfoHandler(session *quiz.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(session.Snapshot()); err != nil {
			slog.ErrorContext(r.Context(), "encode session info", slog.Any("error", err))
		}
	}
}

// NewMux builds the host's HTTP mux with the default middleware chain.
func NewMux(session *quiz.Session, ws *transport.WS, limiter *rate.JoinLimiter) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /session", SessionHandler(session, ws, limiter))
	mux.Handle("GET /session/info", InfoHandler(session))
	return ApplyDefaults(mux)
}

func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
