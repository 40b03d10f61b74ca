package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lanquiz/api"
	"lanquiz/internal/handlers"
	"lanquiz/internal/peer"
	"lanquiz/internal/quiz"
	"lanquiz/internal/rate"
	"lanquiz/internal/transport"

	"github.com/benbjohnson/clock"
)

type hostFixture struct {
	session *quiz.Session
	srv     *httptest.Server
}

// addr returns the host:port peers dial.
func (f *hostFixture) addr() string {
	return strings.TrimPrefix(f.srv.URL, "http://")
}

func newHost(t *testing.T, limiter *rate.JoinLimiter) *hostFixture {
	t.Helper()

	bank, err := quiz.NewBank([]api.Question{{
		ID:      "q1",
		Prompt:  "p",
		Options: []string{"a", "b", "c", "d"},
	}})
	if err != nil {
		t.Fatalf("new bank: %v", err)
	}

	ws := transport.NewWS(transport.WSOptions{})
	session := quiz.NewSession(quiz.Options{
		ID:          "teste",
		Transport:   ws,
		Bank:        bank,
		TokenSecret: []byte("testsecret"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go session.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(handlers.NewMux(session, ws, limiter))
	t.Cleanup(srv.Close)
	t.Cleanup(ws.Close)

	return &hostFixture{session: session, srv: srv}
}

func waitView(t *testing.T, r *peer.Reflector, cond func(peer.View) bool) peer.View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		v := r.View()
		if cond(v) {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("view condition not reached, last view: %+v", v)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionEndpointClosedInMenu(t *testing.T) {
	f := newHost(t, nil)

	res, err := http.Get(f.srv.URL + "/session")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
	msg := api.GameMessage[api.ErrorData]{}
	if err := json.NewDecoder(res.Body).Decode(&msg); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if msg.Type != api.GameMessageError || msg.Data.Code != api.SessionClosedCode {
		t.Errorf("body = %+v, want sessionClosed error", msg)
	}
}

func TestJoinThroughPeerClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newHost(t, nil)
	if err := f.session.StartHosting(); err != nil {
		t.Fatalf("start hosting: %v", err)
	}

	client, err := peer.Dial(ctx, f.addr(), peer.ClientOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	go client.Run(ctx) //nolint:errcheck // ends with the connection

	if err := client.Reflector.Join(ctx, "alice", "", ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	v := waitView(t, client.Reflector, func(v peer.View) bool {
		return v.PlayerID != ""
	})
	if v.RejoinToken == "" {
		t.Error("join ack carried no rejoin token")
	}

	snap := f.session.Snapshot()
	if len(snap.Players) != 1 || snap.Players[0].Name != "alice" {
		t.Fatalf("host roster = %+v, want alice", snap.Players)
	}

	// The name constraint is enforced per join, not per connection.
	if err := client.Reflector.Join(ctx, strings.Repeat("x", 26), "", ""); err != nil {
		t.Fatalf("second join: %v", err)
	}
	waitView(t, client.Reflector, func(v peer.View) bool {
		return v.LastError != ""
	})
	if got := f.session.Snapshot(); len(got.Players) != 1 {
		t.Errorf("invalid name grew roster to %d", len(got.Players))
	}
}

func TestInfoEndpoint(t *testing.T) {
	f := newHost(t, nil)
	if err := f.session.StartHosting(); err != nil {
		t.Fatalf("start hosting: %v", err)
	}

	res, err := http.Get(f.srv.URL + "/session/info")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	info := struct {
		SessionID string `json:"sessionId"`
		Phase     string `json:"phase"`
	}{}
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.SessionID != "teste" || info.Phase != "lobby" {
		t.Errorf("info = %+v, want teste/lobby", info)
	}
}

func TestSessionEndpointRateLimited(t *testing.T) {
	mock := clock.NewMock()
	limiter := rate.NewJoinLimiterWithClock(time.Minute, 1, mock)
	f := newHost(t, limiter)
	if err := f.session.StartHosting(); err != nil {
		t.Fatalf("start hosting: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := peer.Dial(ctx, f.addr(), peer.ClientOptions{})
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer client.Close()

	if _, err := peer.Dial(ctx, f.addr(), peer.ClientOptions{}); err == nil {
		t.Fatal("second dial within the window succeeded")
	}

	mock.Add(2 * time.Minute)
	extra, err := peer.Dial(ctx, f.addr(), peer.ClientOptions{})
	if err != nil {
		t.Fatalf("dial after window: %v", err)
	}
	extra.Close()
}
