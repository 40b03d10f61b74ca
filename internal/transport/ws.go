package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/lithammer/shortuuid/v3"
	"golang.org/x/sync/errgroup"
)

// WSOptions configures a host-side websocket transport.
type WSOptions struct {
	// ReadLimit bounds a single inbound message in bytes. Default 4096.
	ReadLimit int64

	// AcceptOptions are passed through to the websocket upgrade.
	AcceptOptions websocket.AcceptOptions

	// Announce builds the discovery beacon payload. Advertising is
	// disabled when nil.
	Announce func() Announcement

	// BeaconPort is the UDP port beacons are broadcast to.
	BeaconPort int
}

// WS is the host side of the transport: it accepts websocket peers,
// reads their messages into a single event channel and writes
// host messages out, broadcast or per peer.
//
// Multiple goroutines may invoke methods on a WS simultaneously.
type WS struct {
	opts   WSOptions
	events chan Event

	mu     sync.Mutex
	peers  map[string]*peerConn
	beacon *Beacon
	closed bool
}

// peerConn pairs a websocket with a write mutex so overlapping
// broadcasts never interleave frames on one connection.
type peerConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (p *peerConn) write(ctx context.Context, b []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.Write(ctx, websocket.MessageText, b)
}

var ErrPeerNotFound = errors.New("peer not found")

func NewWS(opts WSOptions) *WS {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 4096
	}
	return &WS{
		opts:   opts,
		events: make(chan Event, 64),
		peers:  map[string]*peerConn{},
	}
}

// Events returns the inbound event channel consumed by the session.
func (t *WS) Events() <-chan Event {
	return t.events
}

// Accept upgrades an HTTP request to a websocket peer and pumps its
// messages into the event channel until the connection drops.
func (t *WS) Accept(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &t.opts.AcceptOptions)
	if err != nil {
		// Accept already writes a status code and error message.
		slog.Warn("websocket accept failed", slog.Any("error", err))
		return
	}
	conn.SetReadLimit(t.opts.ReadLimit)

	peer := shortuuid.New()
	pc := &peerConn{conn: conn}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "transport closed")
		return
	}
	t.peers[peer] = pc
	t.mu.Unlock()

	t.emit(Event{Kind: EventPeerState, Peer: peer, State: PeerConnected})
	defer t.drop(peer, pc)

	ctx := r.Context()
	for {
		_, b, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				slog.Debug("websocket read failed",
					slog.String("peer", peer), slog.Any("error", err))
			}
			return
		}
		t.emit(Event{Kind: EventData, Peer: peer, Data: b})
	}
}

func (t *WS) drop(peer string, pc *peerConn) {
	pc.conn.CloseNow()

	t.mu.Lock()
	_, known := t.peers[peer]
	delete(t.peers, peer)
	t.mu.Unlock()

	if known {
		t.emit(Event{Kind: EventPeerState, Peer: peer, State: PeerDisconnected})
	}
}

func (t *WS) emit(ev Event) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	t.events <- ev
}

// Broadcast sends a message to every connected peer and returns the
// per-peer outcome. A failure for one peer never blocks the others.
func (t *WS) Broadcast(ctx context.Context, b []byte) map[string]error {
	t.mu.Lock()
	peers := make(map[string]*peerConn, len(t.peers))
	for id, pc := range t.peers {
		peers[id] = pc
	}
	t.mu.Unlock()

	results := make(map[string]error, len(peers))
	var rmu sync.Mutex

	g := errgroup.Group{}
	for id, pc := range peers {
		g.Go(func() error {
			err := pc.write(ctx, b)
			rmu.Lock()
			results[id] = err
			rmu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-peer outcomes are in results

	return results
}

// Send delivers a message to a single peer.
func (t *WS) Send(ctx context.Context, b []byte, peer string) error {
	t.mu.Lock()
	pc, ok := t.peers[peer]
	t.mu.Unlock()
	if !ok {
		return ErrPeerNotFound
	}
	return pc.write(ctx, b)
}

// StartAdvertising begins broadcasting discovery beacons.
func (t *WS) StartAdvertising(ctx context.Context) error {
	if t.opts.Announce == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.beacon != nil {
		return nil
	}

	beacon, err := StartBeacon(ctx, t.opts.BeaconPort, t.opts.Announce)
	if err != nil {
		return err
	}
	t.beacon = beacon

	return nil
}

func (t *WS) StopAdvertising() {
	t.mu.Lock()
	beacon := t.beacon
	t.beacon = nil
	t.mu.Unlock()

	if beacon != nil {
		beacon.Stop()
	}
}

// DisconnectPeers closes every peer connection, leaving the transport
// usable for new connections.
func (t *WS) DisconnectPeers() {
	t.mu.Lock()
	peers := t.peers
	t.peers = map[string]*peerConn{}
	t.mu.Unlock()

	for _, pc := range peers {
		pc.conn.Close(websocket.StatusNormalClosure, "session ended")
	}
}

// Close shuts the transport down for good.
func (t *WS) Close() {
	t.StopAdvertising()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	peers := t.peers
	t.peers = map[string]*peerConn{}
	t.mu.Unlock()

	for _, pc := range peers {
		pc.conn.Close(websocket.StatusGoingAway, "host shutting down")
	}
}
