// Package transport provides the reliable, peer-addressed byte-message
// channel between a quiz host and its peers: websocket connections for
// the message channel and UDP beacons for LAN discovery.
package transport

type PeerState int

const (
	PeerConnecting PeerState = iota
	PeerConnected
	PeerDisconnected
)

var peerStateToString = map[PeerState]string{
	PeerConnecting:   "connecting",
	PeerConnected:    "connected",
	PeerDisconnected: "disconnected",
}

func (s PeerState) String() string {
	if str, ok := peerStateToString[s]; ok {
		return str
	}
	return "unknown"
}

type EventKind int

const (
	// EventPeerState reports a peer connection state change.
	EventPeerState EventKind = iota
	// EventData carries one message received from a peer.
	EventData
)

// Event is a transport-level occurrence delivered to the host session.
// Events for a single peer arrive in the order they happened; no
// ordering holds across peers.
type Event struct {
	Kind  EventKind
	Peer  string
	State PeerState
	Data  []byte
}
