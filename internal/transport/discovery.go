package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// DefaultBeaconPort is the UDP port session beacons are broadcast to.
const DefaultBeaconPort = 8829

const beaconInterval = time.Second

// Announcement is the discovery beacon payload a host broadcasts on
// the local network once per second while advertising.
type Announcement struct {
	SessionID string `json:"sessionId"`
	Addr      string `json:"addr"` // host:port of the websocket endpoint
	Players   int    `json:"players"`
}

// Beacon periodically broadcasts an Announcement over UDP.
type Beacon struct {
	conn   *net.UDPConn
	cancel context.CancelFunc
	done   chan struct{}
}

// StartBeacon opens a UDP socket and broadcasts announce() every
// second until Stop or ctx cancellation.
func StartBeacon(ctx context.Context, port int, announce func() Announcement) (*Beacon, error) {
	if port <= 0 {
		port = DefaultBeaconPort
	}

	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	conn, err := net.DialUDP("udp4", nil, dst)
	if err != nil {
		return nil, fmt.Errorf("open beacon socket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	b := &Beacon{conn: conn, cancel: cancel, done: make(chan struct{})}
	go b.run(ctx, announce)

	return b, nil
}

func (b *Beacon) run(ctx context.Context, announce func() Announcement) {
	defer close(b.done)
	defer b.conn.Close()

	ticker := time.NewTicker(beaconInterval)
	defer ticker.Stop()

	for {
		payload, err := json.Marshal(announce())
		if err != nil {
			slog.Error("encode beacon", slog.Any("error", err))
			return
		}
		if _, err := b.conn.Write(payload); err != nil {
			slog.Debug("beacon write failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop halts the beacon and closes its socket.
func (b *Beacon) Stop() {
	b.cancel()
	<-b.done
}

// Discover listens for session beacons on the local network and
// returns the first announcement heard, or an error once ctx expires.
func Discover(ctx context.Context, port int) (Announcement, error) {
	if port <= 0 {
		port = DefaultBeaconPort
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return Announcement{}, fmt.Errorf("open discovery socket: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return Announcement{}, err
		}
	}
	go func() {
		<-ctx.Done()
		conn.SetReadDeadline(time.Now()) //nolint:errcheck // unblocks the read below
	}()

	buf := make([]byte, 1024)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return Announcement{}, ctx.Err()
			}
			return Announcement{}, err
		}

		ann := Announcement{}
		if err := json.Unmarshal(buf[:n], &ann); err != nil {
			// Not one of ours, keep listening.
			continue
		}
		if ann.Addr == "" {
			continue
		}
		return ann, nil
	}
}
