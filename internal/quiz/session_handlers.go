package quiz

import (
	"encoding/json"
	"log/slog"
	"time"
	"unicode/utf8"

	"lanquiz/api"
	"lanquiz/internal/transport"

	"github.com/google/uuid"
)

// handleEvent applies a transport event on the processing goroutine.
func (s *Session) handleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventData:
		s.handleData(ev.Peer, ev.Data)
	case transport.EventPeerState:
		s.handlePeerState(ev.Peer, ev.State)
	}
}

func (s *Session) handleData(peer string, b []byte) {
	msg, err := api.DecodePlayerMessage(b)
	if err != nil {
		// A single bad message never tears the connection down.
		s.logger.Warn("drop malformed message",
			slog.String("peer", peer), slog.Any("error", err))
		s.sendError(peer, api.InvalidMessageCode, "malformed message")
		return
	}

	switch msg.Type {
	case api.PlayerMessageJoin:
		s.handleJoin(peer, msg.Data)
	case api.PlayerMessageAnswer:
		s.handleAnswer(peer, msg.Data)
	case api.PlayerMessageReady:
		s.handleReady(peer, msg.Data)
	case api.PlayerMessageLeave:
		s.handleLeave(peer, msg.Data)
	default:
		s.sendError(peer, api.UnknownMessageCode, "unknown message type")
	}
}

func (s *Session) handleJoin(peer string, data json.RawMessage) {
	req, err := api.DecodeJSON[api.JoinData](data)
	if err != nil {
		s.sendError(peer, api.InvalidMessageCode, "invalid join message")
		return
	}

	if s.phase == PhaseMenu {
		s.sendError(peer, api.SessionClosedCode, "no open session")
		return
	}

	if req.RejoinToken != "" {
		s.handleRejoin(peer, req.RejoinToken)
		return
	}

	if s.maxPlayers >= 0 && s.roster.Len() >= s.maxPlayers {
		s.sendError(peer, api.SessionFullCode, "session is full")
		return
	}
	if err := validateName(req.Name); err != nil {
		s.sendError(peer, api.InvalidNameCode, err.Error())
		return
	}

	playerID := uuid.NewString()
	p := s.roster.Add(playerID, req.Name, req.Avatar)
	s.peers[peer] = playerID
	s.playerPeers[playerID] = peer

	// A joiner arriving after gameStarting is accepted with score 0
	// but is ineligible for the in-flight question: its answered flag
	// is pre-set so the fast-path cannot wait on it, and cleared again
	// when the next question is presented.
	if s.phase == PhasePlaying {
		p.MarkAnswered(s.cfg.TimePerQuestion)
		s.logger.Info("late join, ineligible for current question",
			slog.String("player_id", playerID),
			slog.Int("question", s.qIndex+1))
	}

	token, err := s.newRejoinToken(playerID)
	if err != nil {
		s.logger.Error("issue rejoin token", slog.Any("error", err))
	}

	s.sendToPeer(peer, api.GameMessageJoined, api.JoinedData{
		PlayerID:    playerID,
		RejoinToken: token,
	})
	s.broadcast(api.GameMessagePlayerJoined, api.PlayerJoinedData{
		PlayerID: playerID,
		Name:     req.Name,
		Avatar:   req.Avatar,
	})
	s.notify()
}

func (s *Session) handleRejoin(peer, token string) {
	playerID, err := s.checkRejoinToken(token)
	if err != nil {
		s.sendError(peer, api.InvalidTokenCode, "invalid rejoin token")
		return
	}
	p, ok := s.roster.Get(playerID)
	if !ok {
		s.sendError(peer, api.NotJoinedCode, "player no longer in session")
		return
	}

	if old, ok := s.playerPeers[playerID]; ok && old != peer {
		delete(s.peers, old)
	}
	s.peers[peer] = playerID
	s.playerPeers[playerID] = peer
	p.Reconnect()

	s.sendToPeer(peer, api.GameMessageJoined, api.JoinedData{
		PlayerID:    playerID,
		RejoinToken: token,
	})
	s.broadcast(api.GameMessagePlayerUpdate, api.PlayerUpdateData{
		PlayerID: playerID,
		Action:   "reconnect",
	})
	s.notify()
}

func (s *Session) handleAnswer(peer string, data json.RawMessage) {
	req, err := api.DecodeJSON[api.AnswerData](data)
	if err != nil {
		s.sendError(peer, api.InvalidMessageCode, "invalid answer message")
		return
	}

	// Identity is the protocol-level player id established at join
	// time; a mismatch with the sending peer is dropped.
	playerID, ok := s.peers[peer]
	if !ok || playerID != req.PlayerID {
		s.sendError(peer, api.NotJoinedCode, "answer from unjoined peer")
		return
	}

	elapsed := time.Duration(req.ElapsedTime * float64(time.Second))
	s.submitAnswer(playerID, req.QuestionNumber, req.AnswerIndex, elapsed)
}

func (s *Session) handleReady(peer string, data json.RawMessage) {
	req, err := api.DecodeJSON[api.ReadyData](data)
	if err != nil {
		s.sendError(peer, api.InvalidMessageCode, "invalid ready message")
		return
	}
	playerID, ok := s.peers[peer]
	if !ok || (req.PlayerID != "" && playerID != req.PlayerID) {
		s.sendError(peer, api.NotJoinedCode, "ready from unjoined peer")
		return
	}
	p, ok := s.roster.Get(playerID)
	if !ok {
		return
	}

	p.SetReady(true)
	s.broadcast(api.GameMessagePlayerUpdate, api.PlayerUpdateData{
		PlayerID: playerID,
		Action:   "ready",
	})
	s.notify()
}

func (s *Session) handleLeave(peer string, data json.RawMessage) {
	req, err := api.DecodeJSON[api.LeaveData](data)
	if err != nil {
		s.sendError(peer, api.InvalidMessageCode, "invalid leave message")
		return
	}
	playerID, ok := s.peers[peer]
	if !ok || playerID != req.PlayerID {
		return
	}

	s.dropPlayer(peer, playerID, "leave")
}

// handlePeerState reacts to transport-level connection changes. A new
// connection stays anonymous until its join message arrives.
func (s *Session) handlePeerState(peer string, state transport.PeerState) {
	if state != transport.PeerDisconnected {
		return
	}
	playerID, ok := s.peers[peer]
	if !ok {
		return
	}

	s.dropPlayer(peer, playerID, "disconnect")
}

// dropPlayer handles a leave or disconnect. In the lobby the player is
// removed outright; mid-game it is only marked disconnected so earlier
// scores stay attributable and appear in the final standings.
func (s *Session) dropPlayer(peer, playerID, action string) {
	delete(s.peers, peer)
	delete(s.playerPeers, playerID)

	p, ok := s.roster.Get(playerID)
	if !ok {
		return
	}

	switch s.phase {
	case PhaseLobby, PhaseMenu:
		s.roster.Remove(playerID)
	default:
		p.Disconnect()
	}
	s.logger.Info("player dropped",
		slog.String("player_id", playerID),
		slog.String("action", action),
		slog.Int("connected", s.roster.NumConnected()))

	s.broadcast(api.GameMessagePlayerUpdate, api.PlayerUpdateData{
		PlayerID: playerID,
		Action:   action,
	})

	// A departure can complete the answered set for everyone else.
	if s.phase == PhasePlaying && s.roster.AllAnswered() {
		s.stopDeadline()
		s.advanceToResult()
		return
	}
	s.notify()
}

func validateName(name string) error {
	count := utf8.RuneCountInString(name)
	if count < 1 {
		return errNameTooShort
	}
	if count > 25 {
		return errNameTooLong
	}
	return nil
}
