// Package api defines the wire protocol spoken between a quiz host and
// its peers: the PlayerMessage family (peer to host) and the GameMessage
// family (host to peer). Every message is a self-describing tagged variant
// encoded as JSON.
package api

import "encoding/json"

type PlayerMessageType string

const (
	PlayerMessageUnknown PlayerMessageType = ""
	PlayerMessageJoin    PlayerMessageType = "join"
	PlayerMessageAnswer  PlayerMessageType = "answer"
	PlayerMessageReady   PlayerMessageType = "ready"
	PlayerMessageLeave   PlayerMessageType = "leave"
)

// PlayerMessage is a message sent by a peer to the host.
type PlayerMessage[T any] struct {
	Type PlayerMessageType `json:"type"`
	Data T                 `json:"data,omitempty"`
}

type GameMessageType string

const (
	GameMessageError          GameMessageType = "error"
	GameMessageJoined         GameMessageType = "joined"
	GameMessagePlayerJoined   GameMessageType = "playerJoined"
	GameMessagePlayerUpdate   GameMessageType = "playerUpdate"
	GameMessageGameStarting   GameMessageType = "gameStarting"
	GameMessageNewQuestion    GameMessageType = "newQuestion"
	GameMessageAnswerResult   GameMessageType = "answerResult"
	GameMessageQuestionResult GameMessageType = "questionResult"
	GameMessageGameEnded      GameMessageType = "gameEnded"
)

// GameMessage is a message sent by the host, broadcast to all peers
// unless the variant is documented as unicast.
type GameMessage[T any] struct {
	Type GameMessageType `json:"type"`
	Data T               `json:"data,omitempty"`
}

type JoinData struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`

	// RejoinToken re-binds a reconnecting peer to its existing player.
	RejoinToken string `json:"rejoinToken,omitempty"`
}

type AnswerData struct {
	PlayerID string `json:"playerId"`

	// QuestionNumber names the question this answer is for, so a
	// delayed answer cannot be scored against a later question.
	QuestionNumber int     `json:"questionNumber"`
	AnswerIndex    int     `json:"answerIndex"`
	ElapsedTime    float64 `json:"elapsedTime"` // seconds since the question was presented
}

type ReadyData struct {
	PlayerID string `json:"playerId"`
}

type LeaveData struct {
	PlayerID string `json:"playerId"`
}

// JoinedData acknowledges a join to the joining peer only.
type JoinedData struct {
	PlayerID    string `json:"playerId"`
	RejoinToken string `json:"rejoinToken"`
}

type PlayerJoinedData struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
}

type PlayerUpdateData struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
}

type GameStartingData struct {
	Countdown int `json:"countdown"`
}

type NewQuestionData struct {
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	QuestionNumber int      `json:"questionNumber"`
	TotalQuestions int      `json:"totalQuestions"`
	TimeLimit      float64  `json:"timeLimit"` // seconds
}

// AnswerResultData is unicast to the answering peer.
type AnswerResultData struct {
	PlayerID string `json:"playerId"`
	Correct  bool   `json:"correct"`
	NewScore int    `json:"newScore"`
}

type QuestionResultData struct {
	QuestionNumber int        `json:"questionNumber"`
	CorrectIndex   int        `json:"correctIndex"`
	Explanation    *string    `json:"explanation,omitempty"`
	Standings      []Standing `json:"standings"`
}

type Standing struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Score    int    `json:"score"`
}

type GameEndedData struct {
	FinalScores []Standing `json:"finalScores"`
}

// EncodePlayerMessage marshals a typed player message for the wire.
func EncodePlayerMessage[T any](msgType PlayerMessageType, data T) ([]byte, error) {
	return json.Marshal(PlayerMessage[T]{Type: msgType, Data: data})
}

// EncodeGameMessage marshals a typed game message for the wire.
func EncodeGameMessage[T any](msgType GameMessageType, data T) ([]byte, error) {
	return json.Marshal(GameMessage[T]{Type: msgType, Data: data})
}

// DecodePlayerMessage unmarshals the envelope of a peer message,
// leaving the payload raw for a second DecodeJSON pass.
func DecodePlayerMessage(b []byte) (PlayerMessage[json.RawMessage], error) {
	msg := PlayerMessage[json.RawMessage]{}
	err := json.Unmarshal(b, &msg)
	return msg, err
}

// DecodeGameMessage unmarshals the envelope of a host message.
func DecodeGameMessage(b []byte) (GameMessage[json.RawMessage], error) {
	msg := GameMessage[json.RawMessage]{}
	err := json.Unmarshal(b, &msg)
	return msg, err
}

// DecodeJSON decodes a raw payload into the requested message data type.
func DecodeJSON[T any](data json.RawMessage) (res T, err error) {
	if err := json.Unmarshal(data, &res); err != nil {
		return res, err
	}
	return res, nil
}
