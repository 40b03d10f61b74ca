package api

// ErrorData is the payload of a GameMessage error variant.
type ErrorData struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}

type ErrorCode uint8

const (
	InvalidMessageCode  ErrorCode = 101
	UnknownMessageCode  ErrorCode = 102
	SessionFullCode     ErrorCode = 103
	InvalidNameCode     ErrorCode = 104
	NotJoinedCode       ErrorCode = 105
	InvalidTokenCode    ErrorCode = 106
	InternalErrorCode   ErrorCode = 107
	SessionClosedCode   ErrorCode = 108
	TooManyRequestsCode ErrorCode = 109
)

func (e ErrorData) Error() string {
	return e.Message
}
