package quiz

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// newTokenKey derives a per-session signing key from an optional salt,
// the session id and its creation time.
func newTokenKey(secret []byte, id string, created time.Time) []byte {
	key := fmt.Sprintf("%s%s%d", secret, id, created.Unix())
	return []byte(fmt.Sprintf("%x", key))
}

// newRejoinToken issues a token that re-binds a reconnecting peer to
// its player record.
func (s *Session) newRejoinToken(playerID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sessionId": s.id,
		"playerId":  playerID,
	})
	return token.SignedString(s.tokenKey)
}

// checkRejoinToken validates a rejoin token and returns the player id
// it carries. A check fails if the sessionId doesn't match this session.
func (s *Session) checkRejoinToken(token string) (string, error) {
	jwtToken, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.tokenKey, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := jwtToken.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	sessionID, ok := stringClaim(claims, "sessionId")
	if !ok {
		return "", errors.New("token has no sessionId claim")
	}
	if sessionID != s.id {
		return "", errors.New("token does not match session id")
	}
	playerID, ok := stringClaim(claims, "playerId")
	if !ok {
		return "", errors.New("token has no playerId claim")
	}
	return playerID, nil
}

func stringClaim(claims jwt.MapClaims, claim string) (string, bool) {
	claimAny, ok := claims[claim]
	if !ok {
		return "", false
	}
	claimStr, ok := claimAny.(string)
	return claimStr, ok
}
