package rooms

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/OktayBayram/nyx-game/internal/game"
)

// Claims bind a resume token to one seat in one room. The subject is the
// player id.
type Claims struct {
	Room string `json:"room"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HMAC-signed resume tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens uses secret for signing. An empty secret is replaced with random
// bytes, so tokens do not survive a restart.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := crand.Read(key); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	return &Tokens{secret: key, ttl: ttl, now: time.Now}, nil
}

func (t *Tokens) Issue(room, playerID string) (string, error) {
	now := t.now()
	claims := Claims{
		Room: room,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns the room code and player id it names.
func (t *Tokens) Parse(token string) (room, playerID string, err error) {
	var claims Claims
	_, err = jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", "", errors.Join(game.ErrInvalidToken, err)
	}
	if claims.Room == "" || claims.Subject == "" {
		return "", "", game.ErrInvalidToken
	}
	return claims.Room, claims.Subject, nil
}
