package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"
)

// tokenBytes: 256 бит энтропии на токен.
const tokenBytes = 32

// tokenLength: длина токена в base64url без паддинга.
var tokenLength = base64.RawURLEncoding.EncodedLen(tokenBytes)

// TokenIssuer выпускает непрозрачные токены доступа с фиксированным окном действия.
// Не обращается к хранилищу, поэтому может вызываться до compare-and-set.
type TokenIssuer struct {
	ttl    time.Duration
	random io.Reader
}

// NewTokenIssuer создаёт выпуск токенов с окном ttl (одно на процесс).
func NewTokenIssuer(ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{ttl: ttl, random: rand.Reader}
}

// TTL возвращает окно действия токена.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue возвращает новый токен и момент истечения now + TTL.
func (i *TokenIssuer) Issue(now time.Time) (token string, expiresAt time.Time, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(i.random, buf); err != nil {
		return "", time.Time{}, fmt.Errorf("генерация токена: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), truncateInstant(now).Add(i.ttl), nil
}

// wellFormedToken отсекает строки, которые TokenIssuer выпустить не мог.
func wellFormedToken(token string) bool {
	if len(token) != tokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
