package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"net/url"
	"time"
)

// crockfordAlphabet: base32 без I, L, O, U, чтобы код читался вслух без путаницы.
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// codeSuffixLength: 10 символов по 5 бит, 50 бит случайности.
const codeSuffixLength = 10

// CodeGenerator выпускает коды заявок вида WRD-<unix>-<суффикс>.
type CodeGenerator struct {
	prefix string
	random io.Reader
}

func NewCodeGenerator(prefix string) *CodeGenerator {
	return &CodeGenerator{prefix: prefix, random: rand.Reader}
}

// Generate возвращает новый код для момента now.
func (g *CodeGenerator) Generate(now time.Time) (string, error) {
	buf := make([]byte, codeSuffixLength)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("генерация кода заявки: %w", err)
	}
	suffix := make([]byte, codeSuffixLength)
	for i, b := range buf {
		// 256 делится на 32 нацело, распределение равномерное
		suffix[i] = crockfordAlphabet[b&31]
	}
	return fmt.Sprintf("%s-%d-%s", g.prefix, now.Unix(), suffix), nil
}

// RequestAccessURL строит payload QR-кода: страницу посетителя с кодом и scope.
func RequestAccessURL(publicBaseURL, code, scopeID string) string {
	q := url.Values{}
	q.Set("code", code)
	if scopeID != "" {
		q.Set("scope", scopeID)
	}
	return publicBaseURL + "/request-access?" + q.Encode()
}
