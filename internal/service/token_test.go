package service

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenIssuer_Issue(t *testing.T) {
	issuer := NewTokenIssuer(2 * time.Hour)
	now := testNow.Add(1500 * time.Microsecond)

	token, expiresAt, err := issuer.Issue(now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(token) != 43 {
		t.Errorf("len(token) = %d, ожидалось 43", len(token))
	}
	if !wellFormedToken(token) {
		t.Errorf("токен %q не проходит проверку формата", token)
	}
	want := testNow.Add(time.Millisecond).Add(2 * time.Hour)
	if !expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, ожидалось %v", expiresAt, want)
	}
	if expiresAt.Location() != time.UTC {
		t.Errorf("expiresAt не в UTC: %v", expiresAt.Location())
	}
}

func TestTokenIssuer_Unique(t *testing.T) {
	issuer := NewTokenIssuer(time.Hour)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		token, _, err := issuer.Issue(testNow)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("повторный токен %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestTokenIssuer_RandomFailure(t *testing.T) {
	issuer := &TokenIssuer{ttl: time.Hour, random: bytes.NewReader([]byte{1, 2, 3})}
	if _, _, err := issuer.Issue(testNow); err == nil {
		t.Fatal("ожидалась ошибка при нехватке случайных байт")
	}
}

func TestWellFormedToken(t *testing.T) {
	valid := strings.Repeat("A", 42) + "_"
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"корректный", valid, true},
		{"пустой", "", false},
		{"короткий", valid[:42], false},
		{"длинный", valid + "A", false},
		{"паддинг", strings.Repeat("A", 42) + "=", false},
		{"стандартный base64", strings.Repeat("A", 42) + "+", false},
		{"пробел", strings.Repeat("A", 42) + " ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wellFormedToken(tt.token); got != tt.want {
				t.Errorf("wellFormedToken(%q) = %v, ожидалось %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestCodeGenerator_Generate(t *testing.T) {
	gen := NewCodeGenerator("WRD")
	code, err := gen.Generate(testNow)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(code, "WRD-1700000000-") {
		t.Errorf("code = %q, ожидался префикс WRD-1700000000-", code)
	}
	suffix := strings.TrimPrefix(code, "WRD-1700000000-")
	if len(suffix) != codeSuffixLength {
		t.Errorf("len(suffix) = %d, ожидалось %d", len(suffix), codeSuffixLength)
	}
	for _, c := range suffix {
		if !strings.ContainsRune(crockfordAlphabet, c) {
			t.Errorf("символ %q вне алфавита Crockford", c)
		}
	}
	if !accessCodePattern.MatchString(code) {
		t.Errorf("код %q не проходит валидацию записи", code)
	}
}

func TestCodeGenerator_LongestPrefix(t *testing.T) {
	// 42 символа: самый длинный префикс, который допускает конфигурация
	gen := NewCodeGenerator(strings.Repeat("W", 42))
	code, err := gen.Generate(testNow)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !accessCodePattern.MatchString(code) {
		t.Errorf("код %q (%d символов) не проходит валидацию записи", code, len(code))
	}
}

func TestCodeGenerator_DeterministicAlphabet(t *testing.T) {
	gen := &CodeGenerator{prefix: "WRD", random: bytes.NewReader([]byte{0, 31, 32, 255, 8, 9, 10, 17, 18, 30})}
	code, err := gen.Generate(testNow)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if want := "WRD-1700000000-0Z0Z89AHJY"; code != want {
		t.Errorf("code = %q, ожидался %q", code, want)
	}
}

func TestCodeGenerator_RandomFailure(t *testing.T) {
	gen := &CodeGenerator{prefix: "WRD", random: bytes.NewReader(nil)}
	_, err := gen.Generate(testNow)
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("ошибка генерации не должна быть ошибкой валидации")
	}
}

func TestRequestAccessURL(t *testing.T) {
	got := RequestAccessURL("https://gate.example.org", "WRD-1700000000-AB12CD", "woreda-9")
	want := "https://gate.example.org/request-access?code=WRD-1700000000-AB12CD&scope=woreda-9"
	if got != want {
		t.Errorf("RequestAccessURL = %q, ожидался %q", got, want)
	}

	got = RequestAccessURL("http://localhost:8080", "WRD-1-X", "")
	if got != "http://localhost:8080/request-access?code=WRD-1-X" {
		t.Errorf("без scope: %q", got)
	}
}
