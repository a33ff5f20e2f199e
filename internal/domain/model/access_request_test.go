package model

import "testing"

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusApproved, true},
		{StatusDenied, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, ожидалось %v", tt.status, got, tt.want)
		}
	}
}

func TestStatus_IsValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusApproved, StatusDenied} {
		if !s.IsValid() {
			t.Errorf("%s.IsValid() = false, ожидалось true", s)
		}
	}
	if Status("revoked").IsValid() {
		t.Error("revoked.IsValid() = true, ожидалось false")
	}
}
