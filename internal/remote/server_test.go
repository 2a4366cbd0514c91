package remote

import (
	"net/http"
	"testing"
	"time"
)

func TestTokenValidation(t *testing.T) {
	s := NewServer(nil)

	if s.validateToken("anything") {
		t.Error("no token generated yet, nothing should validate")
	}

	token, err := s.GenerateToken(time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !s.validateToken(token) {
		t.Error("freshly generated token rejected")
	}
	if s.validateToken("wrong") {
		t.Error("wrong token accepted")
	}
	if s.validateToken("") {
		t.Error("empty token accepted")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	s := NewServer(nil)

	token, err := s.GenerateToken(-time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if s.validateToken(token) {
		t.Error("expired token accepted")
	}
}

func TestApprovedTokenOutlivesTemporary(t *testing.T) {
	s := NewServer(nil)

	client, err := s.AddApprovedClient("phone")
	if err != nil {
		t.Fatal(err)
	}
	if !s.validateToken(client.Token) {
		t.Error("approved token rejected")
	}
	if !s.IsApprovedToken(client.Token) {
		t.Error("IsApprovedToken = false for approved token")
	}

	s.RemoveApprovedClient(client.Token)
	if s.validateToken(client.Token) {
		t.Error("revoked token accepted")
	}
}

func TestApprovedClientsRoundTrip(t *testing.T) {
	s := NewServer(nil)

	a, _ := s.AddApprovedClient("phone")
	b, _ := s.AddApprovedClient("tablet")

	loaded := NewServer(nil)
	loaded.SetApprovedClients(s.GetApprovedClients())

	if !loaded.validateToken(a.Token) || !loaded.validateToken(b.Token) {
		t.Error("persisted approved tokens must validate after reload")
	}
}

func TestApprovedChangeCallback(t *testing.T) {
	s := NewServer(nil)

	calls := 0
	s.SetApprovedChangeCallback(func() { calls++ })

	client, _ := s.AddApprovedClient("phone")
	s.RemoveApprovedClient(client.Token)

	if calls != 2 {
		t.Errorf("callback calls = %d, want 2", calls)
	}
}

func TestRateLimitLockout(t *testing.T) {
	s := NewServer(nil)
	ip := "203.0.113.5"

	for i := 0; i < maxAuthAttempts; i++ {
		if !s.checkRateLimit(ip) {
			t.Fatalf("locked out after %d attempts, limit is %d", i, maxAuthAttempts)
		}
		s.recordFailedAuth(ip)
	}
	if s.checkRateLimit(ip) {
		t.Error("still allowed past the attempt limit")
	}

	s.resetAuthAttempts(ip)
	if !s.checkRateLimit(ip) {
		t.Error("reset must clear the lockout")
	}
}

func TestOriginCheck(t *testing.T) {
	s := NewServer(nil)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://127.0.0.1:9090", true},
		{"https://demo.ngrok-free.app", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		r, _ := http.NewRequest(http.MethodGet, "/ws/session", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := s.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"

	if got := getClientIP(r); got != "10.0.0.1" {
		t.Errorf("ip = %q, want 10.0.0.1", got)
	}

	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := getClientIP(r); got != "198.51.100.7" {
		t.Errorf("ip = %q, want 198.51.100.7", got)
	}
}
