package vault

import "testing"

func TestSessionLifecycle(t *testing.T) {
	s := NewSession(300)
	if s.IsActive() {
		t.Fatalf("expected inactive before start")
	}

	s.Start([32]byte{42})
	if !s.IsActive() {
		t.Fatalf("expected active after start")
	}
	if _, ok := s.GetKey(); !ok {
		t.Fatalf("expected key available")
	}

	s.Close()
	if s.IsActive() {
		t.Fatalf("expected inactive after close")
	}
	if _, ok := s.GetKey(); ok {
		t.Fatalf("expected no key after close")
	}
}

func TestSessionTokenIssuedOnStartAndClearedOnClose(t *testing.T) {
	s := NewSession(300)
	if tok := s.Token(); tok != "" {
		t.Fatalf("expected empty token before start, got %q", tok)
	}

	s.Start([32]byte{1})
	tok := s.Token()
	if tok == "" {
		t.Fatal("expected a non-empty token after start")
	}

	s.Close()
	if tok := s.Token(); tok != "" {
		t.Fatalf("expected empty token after close, got %q", tok)
	}
}

func TestSessionTokenChangesAcrossRestarts(t *testing.T) {
	s := NewSession(300)
	s.Start([32]byte{1})
	first := s.Token()
	s.Start([32]byte{2})
	second := s.Token()
	if first == second {
		t.Fatal("expected a fresh token on each Start")
	}
}

func TestRateLimiterAllowsInitialAttempts(t *testing.T) {
	r := NewRateLimiter()
	if err := r.CheckLocked(); err != nil {
		t.Fatalf("expected no lockout initially, got %v", err)
	}
}

func TestRateLimiterLocksAfterMaxAttempts(t *testing.T) {
	r := NewRateLimiter()
	for i := 0; i < maxAttempts; i++ {
		r.RecordFailure()
	}
	if err := r.CheckLocked(); err == nil {
		t.Fatalf("expected lockout after %d failures", maxAttempts)
	}
}

func TestRateLimiterResetsOnSuccess(t *testing.T) {
	r := NewRateLimiter()
	for i := 0; i < 3; i++ {
		r.RecordFailure()
	}
	r.RecordSuccess()
	if r.failedAttempts != 0 {
		t.Fatalf("expected failedAttempts reset, got %d", r.failedAttempts)
	}
}
