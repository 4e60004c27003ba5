package internal

import "testing"

func TestSessionIDRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	parsed, err := ParseSessionID(sid.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != sid {
		t.Fatal("round trip mismatch")
	}
}

func TestSessionIDUniqueness(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		sid, err := NewSessionID()
		if err != nil {
			t.Fatalf("generation failed: %v", err)
		}
		s := sid.String()
		if seen[s] {
			t.Fatalf("duplicate session id %q", s)
		}
		seen[s] = true
	}
}

func TestParseSessionIDRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "short", "!!!!", "dG9vLWxvbmctdG8tYmUtYS1zZXNzaW9uLWlk"} {
		if _, err := ParseSessionID(in); err == nil {
			t.Fatalf("%q: expected rejection", in)
		}
	}
}

func TestCSRFSecretShape(t *testing.T) {
	a, err := NewCSRFSecret()
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}
	b, err := NewCSRFSecret()
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	if a == b {
		t.Fatal("two secrets must differ")
	}
	// 32 bytes, base64url without padding.
	if len(a) != 43 {
		t.Fatalf("unexpected secret length %d", len(a))
	}
}

func TestHashFingerprintDeterministic(t *testing.T) {
	h1 := HashFingerprint("device-a")
	h2 := HashFingerprint("device-a")
	h3 := HashFingerprint("device-b")

	if h1 != h2 {
		t.Fatal("hash must be deterministic")
	}
	if h1 == h3 {
		t.Fatal("different inputs must not collide")
	}
}
