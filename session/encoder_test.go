package session

import (
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now().Unix()
	rec := &Record{
		IdentityID:     "alice",
		Domain:         "user",
		ClientIP:       "203.0.113.7",
		CreatedAt:      now - 100,
		LastActivityAt: now - 10,
		ExpiresAt:      now + 3600,
		SchemaVersion:  CurrentSchemaVersion,
	}
	copy(rec.FingerprintHash[:], []byte("fingerprint-digest-32-bytes-long"))

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.IdentityID != rec.IdentityID || got.Domain != rec.Domain || got.ClientIP != rec.ClientIP {
		t.Fatalf("string fields mismatch: %+v", got)
	}
	if got.FingerprintHash != rec.FingerprintHash {
		t.Fatal("fingerprint hash mismatch")
	}
	if got.CreatedAt != rec.CreatedAt || got.LastActivityAt != rec.LastActivityAt || got.ExpiresAt != rec.ExpiresAt {
		t.Fatalf("timestamp mismatch: %+v", got)
	}
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	rec := &Record{IdentityID: "alice", Domain: "user", ExpiresAt: time.Now().Unix()}
	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	data[0] = 99
	if _, err := Decode(data); err == nil {
		t.Fatal("expected version rejection")
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	rec := &Record{IdentityID: "alice", Domain: "user", ExpiresAt: time.Now().Unix()}
	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	for cut := 1; cut < len(data); cut += 7 {
		if _, err := Decode(data[:cut]); err == nil {
			t.Fatalf("expected error for blob truncated at %d", cut)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	rec := &Record{IdentityID: "alice", Domain: "user", ExpiresAt: time.Now().Unix()}
	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if _, err := Decode(append(data, 0x00)); err == nil {
		t.Fatal("expected trailing-bytes rejection")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{CurrentSchemaVersion},
		[]byte("not a session blob at all"),
	}
	for i, data := range cases {
		if _, err := Decode(data); err == nil {
			t.Fatalf("case %d: expected decode failure", i)
		}
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}

	rec := &Record{IdentityID: string(long), Domain: "user"}
	if _, err := Encode(rec); err == nil {
		t.Fatal("expected oversized identity rejection")
	}
}
