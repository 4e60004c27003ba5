package authgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/halyard-io/authgate/internal"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Cookie.Secure = false
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return engine, mr
}

func TestCreateAndValidateSession(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	rec, err := engine.CreateSession(ctx, DomainUser, "alice", "ua-1", "203.0.113.1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if rec.SessionID == "" {
		t.Fatal("expected a session id")
	}

	got, err := engine.ValidateSession(WithFingerprint(ctx, "ua-1"), DomainUser, rec.SessionID)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if got.IdentityID != "alice" || got.Domain != "user" {
		t.Fatalf("identity mismatch: %+v", got)
	}

	if engine.metrics.Value(MetricSessionCreated) != 1 {
		t.Fatal("expected MetricSessionCreated=1")
	}
	if engine.metrics.Value(MetricSessionValidated) != 1 {
		t.Fatal("expected MetricSessionValidated=1")
	}
}

func TestValidateUnknownSessionExpired(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	sid, err := internal.NewSessionID()
	if err != nil {
		t.Fatalf("session id generation failed: %v", err)
	}

	_, err = engine.ValidateSession(context.Background(), DomainUser, sid.String())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if engine.metrics.Value(MetricSessionRejected) != 1 {
		t.Fatal("expected MetricSessionRejected=1")
	}
}

func TestValidateMalformedSessionID(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	for _, sid := range []string{"short", "not!!valid@@base64url", "sess-1"} {
		if _, err := engine.ValidateSession(context.Background(), DomainUser, sid); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("%q: expected ErrUnauthenticated, got %v", sid, err)
		}
	}
}

func TestValidateWrongDomainRejected(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	rec, err := engine.CreateSession(ctx, DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Same id presented against the admin namespace misses entirely.
	if _, err := engine.ValidateSession(ctx, DomainAdmin, rec.SessionID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected cross-domain miss, got %v", err)
	}
}

func TestRevokeSessionImmediate(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	rec, err := engine.CreateSession(ctx, DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := engine.RevokeSession(ctx, DomainUser, rec.SessionID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := engine.ValidateSession(ctx, DomainUser, rec.SessionID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected revoked session to fail validation, got %v", err)
	}

	// Idempotent.
	if err := engine.RevokeSession(ctx, DomainUser, rec.SessionID); err != nil {
		t.Fatalf("second revoke errored: %v", err)
	}

	infos, err := engine.Sessions(ctx, DomainUser, "alice")
	if err != nil {
		t.Fatalf("sessions list failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected empty session list, got %v", infos)
	}
}

func TestRevokeAllScopedToDomain(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	var userSessions []string
	for i := 0; i < 3; i++ {
		rec, err := engine.CreateSession(ctx, DomainUser, "alice", "", "")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		userSessions = append(userSessions, rec.SessionID)
	}
	adminRec, err := engine.CreateSession(ctx, DomainAdmin, "alice", "", "")
	if err != nil {
		t.Fatalf("admin create failed: %v", err)
	}

	if err := engine.RevokeAll(ctx, DomainUser, "alice"); err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}

	for _, sid := range userSessions {
		if _, err := engine.ValidateSession(ctx, DomainUser, sid); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected %s revoked, got %v", sid, err)
		}
	}

	// The admin-domain session is a different namespace and survives.
	if _, err := engine.ValidateSession(ctx, DomainAdmin, adminRec.SessionID); err != nil {
		t.Fatalf("admin session should survive, got %v", err)
	}
}

func TestValidateFailsClosedOnStoreOutage(t *testing.T) {
	cfg := testConfig()
	cfg.Session.StoreTimeout = 200 * time.Millisecond
	engine, mr := newTestEngine(t, cfg)
	ctx := context.Background()

	rec, err := engine.CreateSession(ctx, DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mr.Close()

	if _, err := engine.ValidateSession(ctx, DomainUser, rec.SessionID); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if engine.metrics.Value(MetricStoreUnavailable) == 0 {
		t.Fatal("expected MetricStoreUnavailable increment")
	}
}

func TestSlidingExpirationRenewsWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Session.TTL = 10 * time.Second
	engine, mr := newTestEngine(t, cfg)
	ctx := context.Background()

	rec, err := engine.CreateSession(ctx, DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Touch the session inside the window, then cross the original deadline.
	mr.FastForward(8 * time.Second)
	if _, err := engine.ValidateSession(ctx, DomainUser, rec.SessionID); err != nil {
		t.Fatalf("mid-window validate failed: %v", err)
	}

	mr.FastForward(8 * time.Second)
	if _, err := engine.ValidateSession(ctx, DomainUser, rec.SessionID); err != nil {
		t.Fatalf("expected renewed window, got %v", err)
	}

	mr.FastForward(11 * time.Second)
	if _, err := engine.ValidateSession(ctx, DomainUser, rec.SessionID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected idle expiry, got %v", err)
	}
}

func TestAbsoluteLifetimeCapsSliding(t *testing.T) {
	cfg := testConfig()
	cfg.Session.TTL = time.Hour
	cfg.Session.AbsoluteLifetime = time.Hour
	engine, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	rec, err := engine.CreateSession(ctx, DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := engine.ValidateSession(ctx, DomainUser, rec.SessionID)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	hardCap := time.Unix(rec.CreatedAt, 0).Add(cfg.Session.AbsoluteLifetime)
	if time.Unix(got.ExpiresAt, 0).After(hardCap) {
		t.Fatalf("sliding window crossed the absolute cap: %v > %v", time.Unix(got.ExpiresAt, 0), hardCap)
	}
}

func TestSessionsListAndLazyPrune(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	first, err := engine.CreateSession(ctx, DomainUser, "alice", "", "198.51.100.1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := engine.CreateSession(ctx, DomainUser, "alice", "", "198.51.100.2")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	infos, err := engine.Sessions(ctx, DomainUser, "alice")
	if err != nil {
		t.Fatalf("sessions failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(infos))
	}

	if err := engine.RevokeSession(ctx, DomainUser, first.SessionID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	infos, err = engine.Sessions(ctx, DomainUser, "alice")
	if err != nil {
		t.Fatalf("sessions failed: %v", err)
	}
	if len(infos) != 1 || infos[0].SessionID != second.SessionID {
		t.Fatalf("expected only %s, got %v", second.SessionID, infos)
	}
}

func TestStartSessionIssuesFullHandle(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	handle, err := engine.StartSession(ctx, DomainUser, "alice", "ua-1", "203.0.113.1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if handle.SessionID == "" || handle.CSRFToken == "" || handle.BearerToken == "" {
		t.Fatalf("incomplete handle: %+v", handle)
	}
	if handle.ExpiresAt.Before(time.Now()) {
		t.Fatal("expected future expiry")
	}

	if err := engine.VerifyCSRF(ctx, DomainUser, handle.SessionID, handle.CSRFToken); err != nil {
		t.Fatalf("fresh csrf token rejected: %v", err)
	}
}

func TestCreateSessionInvalidArgs(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	if _, err := engine.CreateSession(ctx, DomainUser, "", "", ""); !errors.Is(err, ErrSessionCreationFailed) {
		t.Fatalf("expected ErrSessionCreationFailed for empty identity, got %v", err)
	}
	if _, err := engine.CreateSession(ctx, RoleDomain(99), "alice", "", ""); !errors.Is(err, ErrSessionCreationFailed) {
		t.Fatalf("expected ErrSessionCreationFailed for bad domain, got %v", err)
	}
}

func TestPing(t *testing.T) {
	engine, mr := newTestEngine(t, testConfig())

	if _, err := engine.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	mr.Close()
	if _, err := engine.Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure after store down")
	}
}

func TestAuditEventsEmitted(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	sink := NewChannelSink(32)
	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "203.0.113.5")
	rec, err := engine.CreateSession(ctx, DomainUser, "alice", "", "203.0.113.5")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := engine.RevokeSession(ctx, DomainUser, rec.SessionID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	want := map[string]bool{
		"session_created": false,
		"session_revoked": false,
	}
	deadline := time.After(2 * time.Second)
	for {
		allSeen := true
		for _, seen := range want {
			if !seen {
				allSeen = false
			}
		}
		if allSeen {
			break
		}

		select {
		case ev := <-sink.Events():
			if _, ok := want[ev.EventType]; ok {
				want[ev.EventType] = true
				if ev.ID == "" || ev.Domain != "user" {
					t.Fatalf("malformed audit event: %+v", ev)
				}
				if ev.EventType == "session_created" && ev.IP != "203.0.113.5" {
					t.Fatalf("expected client ip on create event, got %+v", ev)
				}
			}
		case <-deadline:
			t.Fatalf("missing audit events: %v", want)
		}
	}
}
