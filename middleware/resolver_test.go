package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authgate "github.com/halyard-io/authgate"
)

func newTestEngine(t *testing.T) *authgate.Engine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := authgate.DefaultConfig()
	cfg.Cookie.Secure = false
	cfg.Audit.Enabled = false

	engine, err := authgate.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return engine
}

func newTestRouter() *DomainRouter {
	return NewDomainRouter(authgate.DomainUser).Route("/admin/", authgate.DomainAdmin)
}

func identityEchoHandler(t *testing.T, got **authgate.VerifiedIdentity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("handler reached without identity in context")
		}
		*got = identity
		w.WriteHeader(http.StatusOK)
	})
}

func TestResolveMiddlewareCookieChannel(t *testing.T) {
	engine := newTestEngine(t)
	handle, err := engine.StartSession(context.Background(), authgate.DomainUser, "alice", "ua-1", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var got *authgate.VerifiedIdentity
	handler := Resolve(engine, newTestRouter())(identityEchoHandler(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("User-Agent", "ua-1")
	req.AddCookie(&http.Cookie{Name: engine.SessionCookieName(), Value: handle.SessionID})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.IdentityID != "alice" || got.Channel != authgate.ChannelCookie {
		t.Fatalf("identity mismatch: %+v", got)
	}
}

func TestResolveMiddlewareBearerChannel(t *testing.T) {
	engine := newTestEngine(t)
	handle, err := engine.StartSession(context.Background(), authgate.DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var got *authgate.VerifiedIdentity
	handler := Resolve(engine, newTestRouter())(identityEchoHandler(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+handle.BearerToken)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.Channel != authgate.ChannelBearer {
		t.Fatalf("expected bearer channel, got %+v", got)
	}
}

func TestResolveMiddlewareNoCredentials401(t *testing.T) {
	engine := newTestEngine(t)

	handler := Resolve(engine, newTestRouter())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestResolveMiddlewareGenericFailures(t *testing.T) {
	engine := newTestEngine(t)
	handle, err := engine.StartSession(context.Background(), authgate.DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := engine.RevokeSession(context.Background(), authgate.DomainUser, handle.SessionID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	handler := Resolve(engine, newTestRouter())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	// Revoked session and garbage bearer produce the same response body.
	var bodies []string
	for _, setup := range []func(*http.Request){
		func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: engine.SessionCookieName(), Value: handle.SessionID})
		},
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer garbage")
		},
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		setup(req)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		bodies = append(bodies, rr.Body.String())
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("failure responses must be indistinguishable: %q vs %q", bodies[0], bodies[1])
	}
}

func TestResolveMiddlewareDomainRouting(t *testing.T) {
	engine := newTestEngine(t)

	// User-domain session presented to an admin-routed path.
	handle, err := engine.StartSession(context.Background(), authgate.DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	handler := Resolve(engine, newTestRouter())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/panel", nil)
	req.AddCookie(&http.Cookie{Name: engine.SessionCookieName(), Value: handle.SessionID})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected cross-domain 401, got %d", rr.Code)
	}
}

func TestDomainRouterLongestPrefixWins(t *testing.T) {
	router := NewDomainRouter(authgate.DomainUser).
		Route("/admin/", authgate.DomainAdmin).
		Route("/admin/support/", authgate.DomainService)

	cases := []struct {
		path string
		want authgate.RoleDomain
	}{
		{"/", authgate.DomainUser},
		{"/profile", authgate.DomainUser},
		{"/admin/panel", authgate.DomainAdmin},
		{"/admin/support/tickets", authgate.DomainService},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if got := router.Domain(req); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestClientIPExtraction(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("remote addr: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := clientIP(req); got != "198.51.100.7" {
		t.Fatalf("forwarded: got %q", got)
	}
}
