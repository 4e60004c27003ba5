package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	authgate "github.com/halyard-io/authgate"
)

func protectedChain(engine *authgate.Engine) http.Handler {
	return Resolve(engine, newTestRouter())(RequireCSRF(engine)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	))
}

func TestRequireCSRFPostWithTokenPasses(t *testing.T) {
	engine := newTestEngine(t)
	handle, err := engine.StartSession(context.Background(), authgate.DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/action", nil)
	req.AddCookie(&http.Cookie{Name: engine.SessionCookieName(), Value: handle.SessionID})
	req.Header.Set(engine.CSRFHeaderName(), handle.CSRFToken)

	rr := httptest.NewRecorder()
	protectedChain(engine).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRequireCSRFPostWithoutToken403(t *testing.T) {
	engine := newTestEngine(t)
	handle, err := engine.StartSession(context.Background(), authgate.DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/action", nil)
	req.AddCookie(&http.Cookie{Name: engine.SessionCookieName(), Value: handle.SessionID})

	rr := httptest.NewRecorder()
	protectedChain(engine).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireCSRFWrongToken403(t *testing.T) {
	engine := newTestEngine(t)
	handle, err := engine.StartSession(context.Background(), authgate.DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/action", nil)
	req.AddCookie(&http.Cookie{Name: engine.SessionCookieName(), Value: handle.SessionID})
	req.Header.Set(engine.CSRFHeaderName(), "bm90LXRoZS1yZWFsLXRva2Vu")

	rr := httptest.NewRecorder()
	protectedChain(engine).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireCSRFGetSkipsCheck(t *testing.T) {
	engine := newTestEngine(t)
	handle, err := engine.StartSession(context.Background(), authgate.DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// GET is read-only; no token required.
	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.AddCookie(&http.Cookie{Name: engine.SessionCookieName(), Value: handle.SessionID})

	rr := httptest.NewRecorder()
	protectedChain(engine).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRequireCSRFBearerChannelExempt(t *testing.T) {
	engine := newTestEngine(t)
	handle, err := engine.StartSession(context.Background(), authgate.DomainUser, "alice", "", "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Bearer-authenticated POST carries no ambient cookie; CSRF does not
	// apply.
	req := httptest.NewRequest(http.MethodPost, "/action", nil)
	req.Header.Set("Authorization", "Bearer "+handle.BearerToken)

	rr := httptest.NewRecorder()
	protectedChain(engine).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestStateChangingVerbs(t *testing.T) {
	changing := []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	for _, m := range changing {
		if !stateChanging(m) {
			t.Fatalf("%s must be state-changing", m)
		}
	}
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		if stateChanging(m) {
			t.Fatalf("%s must not be state-changing", m)
		}
	}
}
