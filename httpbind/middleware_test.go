package httpbind

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sessionkit/sessionkit"
	"github.com/sessionkit/sessionkit/store"
)

// downAdapter simulates a full store outage.
type downAdapter struct{}

func (downAdapter) Has(context.Context, string) (bool, error) { return false, store.ErrUnavailable }
func (downAdapter) Get(context.Context, string) (store.Record, error) {
	return store.Record{}, store.ErrUnavailable
}
func (downAdapter) Set(context.Context, string, store.UserPayload, time.Time) (store.Record, error) {
	return store.Record{}, store.ErrUnavailable
}
func (downAdapter) Update(context.Context, string, store.UserPayload, time.Time) (store.Record, error) {
	return store.Record{}, store.ErrUnavailable
}
func (downAdapter) Remove(context.Context, string) (bool, error) { return false, store.ErrUnavailable }
func (downAdapter) SetUserSession(context.Context, string, string) error {
	return store.ErrUnavailable
}
func (downAdapter) UserActiveSession(context.Context, string) (string, error) {
	return "", store.ErrUnavailable
}
func (downAdapter) RemoveUserSession(context.Context, string) (bool, error) {
	return false, store.ErrUnavailable
}
func (downAdapter) RemoveUserSessionIf(context.Context, string, string) (bool, error) {
	return false, store.ErrUnavailable
}
func (downAdapter) ResetExpiration(context.Context, string) (bool, error) {
	return false, store.ErrUnavailable
}

func newFacadeTest(t *testing.T, adapter store.Adapter) (*sessionkit.AuthFacade, sessionkit.CookieBinding, *sessionkit.Coordinator) {
	t.Helper()

	builder := sessionkit.New()
	if adapter != nil {
		builder = builder.WithAdapter(adapter)
	} else {
		builder = builder.WithMemoryStore()
	}
	coord, err := builder.Build()
	if err != nil {
		t.Fatalf("build coordinator: %v", err)
	}

	binding := NewOpaqueCookie(CookieOptions{})
	facade, err := sessionkit.NewAuthFacade(coord, binding, sessionkit.DefaultConfig().Facade)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	return facade, binding, coord
}

func protectedHandler(facade *sessionkit.AuthFacade, binding sessionkit.CookieBinding) http.Handler {
	return RequireSession(facade, binding)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			http.Error(w, "payload missing from context", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("hello " + user.ID))
	}))
}

func TestMiddlewareAllowsValidSession(t *testing.T) {
	facade, binding, _ := newFacadeTest(t, nil)

	login := httptest.NewRecorder()
	loginReq := httptest.NewRequest(http.MethodPost, "/login", nil)
	if err := facade.Login(login, loginReq, store.UserPayload{ID: "u1"}, sessionkit.CreateOptions{}); err != nil {
		t.Fatalf("login: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	protectedHandler(facade, binding).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "hello u1" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestMiddlewareRedirectsWithoutSession(t *testing.T) {
	facade, binding, _ := newFacadeTest(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/account/settings?tab=profile", nil)
	rec := httptest.NewRecorder()
	protectedHandler(facade, binding).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "/login?redirectTo=") {
		t.Fatalf("unexpected redirect target %q", location)
	}
	if !strings.Contains(location, "%2Faccount%2Fsettings%3Ftab%3Dprofile") {
		t.Fatalf("original path not preserved: %q", location)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Fatalf("redirect must clear the session cookie: %+v", cookies)
	}
}

func TestMiddlewareAnswers503OnOutage(t *testing.T) {
	facade, binding, _ := newFacadeTest(t, downAdapter{})

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: strings.Repeat("A", 43)})

	rec := httptest.NewRecorder()
	protectedHandler(facade, binding).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("store outage must answer 503, got %d", rec.Code)
	}
	// A 5xx must not mutate the cookie: the session may still be fine.
	if cookies := rec.Result().Cookies(); len(cookies) != 0 {
		t.Fatalf("cookie must stay untouched on outage: %+v", cookies)
	}
}

func TestLogoutClearsAndRedirects(t *testing.T) {
	facade, _, coord := newFacadeTest(t, nil)

	login := httptest.NewRecorder()
	loginReq := httptest.NewRequest(http.MethodPost, "/login", nil)
	if err := facade.Login(login, loginReq, store.UserPayload{ID: "u1"}, sessionkit.CreateOptions{}); err != nil {
		t.Fatalf("login: %v", err)
	}
	sessionCookie := login.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(sessionCookie)
	rec := httptest.NewRecorder()

	decision, err := facade.Logout(rec, req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if decision.Kind != sessionkit.DecisionRedirect || decision.Location != "/login" {
		t.Fatalf("unexpected decision: %+v", decision)
	}

	cleared := rec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge != -1 {
		t.Fatalf("logout must clear the cookie: %+v", cleared)
	}

	if _, err := coord.Read(req.Context(), sessionCookie.Value); err == nil {
		t.Fatalf("session must be destroyed after logout")
	}

	// Idempotent: logging out again without a session still clears and
	// redirects.
	again := httptest.NewRecorder()
	decision, err = facade.Logout(again, httptest.NewRequest(http.MethodPost, "/logout", nil))
	if err != nil || decision.Kind != sessionkit.DecisionRedirect {
		t.Fatalf("repeat logout: decision=%+v err=%v", decision, err)
	}
}

func TestRotateSessionRebindsCookie(t *testing.T) {
	facade, binding, _ := newFacadeTest(t, nil)

	login := httptest.NewRecorder()
	loginReq := httptest.NewRequest(http.MethodPost, "/login", nil)
	if err := facade.Login(login, loginReq, store.UserPayload{ID: "u1"}, sessionkit.CreateOptions{}); err != nil {
		t.Fatalf("login: %v", err)
	}
	oldCookie := login.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/promote", nil)
	req.AddCookie(oldCookie)
	rec := httptest.NewRecorder()

	patch := store.UserPayload{Attrs: map[string]any{"role": "admin"}}
	if err := facade.RotateSession(rec, req, patch, time.Time{}); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	newCookie := rec.Result().Cookies()
	if len(newCookie) != 1 || newCookie[0].Value == oldCookie.Value {
		t.Fatalf("rotation must rebind a fresh id: %+v", newCookie)
	}

	// Old id is dead, new id carries the patch.
	reqOld := httptest.NewRequest(http.MethodGet, "/account", nil)
	reqOld.AddCookie(oldCookie)
	recOld := httptest.NewRecorder()
	protectedHandler(facade, binding).ServeHTTP(recOld, reqOld)
	if recOld.Code != http.StatusFound {
		t.Fatalf("old id must redirect after rotation, got %d", recOld.Code)
	}

	reqNew := httptest.NewRequest(http.MethodGet, "/account", nil)
	reqNew.AddCookie(newCookie[0])
	recNew := httptest.NewRecorder()
	protectedHandler(facade, binding).ServeHTTP(recNew, reqNew)
	if recNew.Code != http.StatusOK {
		t.Fatalf("new id must authenticate, got %d", recNew.Code)
	}
}
