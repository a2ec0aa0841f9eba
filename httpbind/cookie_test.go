package httpbind

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sessionkit/sessionkit/token"
)

func recordedCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected exactly one cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func TestOpaqueCookieRoundtrip(t *testing.T) {
	binding := NewOpaqueCookie(CookieOptions{Secure: true})

	rec := httptest.NewRecorder()
	binding.SetCookie(rec, "sid-123")

	c := recordedCookie(t, rec)
	if c.Name != DefaultCookieName || c.Value != "sid-123" {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if !c.HttpOnly || !c.Secure || c.Path != "/" {
		t.Fatalf("cookie must be HttpOnly, Secure, Path=/: %+v", c)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)

	got, ok := binding.SessionID(req)
	if !ok || got != "sid-123" {
		t.Fatalf("extract: ok=%v got=%q", ok, got)
	}
}

func TestOpaqueCookieClearExpiresInThePast(t *testing.T) {
	binding := NewOpaqueCookie(CookieOptions{})

	rec := httptest.NewRecorder()
	binding.ClearCookie(rec)

	c := recordedCookie(t, rec)
	if c.MaxAge != -1 {
		t.Fatalf("clear must set Max-Age<0, got %d", c.MaxAge)
	}
	if !c.Expires.Before(time.Now()) {
		t.Fatalf("clear must set Expires in the past, got %v", c.Expires)
	}
	if c.Value != "" {
		t.Fatalf("cleared cookie must carry no value")
	}
}

func TestOpaqueCookieMissing(t *testing.T) {
	binding := NewOpaqueCookie(CookieOptions{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := binding.SessionID(req); ok {
		t.Fatalf("no cookie must read as no session")
	}
}

func newBinderTest(t *testing.T) *token.Binder {
	t.Helper()

	b, err := token.NewBinder(token.Config{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("new binder: %v", err)
	}
	return b
}

func TestSignedCookieRoundtrip(t *testing.T) {
	binding := NewSignedCookie(CookieOptions{}, newBinderTest(t))

	rec := httptest.NewRecorder()
	binding.SetCookie(rec, "sid-123")

	c := recordedCookie(t, rec)
	if c.Value == "sid-123" {
		t.Fatalf("signed binding must not expose the raw session id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)

	got, ok := binding.SessionID(req)
	if !ok || got != "sid-123" {
		t.Fatalf("extract: ok=%v got=%q", ok, got)
	}
}

func TestSignedCookieRejectsTampering(t *testing.T) {
	binding := NewSignedCookie(CookieOptions{}, newBinderTest(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "raw-session-id"})

	if _, ok := binding.SessionID(req); ok {
		t.Fatalf("unsigned value must read as no session")
	}
}
