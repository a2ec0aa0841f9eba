// Package httpbind carries session ids over HTTP: cookie bindings consumed by
// the facade, and net/http middleware that applies facade decisions.
package httpbind

import (
	"net/http"
	"time"

	"github.com/sessionkit/sessionkit/token"
)

// DefaultCookieName follows the __Host- convention: secure, host-locked,
// path=/ enforced by the browser.
const DefaultCookieName = "__Host-session"

// CookieOptions shapes the session cookie.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string // usually empty for __Host- cookies
	Secure   bool
	SameSite http.SameSite

	// MaxAge is the cookie lifetime in seconds. Zero issues a session
	// cookie that dies with the browser, which suits sliding expiration:
	// the store owns the real deadline.
	MaxAge int
}

func (o CookieOptions) normalize() CookieOptions {
	if o.Name == "" {
		o.Name = DefaultCookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// OpaqueCookie carries the raw session id as the cookie value. This is the
// default binding: the id is already unguessable, so the cookie needs no
// further protection beyond HttpOnly/Secure.
type OpaqueCookie struct {
	opts CookieOptions
}

// NewOpaqueCookie returns the plain binding.
func NewOpaqueCookie(opts CookieOptions) *OpaqueCookie {
	return &OpaqueCookie{opts: opts.normalize()}
}

func (c *OpaqueCookie) SessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.opts.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c *OpaqueCookie) SetCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, c.cookie(sessionID, c.opts.MaxAge, time.Time{}))
}

func (c *OpaqueCookie) ClearCookie(w http.ResponseWriter) {
	// Max-Age=0 plus a past Expires covers clients that honor only one.
	http.SetCookie(w, c.cookie("", -1, time.Unix(0, 0)))
}

func (c *OpaqueCookie) cookie(value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     c.opts.Name,
		Value:    value,
		Path:     c.opts.Path,
		Domain:   c.opts.Domain,
		MaxAge:   maxAge,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: c.opts.SameSite,
	}
}

// SignedCookie wraps the session id in a signed token before it leaves the
// server, so a tampered cookie is rejected without a store round-trip. An
// unverifiable cookie reads as "no session".
type SignedCookie struct {
	inner  *OpaqueCookie
	binder *token.Binder
}

// NewSignedCookie returns the tamper-evident binding.
func NewSignedCookie(opts CookieOptions, binder *token.Binder) *SignedCookie {
	return &SignedCookie{inner: NewOpaqueCookie(opts), binder: binder}
}

func (c *SignedCookie) SessionID(r *http.Request) (string, bool) {
	value, ok := c.inner.SessionID(r)
	if !ok {
		return "", false
	}

	sessionID, err := c.binder.Verify(value)
	if err != nil {
		return "", false
	}
	return sessionID, true
}

func (c *SignedCookie) SetCookie(w http.ResponseWriter, sessionID string) {
	signed, err := c.binder.Mint(sessionID)
	if err != nil {
		// Never fall back to the raw id on a signing failure; an absent
		// cookie just means the user logs in again.
		return
	}
	c.inner.SetCookie(w, signed)
}

func (c *SignedCookie) ClearCookie(w http.ResponseWriter) {
	c.inner.ClearCookie(w)
}
