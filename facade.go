package sessionkit

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/sessionkit/sessionkit/store"
)

// CookieBinding maps session ids to and from the transport. The facade only
// consumes this interface; implementations live in package httpbind (opaque
// cookie, signed cookie) or in the host application.
type CookieBinding interface {
	// SessionID extracts the session id carried by the request. ok is false
	// when the request carries none, or an invalid/tampered one.
	SessionID(r *http.Request) (sessionID string, ok bool)

	// SetCookie binds sessionID into the response.
	SetCookie(w http.ResponseWriter, sessionID string)

	// ClearCookie expires the session cookie in the response.
	ClearCookie(w http.ResponseWriter)
}

// DecisionKind discriminates a facade outcome.
type DecisionKind int

const (
	// DecisionAllow carries the authenticated user payload.
	DecisionAllow DecisionKind = iota
	// DecisionRedirect sends the client to the login page with the cookie
	// cleared.
	DecisionRedirect
	// DecisionError reports a store outage: 5xx, no cookie mutation.
	DecisionError
)

// Decision is the facade's transport-level verdict for one request. Only this
// type crosses from session logic into HTTP handling; the coordinator's
// sentinel errors never reach handlers directly.
type Decision struct {
	Kind     DecisionKind
	User     store.UserPayload // set for DecisionAllow
	Location string            // set for DecisionRedirect
	Status   int               // suggested HTTP status
}

// AuthFacade sequences coordinator calls with a CookieBinding and converts
// failures into redirect or error decisions. It is the only layer allowed to
// translate the error taxonomy into transport effects.
type AuthFacade struct {
	coord   *Coordinator
	binding CookieBinding
	cfg     FacadeConfig
}

// NewAuthFacade wires a facade. The binding decides how session ids travel;
// cfg decides where unauthenticated users are sent.
func NewAuthFacade(coord *Coordinator, binding CookieBinding, cfg FacadeConfig) (*AuthFacade, error) {
	if coord == nil {
		return nil, errors.New("coordinator required")
	}
	if binding == nil {
		return nil, errors.New("cookie binding required")
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.RedirectParam == "" {
		cfg.RedirectParam = "redirectTo"
	}

	return &AuthFacade{coord: coord, binding: binding, cfg: cfg}, nil
}

// Login creates a session for user and binds its id into the response.
func (f *AuthFacade) Login(w http.ResponseWriter, r *http.Request, user store.UserPayload, opts CreateOptions) error {
	sessionID, err := f.coord.Create(r.Context(), user, opts)
	if err != nil {
		return err
	}

	f.binding.SetCookie(w, sessionID)
	return nil
}

// RequireSession authenticates the request.
//
// A valid session yields DecisionAllow with the payload. A missing, expired,
// or superseded session yields DecisionRedirect to
// "<loginPath>?<redirectParam>=<originalPath>" — the caller must also clear
// the cookie. A store outage yields DecisionError with a 5xx status and no
// cookie mutation, so a Redis blip never logs anyone out.
func (f *AuthFacade) RequireSession(r *http.Request) Decision {
	sessionID, ok := f.binding.SessionID(r)
	if !ok {
		return f.redirectDecision(r)
	}

	user, err := f.coord.Read(r.Context(), sessionID)
	switch {
	case err == nil:
		return Decision{Kind: DecisionAllow, User: user, Status: http.StatusOK}
	case errors.Is(err, ErrUnauthenticated):
		return f.redirectDecision(r)
	default:
		return Decision{Kind: DecisionError, Status: http.StatusServiceUnavailable}
	}
}

// Logout destroys the request's session (if any), clears the cookie, and
// reports the login page as the post-logout location. Idempotent: logging out
// without a session still clears and redirects.
func (f *AuthFacade) Logout(w http.ResponseWriter, r *http.Request) (Decision, error) {
	if sessionID, ok := f.binding.SessionID(r); ok {
		if err := f.coord.Destroy(r.Context(), sessionID); err != nil {
			return Decision{Kind: DecisionError, Status: http.StatusServiceUnavailable}, err
		}
	}

	f.binding.ClearCookie(w)
	return Decision{
		Kind:     DecisionRedirect,
		Location: f.cfg.LoginPath,
		Status:   http.StatusFound,
	}, nil
}

// UpdateSession merges patch into the current session's payload, keeping the
// same transport id.
func (f *AuthFacade) UpdateSession(r *http.Request, patch store.UserPayload, expiresAt time.Time) (store.UserPayload, error) {
	sessionID, ok := f.binding.SessionID(r)
	if !ok {
		return store.UserPayload{}, ErrUnauthenticated
	}
	return f.coord.Update(r.Context(), sessionID, patch, expiresAt)
}

// RotateSession swaps the session's transport id (e.g. on privilege change),
// merging patch into the payload, and rebinds the new id into the response.
func (f *AuthFacade) RotateSession(w http.ResponseWriter, r *http.Request, patch store.UserPayload, expiresAt time.Time) error {
	sessionID, ok := f.binding.SessionID(r)
	if !ok {
		return ErrUnauthenticated
	}

	newID, err := f.coord.Rotate(r.Context(), sessionID, patch, expiresAt)
	if err != nil {
		return err
	}

	f.binding.SetCookie(w, newID)
	return nil
}

func (f *AuthFacade) redirectDecision(r *http.Request) Decision {
	target := f.cfg.LoginPath + "?" + f.cfg.RedirectParam + "=" + url.QueryEscape(originalPath(r))
	return Decision{
		Kind:     DecisionRedirect,
		Location: target,
		Status:   http.StatusFound,
	}
}

func originalPath(r *http.Request) string {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	return path
}
