// Package web hosts artifacts in an application: a dispatcher for their endpoints plus
// the security and availability checks they share.
package web

import (
	"net/http"
	"sync/atomic"

	"insights/internal/auth"
	"insights/pkg/config"
)

type Authenticator interface {
	// Authenticate returns a nil token for anonymous requests.
	Authenticate(r *http.Request) (*auth.Token, error)
}

type RoleHandler interface {
	HasRole(token *auth.Token, role string) bool
}

type PermissionHandler interface {
	HasPermission(token *auth.Token, context, action string) bool
}

type PotentialPermissionHandler interface {
	HasPotentialPermission(token *auth.Token, action string) bool
}

// RateLimiter returns a response to send instead of running the request, or nil.
type RateLimiter interface {
	Check(action string, token *auth.Token, device *auth.Device, r *http.Request) *Response
}

// Application is the web application artifacts are mounted in. Optional handlers that are
// nil disable the corresponding check.
type Application struct {
	ID         string
	ServerPath string

	Authenticator       Authenticator
	Roles               RoleHandler
	Permissions         PermissionHandler
	PotentialPermission PotentialPermissionHandler
	RateLimiter         RateLimiter
	// Devices resolves the client device, auth.DeviceFromRequest when nil.
	Devices func(r *http.Request, token *auth.Token) *auth.Device

	Dispatcher *Dispatcher
	offline    atomic.Bool
}

func NewApplication(cfg config.ApplicationConfig) *Application {
	a := &Application{
		ID:         cfg.ID,
		ServerPath: JoinPath(cfg.Path),
		Dispatcher: NewDispatcher(),
	}
	a.offline.Store(cfg.Offline)
	return a
}

func (a *Application) SetOffline(offline bool) { a.offline.Store(offline) }

func (a *Application) Offline() bool { return a.offline.Load() }

// CheckOffline fails with 503 while the application is offline.
func (a *Application) CheckOffline(r *http.Request) error {
	if a.Offline() {
		return Errorf(http.StatusServiceUnavailable, "The application is offline", "%s %s rejected, %s is offline", r.Method, r.URL.Path, a.ID)
	}
	return nil
}

// Token authenticates the request. Rejected credentials fail with 401.
func (a *Application) Token(r *http.Request) (*auth.Token, error) {
	if a.Authenticator == nil {
		return nil, nil
	}
	token, err := a.Authenticator.Authenticate(r)
	if err != nil {
		return nil, &HTTPError{Code: http.StatusUnauthorized, Message: "Authentication failed", Cause: err}
	}
	return token, nil
}

func (a *Application) Device(r *http.Request, token *auth.Token) *auth.Device {
	if a.Devices != nil {
		return a.Devices(r, token)
	}
	return auth.DeviceFromRequest(r)
}

// CheckRole passes when the token holds at least one of roles, or roles is empty.
func (a *Application) CheckRole(token *auth.Token, roles []string) error {
	if len(roles) == 0 || a.Roles == nil {
		return nil
	}
	for _, role := range roles {
		if a.Roles.HasRole(token, role) {
			return nil
		}
	}
	return Unauthorized(token, "User '%v' does not have any of the roles %v", token, roles)
}

func (a *Application) CheckRateLimits(action string, token *auth.Token, device *auth.Device, r *http.Request) *Response {
	if a.RateLimiter == nil {
		return nil
	}
	return a.RateLimiter.Check(action, token, device, r)
}

// Unauthorized returns 401 for anonymous callers and 403 for authenticated ones.
func Unauthorized(token *auth.Token, format string, args ...any) *HTTPError {
	code, message := http.StatusForbidden, "Forbidden"
	if token == nil {
		code, message = http.StatusUnauthorized, "Unauthorized"
	}
	e := Errorf(code, message, format, args...)
	e.Token = token
	return e
}

func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Dispatcher.ServeHTTP(w, r)
}
