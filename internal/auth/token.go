// Package auth resolves callers and decides what they may run.
package auth

import (
	"errors"
	"net/http"
	"strings"
)

const (
	// Anonymous names the caller of a request without credentials.
	Anonymous = "$anonymous"
	// RoleGuest is held by every caller, authenticated or not.
	RoleGuest = "$guest"
	// RoleUser is held by every authenticated caller.
	RoleUser = "$user"
)

var ErrBadCredentials = errors.New("invalid user name or password")

// Token identifies an authenticated caller. A nil *Token is the anonymous caller.
type Token struct {
	Name  string
	Roles []string
	// Contexts are the security contexts the caller may act in.
	Contexts []string
}

func (t *Token) String() string {
	if t == nil {
		return Anonymous
	}
	return t.Name
}

// Device identifies the client the request came from.
type Device struct {
	ID string
}

const (
	DeviceHeader = "Device-Id"
	DeviceCookie = "device_id"
)

// DeviceFromRequest reads the device id from the Device-Id header, falling back to the
// device_id cookie. It returns nil when the client sent neither.
func DeviceFromRequest(r *http.Request) *Device {
	if id := strings.TrimSpace(r.Header.Get(DeviceHeader)); id != "" {
		return &Device{ID: id}
	}
	if c, err := r.Cookie(DeviceCookie); err == nil && c.Value != "" {
		return &Device{ID: c.Value}
	}
	return nil
}
