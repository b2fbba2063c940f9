package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"insights/pkg/config"
)

func TestAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	users := NewUsers([]config.UserConfig{{Name: "ada", Password: string(hash), Roles: []string{"analyst"}, Contexts: []string{"acme"}}})

	var tests = []struct {
		name     string
		user     string
		pass     string
		basic    bool
		wantName string
		wantErr  error
	}{
		{"no credentials", "", "", false, Anonymous, nil},
		{"valid", "ada", "s3cret", true, "ada", nil},
		{"wrong password", "ada", "guess", true, Anonymous, ErrBadCredentials},
		{"unknown user", "bob", "s3cret", true, Anonymous, ErrBadCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.basic {
				r.SetBasicAuth(tt.user, tt.pass)
			}
			token, err := users.Authenticate(r)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("\ngot error %v, wanted %v", err, tt.wantErr)
			}
			if token.String() != tt.wantName {
				t.Errorf("\ngot token %v, wanted %v", token, tt.wantName)
			}
		})
	}
}

func TestSave(t *testing.T) {
	users := NewUsers(nil)
	if err := users.Save("bob", "pw", "admin"); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetBasicAuth("bob", "pw")
	token, err := users.Authenticate(r)
	if err != nil || token == nil || len(token.Roles) != 1 || token.Roles[0] != "admin" {
		t.Errorf("\ngot token %+v, error %v", token, err)
	}
}

func TestDeviceFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if d := DeviceFromRequest(r); d != nil {
		t.Errorf("\ngot device %+v, wanted none", d)
	}
	r.AddCookie(&http.Cookie{Name: DeviceCookie, Value: "cookie-device"})
	if d := DeviceFromRequest(r); d == nil || d.ID != "cookie-device" {
		t.Errorf("\ngot device %+v, wanted cookie-device", d)
	}
	r.Header.Set(DeviceHeader, "header-device")
	if d := DeviceFromRequest(r); d == nil || d.ID != "header-device" {
		t.Errorf("\ngot device %+v, wanted header-device", d)
	}
}

func TestRules(t *testing.T) {
	rules := NewRules(map[string][]string{
		"insight.public":   {RoleGuest},
		"insight.members":  {RoleUser},
		"insight.revenue":  {"analyst"},
		"insight.invoices": {"analyst@acme"},
	})
	analyst := &Token{Name: "ada", Roles: []string{"analyst"}, Contexts: []string{"acme"}}
	member := &Token{Name: "bob"}

	var tests = []struct {
		name      string
		token     *Token
		context   string
		action    string
		allowed   bool
		potential bool
	}{
		{"guest action for anonymous", nil, "", "insight.public", true, true},
		{"user action for anonymous", nil, "", "insight.members", false, false},
		{"user action for member", member, "", "insight.members", true, true},
		{"role action for member", member, "", "insight.revenue", false, false},
		{"role action for analyst", analyst, "", "insight.revenue", true, true},
		{"role action in held context", analyst, "acme", "insight.revenue", true, true},
		{"role action in foreign context", analyst, "globex", "insight.revenue", false, true},
		{"scoped action without context", analyst, "", "insight.invoices", false, true},
		{"scoped action in its context", analyst, "acme", "insight.invoices", true, true},
		{"unknown action", analyst, "", "insight.nothing", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.HasPermission(tt.token, tt.context, tt.action); got != tt.allowed {
				t.Errorf("\ngot permission %v, wanted %v", got, tt.allowed)
			}
			if got := rules.HasPotentialPermission(tt.token, tt.action); got != tt.potential {
				t.Errorf("\ngot potential permission %v, wanted %v", got, tt.potential)
			}
		})
	}
}
