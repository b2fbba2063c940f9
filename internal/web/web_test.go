package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"insights/internal/auth"
	"insights/pkg/config"
)

func TestNegotiate(t *testing.T) {
	var tests = []struct {
		accept string
		want   string
		ok     bool
	}{
		{"", "application/json", true},
		{"application/xml", "application/xml", true},
		{"text/html, application/xml;q=0.9, */*;q=0.8", "application/xml", true},
		{"application/json;q=0.5, application/xml", "application/xml", true},
		{"*/*", "application/json", true},
		{"application/*", "application/json", true},
		{"text/csv", "", false},
		{"application/xml;q=0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			got, ok := Negotiate(tt.accept, "application/json")
			if got != tt.want || ok != tt.ok {
				t.Errorf("\ngot %q %v, wanted %q %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMarshalUnsupported(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "text/csv")
	_, _, err := Marshal(r, struct{}{}, "application/json")
	var he *HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Errorf("\ngot %v, wanted a 500 HTTPError", err)
	}
}

func TestAttachment(t *testing.T) {
	var tests = []struct {
		header string
		want   string
		ok     bool
	}{
		{"", "", false},
		{"inline", "", false},
		{"attachment", `attachment;filename="unnamed"`, true},
		{"attachment;filename=revenue.json", `attachment;filename="revenue.json"`, true},
		{`attachment; filename="../q3 report?.xml"`, `attachment;filename="..q3report.xml"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Accept-Content-Disposition", tt.header)
			}
			got, ok := Attachment(h)
			if got != tt.want || ok != tt.ok {
				t.Errorf("\ngot %q %v, wanted %q %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestQueryToHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?header:Accept=application/xml&limit=1", nil)
	r.Header.Set("Accept", "application/json")
	QueryToHeader(r, r.URL.Query())
	if got := r.Header.Get("Accept"); got != "application/xml" {
		t.Errorf("\ngot Accept %q, wanted application/xml", got)
	}
	if got := r.Header.Get("Limit"); got != "" {
		t.Errorf("\nplain query parameter copied into headers: %q", got)
	}
}

func TestPathTemplate(t *testing.T) {
	var tests = []struct {
		template string
		path     string
		vars     map[string]string
		ok       bool
	}{
		{"revenue", "revenue", map[string]string{}, true},
		{"/stats/revenue", "/stats/revenue/", map[string]string{}, true},
		{"stats/{contextId}/revenue", "stats/acme/revenue", map[string]string{"contextId": "acme"}, true},
		{"stats/{contextId}/revenue", "stats/revenue", nil, false},
		{"revenue", "revenue/extra", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.template+" "+tt.path, func(t *testing.T) {
			p, err := NewPathTemplate(tt.template)
			if err != nil {
				t.Fatal(err)
			}
			vars, ok := p.Match(tt.path)
			if ok != tt.ok || !reflect.DeepEqual(vars, tt.vars) {
				t.Errorf("\ngot %v %v, wanted %v %v", vars, ok, tt.vars, tt.ok)
			}
		})
	}
}

func TestJoinPath(t *testing.T) {
	if got := JoinPath("/", "api/", "", "/stats"); got != "/api/stats" {
		t.Errorf("\ngot %q, wanted /api/stats", got)
	}
	if got := JoinPath(""); got != "/" {
		t.Errorf("\ngot %q, wanted /", got)
	}
}

func fixed(body string) Handler {
	return HandlerFunc(func(r *http.Request) (*Response, error) {
		return NewResponse(http.StatusOK, "text/plain", []byte(body)), nil
	})
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(HandlerFunc(func(r *http.Request) (*Response, error) { return nil, nil }))
	a := d.Subscribe(fixed("a"), PrefixFilter("/api/a"))
	d.Subscribe(fixed("b"), PrefixFilter("/api/b/"))
	d.Subscribe(HandlerFunc(func(r *http.Request) (*Response, error) {
		return nil, &HTTPError{Code: http.StatusTeapot, Message: "teapot", Context: []string{"pot"}}
	}), PrefixFilter("/api/tea"))

	var tests = []struct {
		path   string
		status int
		body   string
	}{
		{"/api/a", http.StatusOK, "a"},
		{"/api/a/x", http.StatusOK, "a"},
		{"/api/ab", http.StatusNotFound, ""},
		{"/api/b/x", http.StatusOK, "b"},
		{"/api/tea", http.StatusTeapot, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			d.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.status {
				t.Errorf("\ngot status %d, wanted %d", w.Code, tt.status)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("\ngot body %q, wanted %q", w.Body.String(), tt.body)
			}
		})
	}

	w := httptest.NewRecorder()
	d.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tea", nil))
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Message != "teapot" || !reflect.DeepEqual(body.Context, []string{"pot"}) {
		t.Errorf("\ngot error body %s (%v)", w.Body.String(), err)
	}

	a.Unsubscribe()
	a.Unsubscribe()
	if d.Len() != 3 {
		t.Errorf("\ngot %d subscriptions, wanted 3", d.Len())
	}
	w = httptest.NewRecorder()
	d.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/a", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("\ngot status %d after unsubscribe, wanted 404", w.Code)
	}
}

func TestWriteErrorHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("pq: password authentication failed"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("\ngot status %d, wanted 500", w.Code)
	}
	var body errorBody
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Message != "Internal Server Error" {
		t.Errorf("\ngot message %q", body.Message)
	}
}

type roles map[string]bool

func (r roles) HasRole(token *auth.Token, role string) bool { return r[role] && token != nil }

func TestApplicationChecks(t *testing.T) {
	app := NewApplication(config.ApplicationConfig{ID: "shop", Path: "api/", Offline: true})
	if app.ServerPath != "/api" {
		t.Errorf("\ngot server path %q", app.ServerPath)
	}
	r := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	var he *HTTPError
	if err := app.CheckOffline(r); !errors.As(err, &he) || he.Code != http.StatusServiceUnavailable {
		t.Errorf("\ngot %v, wanted 503", err)
	}
	app.SetOffline(false)
	if err := app.CheckOffline(r); err != nil {
		t.Errorf("\ngot unexpected error: \"%v\"", err)
	}

	app.Roles = roles{"analyst": true}
	var tests = []struct {
		name  string
		token *auth.Token
		roles []string
		code  int
	}{
		{"no roles configured", nil, nil, 0},
		{"anonymous", nil, []string{"analyst"}, http.StatusUnauthorized},
		{"missing role", &auth.Token{Name: "bob"}, []string{"admin"}, http.StatusForbidden},
		{"held role", &auth.Token{Name: "ada"}, []string{"admin", "analyst"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := app.CheckRole(tt.token, tt.roles)
			code := 0
			if errors.As(err, &he) {
				code = he.Code
			}
			if code != tt.code {
				t.Errorf("\ngot %v, wanted status %d", err, tt.code)
			}
		})
	}

	r.Header.Set(auth.DeviceHeader, "phone")
	if d := app.Device(r, nil); d == nil || d.ID != "phone" {
		t.Errorf("\ngot device %+v", d)
	}
	if token, err := app.Token(r); token != nil || err != nil {
		t.Errorf("\ngot %v %v without an authenticator", token, err)
	}
}
