package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
)

// PathTemplate matches a path against a template with {name} variables.
type PathTemplate struct {
	template string
	route    *mux.Route
}

func NewPathTemplate(template string) (*PathTemplate, error) {
	template = "/" + strings.Trim(template, "/")
	route := mux.NewRouter().NewRoute().Path(template)
	if err := route.GetError(); err != nil {
		return nil, err
	}
	return &PathTemplate{template: template, route: route}, nil
}

func (p *PathTemplate) String() string { return p.template }

// Match returns the template variables when path matches.
func (p *PathTemplate) Match(path string) (map[string]string, bool) {
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/" + strings.Trim(path, "/")}}
	var m mux.RouteMatch
	if !p.route.Match(req, &m) {
		return nil, false
	}
	if m.Vars == nil {
		m.Vars = map[string]string{}
	}
	return m.Vars, true
}

// JoinPath joins path segments with single slashes, keeping a leading slash.
func JoinPath(parts ...string) string {
	var segs []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			segs = append(segs, p)
		}
	}
	return "/" + strings.Join(segs, "/")
}
