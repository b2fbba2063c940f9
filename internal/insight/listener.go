package insight

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"insights/internal/auth"
	"insights/internal/web"
)

const fallbackContentType = "application/json"

// Listener serves one mounted insight. It keeps no state between requests.
type Listener struct {
	app        *web.Application
	artifact   *Artifact
	parentPath string
	template   *web.PathTemplate
	// withoutContext matches the path with the context segment left out, so such requests
	// can be told apart from requests for another endpoint.
	withoutContext *web.PathTemplate
}

func newListener(app *web.Application, a *Artifact, parentPath string) (*Listener, error) {
	tpl, err := web.NewPathTemplate(a.Path())
	if err != nil {
		return nil, err
	}
	l := &Listener{app: app, artifact: a, parentPath: strings.TrimSuffix(parentPath, "/"), template: tpl}
	if a.HasSecurityContextFilter() {
		if l.withoutContext, err = web.NewPathTemplate(web.JoinPath(a.cfg.BasePath, a.Name())); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// match strips the mount point and matches the rest of the path. missingContext is set
// when only the path without the context segment matched.
func (l *Listener) match(path string) (vars map[string]string, missingContext bool, ok bool) {
	if path != l.parentPath && !strings.HasPrefix(path, l.parentPath+"/") {
		return nil, false, false
	}
	rest := path[len(l.parentPath):]
	if vars, ok := l.template.Match(rest); ok {
		return vars, false, true
	}
	if l.withoutContext != nil {
		if _, ok := l.withoutContext.Match(rest); ok {
			return nil, true, true
		}
	}
	return nil, false, false
}

// Handle returns nil for requests that are not a GET of this insight.
func (l *Listener) Handle(r *http.Request) (res *web.Response, err error) {
	if r.Method != http.MethodGet {
		return nil, nil
	}
	vars, missingContext, ok := l.match(r.URL.Path)
	if !ok {
		return nil, nil
	}

	a := l.artifact
	var token *auth.Token
	var device *auth.Device
	defer func() {
		if err != nil {
			err = l.translate(err, token, device)
		}
	}()

	if err := l.app.CheckOffline(r); err != nil {
		return nil, err
	}
	query := r.URL.Query()
	if token, err = l.app.Token(r); err != nil {
		return nil, err
	}
	device = l.app.Device(r, token)

	if err := l.app.CheckRole(token, a.cfg.Roles); err != nil {
		return nil, err
	}
	if limited := l.app.CheckRateLimits(a.id, token, device, r); limited != nil {
		return limited, nil
	}

	contextName := a.securityContextName()
	var contextID string
	if contextName != "" {
		contextID = vars["contextId"]
	}
	if missingContext || (l.app.Permissions != nil && contextName == "" && a.HasSecurityContextFilter()) {
		return nil, web.NewError(http.StatusBadRequest, "A security context id is required")
	}
	if l.app.Permissions != nil {
		action := a.PermissionAction()
		if !l.app.Permissions.HasPermission(token, contextID, action) {
			allowed := false
			// Insights scoped to a security context never fall back to potential permissions.
			if a.cfg.SecurityContextField == "" && l.app.PotentialPermission != nil {
				allowed = l.app.PotentialPermission.HasPotentialPermission(token, action)
			}
			if !allowed {
				return nil, web.Unauthorized(token, "User '%v' does not have permission to run insight %s", token, a.id)
			}
		}
	}

	in, err := a.inputFromQuery(query, contextName, contextID)
	if err != nil {
		return nil, err
	}
	out, err := a.Execute(r.Context(), in)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return web.NewResponse(http.StatusOK, "", nil), nil
	}

	if a.cfg.HeaderAsQueryParameter() {
		web.QueryToHeader(r, query)
	}
	contentType, body, err := web.Marshal(r, out, fallbackContentType)
	if err != nil {
		return nil, err
	}
	res = web.NewResponse(http.StatusOK, contentType+"; charset=utf-8", body)
	if disposition, ok := web.Attachment(r.Header); ok {
		res.Header.Set("Content-Disposition", disposition)
	}
	return res, nil
}

// translate adds the caller and the insight to HTTP errors and hides anything else
// behind a 500.
func (l *Listener) translate(err error, token *auth.Token, device *auth.Device) error {
	var he *web.HTTPError
	if errors.As(err, &he) {
		if he.Token == nil {
			he.Token = token
		}
		if he.Device == nil {
			he.Device = device
		}
		he.Context = append(he.Context, l.artifact.id)
		return he
	}
	return &web.HTTPError{
		Code:    http.StatusInternalServerError,
		Message: "Could not execute service",
		Detail:  "Could not execute service: " + l.artifact.id,
		Cause:   err,
		Token:   token,
		Device:  device,
		Context: []string{l.artifact.id},
	}
}

func first(q url.Values, name string) (string, bool) {
	if v := q[name]; len(v) > 0 {
		return v[0], true
	}
	return "", false
}

func invalid(name, value string, err error) *web.HTTPError {
	return &web.HTTPError{Code: http.StatusBadRequest, Message: "Invalid value for " + name + ": " + value, Cause: err}
}

// inputFromQuery reads the input from query parameters. Scalars take the first value.
// The security context filter only takes its value from the path.
func (a *Artifact) inputFromQuery(q url.Values, contextName, contextID string) (Input, error) {
	var in Input
	if v, ok := first(q, "limit"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return in, invalid("limit", v, err)
		}
		in.Limit = &n
	}
	if v, ok := first(q, "offset"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return in, invalid("offset", v, err)
		}
		in.Offset = &n
	}
	if v, ok := first(q, "totalCount"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return in, invalid("totalCount", v, err)
		}
		in.TotalCount = b
	}
	in.OrderBy = q["orderBy"]

	group := a.filterGroup()
	if group == nil {
		return in, nil
	}
	in.Filter = make(map[string][]any)
	for _, f := range group.Fields {
		raw := q[f.Name]
		if f.Name == contextName {
			raw = nil
			if contextID != "" {
				raw = []string{contextID}
			}
		}
		if len(raw) == 0 {
			continue
		}
		if !f.List {
			raw = raw[:1]
		}
		values := make([]any, 0, len(raw))
		for _, s := range raw {
			v, err := f.Kind.Parse(s)
			if err != nil {
				return in, invalid(f.Name, s, err)
			}
			values = append(values, v)
		}
		in.Filter[f.Name] = values
	}
	return in, nil
}
