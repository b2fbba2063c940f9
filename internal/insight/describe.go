package insight

import (
	"net/http"

	"insights/internal/schema"
	"insights/internal/web"
)

type Parameter struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	List     bool   `json:"list,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// Description documents the endpoint of an insight.
type Description struct {
	ID          string      `json:"id"`
	Method      string      `json:"method"`
	Path        string      `json:"path"`
	Roles       []string    `json:"roles,omitempty"`
	Permissions []string    `json:"permissions"`
	Produces    []string    `json:"produces"`
	Parameters  []Parameter `json:"parameters"`
	Results     []Parameter `json:"results"`
}

func parameters(fields []schema.Field) []Parameter {
	params := make([]Parameter, 0, len(fields))
	for _, f := range fields {
		params = append(params, Parameter{Name: f.Name, Type: f.Kind.String(), List: f.List, Optional: f.Optional})
	}
	return params
}

// Describe documents the insight as mounted below mount.
func (a *Artifact) Describe(mount string) Description {
	return Description{
		ID:          a.id,
		Method:      http.MethodGet,
		Path:        web.JoinPath(mount, a.Path()),
		Roles:       a.cfg.Roles,
		Permissions: a.Permissions(),
		Produces:    web.Produces(),
		Parameters:  parameters(a.QueryParameters()),
		Results:     parameters(a.result().All()),
	}
}
