package web

import (
	"encoding/json"
	"encoding/xml"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Marshaller encodes a value for one content type.
type Marshaller func(v any) ([]byte, error)

var marshallers = map[string]Marshaller{
	"application/json": json.Marshal,
	"application/xml":  xml.Marshal,
}

// Produces lists the content types responses can be negotiated to.
func Produces() []string {
	types := make([]string, 0, len(marshallers))
	for t := range marshallers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

type accepted struct {
	mediaType string
	q         float64
}

// Negotiate picks the content type for an Accept header. An empty header or a wildcard
// resolves to fallback.
func Negotiate(accept, fallback string) (string, bool) {
	if strings.TrimSpace(accept) == "" {
		return fallback, true
	}
	var candidates []accepted
	for _, part := range strings.Split(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		if q > 0 {
			candidates = append(candidates, accepted{mt, q})
		}
	}
	slices.SortStableFunc(candidates, func(a, b accepted) int {
		switch {
		case a.q > b.q:
			return -1
		case a.q < b.q:
			return 1
		}
		return 0
	})
	for _, c := range candidates {
		if _, ok := marshallers[c.mediaType]; ok {
			return c.mediaType, true
		}
		if c.mediaType == "*/*" || (c.mediaType == "application/*" && strings.HasPrefix(fallback, "application/")) {
			return fallback, true
		}
	}
	return "", false
}

// Marshal negotiates a content type for r and encodes v with it.
func Marshal(r *http.Request, v any, fallback string) (string, []byte, error) {
	accept := r.Header.Get("Accept")
	contentType, ok := Negotiate(accept, fallback)
	if !ok {
		return "", nil, NewError(http.StatusInternalServerError, "Unsupported response content types: "+accept)
	}
	body, err := marshallers[contentType](v)
	if err != nil {
		return "", nil, err
	}
	return contentType, body, nil
}

var unsafeFilename = regexp.MustCompile(`[^\w.-]+`)

// Attachment returns the Content-Disposition a caller asked for with the
// Accept-Content-Disposition header, if any.
func Attachment(h http.Header) (string, bool) {
	v := h.Get("Accept-Content-Disposition")
	if v == "" {
		return "", false
	}
	disposition, params, err := mime.ParseMediaType(v)
	if err != nil || !strings.EqualFold(disposition, "attachment") {
		return "", false
	}
	name, ok := params["filename"]
	if ok {
		name = unsafeFilename.ReplaceAllString(name, "")
	} else {
		name = "unnamed"
	}
	return `attachment;filename="` + name + `"`, true
}

// QueryToHeader copies header:<Name> query parameters into the request headers.
func QueryToHeader(r *http.Request, query url.Values) {
	for k, values := range query {
		name, ok := strings.CutPrefix(k, "header:")
		if !ok || name == "" {
			continue
		}
		r.Header.Del(name)
		for _, v := range values {
			r.Header.Add(name, v)
		}
	}
}
