package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"insights/internal/auth"
	"insights/internal/logger"
)

// Response is a fully buffered HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse returns a response with Content-Length set.
func NewResponse(status int, contentType string, body []byte) *Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	return &Response{Status: status, Header: h, Body: body}
}

func (r *Response) Write(w http.ResponseWriter) {
	for k, v := range r.Header {
		w.Header()[k] = v
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(r.Body) > 0 {
		w.Write(r.Body)
	}
}

// HTTPError is an error with a status code. Message is shown to the caller, Detail and
// Cause are only logged.
type HTTPError struct {
	Code    int
	Message string
	Detail  string
	Cause   error
	Token   *auth.Token
	Device  *auth.Device
	// Context lists the ids of the artifacts the error passed through.
	Context []string
}

func NewError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// Errorf returns an error with a logged detail message.
func Errorf(code int, message string, format string, args ...any) *HTTPError {
	return &HTTPError{Code: code, Message: message, Detail: fmt.Sprintf(format, args...)}
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%d %s", e.Code, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *HTTPError) Unwrap() error { return e.Cause }

type errorBody struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Context []string `json:"context,omitempty"`
}

// WriteError writes err as a JSON error body. Errors that are not an *HTTPError are
// reported as 500 without their text.
func WriteError(w http.ResponseWriter, err error) {
	var he *HTTPError
	if !errors.As(err, &he) {
		he = &HTTPError{Code: http.StatusInternalServerError, Message: http.StatusText(http.StatusInternalServerError), Cause: err}
	}
	if he.Code >= http.StatusInternalServerError {
		logger.Error("%v (caller %v, context %v)", he, he.Token, he.Context)
	} else {
		logger.Debug("%v (caller %v, context %v)", he, he.Token, he.Context)
	}
	body, _ := json.Marshal(errorBody{Code: he.Code, Message: he.Message, Context: he.Context})
	NewResponse(he.Code, "application/json; charset=utf-8", body).Write(w)
}
