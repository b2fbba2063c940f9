package web

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"insights/internal/logger"
)

// Handler handles a request it recognises. A nil response with a nil error means the
// request is not for this handler.
type Handler interface {
	Handle(r *http.Request) (*Response, error)
}

type HandlerFunc func(r *http.Request) (*Response, error)

func (f HandlerFunc) Handle(r *http.Request) (*Response, error) { return f(r) }

// Filter decides whether a subscription sees a request.
type Filter func(r *http.Request) bool

// PrefixFilter accepts requests for prefix and everything below it.
func PrefixFilter(prefix string) Filter {
	prefix = strings.TrimSuffix(prefix, "/")
	return func(r *http.Request) bool {
		p := r.URL.Path
		return prefix == "" || p == prefix || strings.HasPrefix(p, prefix+"/")
	}
}

// Subscription is a handler registered on a dispatcher.
type Subscription struct {
	d       *Dispatcher
	handler Handler
	filters []Filter
}

func (s *Subscription) accepts(r *http.Request) bool {
	for _, f := range s.filters {
		if !f(r) {
			return false
		}
	}
	return true
}

// Unsubscribe removes the subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for i, sub := range s.d.subs {
		if sub == s {
			s.d.subs = append(s.d.subs[:i:i], s.d.subs[i+1:]...)
			return
		}
	}
}

// Dispatcher offers each request to its subscriptions in order until one claims it.
type Dispatcher struct {
	mu   sync.RWMutex
	subs []*Subscription
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Subscribe(h Handler, filters ...Filter) *Subscription {
	s := &Subscription{d: d, handler: h, filters: filters}
	d.mu.Lock()
	d.subs = append(d.subs, s)
	d.mu.Unlock()
	return s
}

// Len returns the number of subscriptions.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Dispatch returns the response of the first subscription that claims r, or nil.
func (d *Dispatcher) Dispatch(r *http.Request) (*Response, error) {
	d.mu.RLock()
	subs := append([]*Subscription(nil), d.subs...)
	d.mu.RUnlock()
	for _, s := range subs {
		if !s.accepts(r) {
			continue
		}
		res, err := s.handler.Handle(r)
		if err != nil || res != nil {
			return res, err
		}
	}
	return nil, nil
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := d.Dispatch(r)
	switch {
	case err != nil:
		WriteError(w, err)
	case res == nil:
		WriteError(w, NewError(http.StatusNotFound, "No handler found for "+r.URL.Path))
	default:
		res.Write(w)
		logger.Debug("%s %s -> %d in %v", r.Method, r.URL.Path, res.Status, time.Since(start))
	}
}
