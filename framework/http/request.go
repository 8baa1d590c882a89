package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/km-arc/go-ioc/framework/http/validation"
)

// Request wraps *http.Request with routing and query helpers.
type Request struct {
	raw *http.Request
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// Query returns a query-string value.
func (req *Request) Query(key string, fallback ...string) string {
	v := req.raw.URL.Query().Get(key)
	if v == "" && len(fallback) > 0 {
		return fallback[0]
	}
	return v
}

// RouteParam returns a URL route parameter (chi).
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// Validate checks the named query values against rules.
//
//	v := req.Validate(validation.Rules{"tag": "required|alpha_dash"})
func (req *Request) Validate(rules validation.Rules) *validation.Validator {
	data := make(map[string]string, len(rules))
	for field := range rules {
		data[field] = req.raw.URL.Query().Get(field)
	}
	return validation.Make(data, rules)
}
