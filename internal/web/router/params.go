package router

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Params reads the path and query parameters of one request
type Params struct {
	req   *http.Request
	query url.Values
}

// NewParamExtractor wraps req. The query string is parsed once.
func NewParamExtractor(req *http.Request) *Params {
	return &Params{req: req, query: req.URL.Query()}
}

// PathParam returns the {name} segment of the matched route
func (p *Params) PathParam(name string) string {
	return chi.URLParam(p.req, name)
}

// PathParamID parses the {name} segment as a positive database id
func (p *Params) PathParamID(name string) (int64, error) {
	raw := p.PathParam(name)
	if raw == "" {
		return 0, fmt.Errorf("missing path parameter: %s", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id for parameter %s: %q", name, raw)
	}
	return id, nil
}

// QueryParam returns the first value of a query parameter
func (p *Params) QueryParam(name string) string {
	return p.query.Get(name)
}

// QueryParamWithDefault returns fallback when the parameter is absent or empty
func (p *Params) QueryParamWithDefault(name, fallback string) string {
	if v := p.query.Get(name); v != "" {
		return v
	}
	return fallback
}

// PathID parses the {name} segment of req as a positive database id
func PathID(req *http.Request, name string) (int64, error) {
	return NewParamExtractor(req).PathParamID(name)
}
