package router

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/portfolio-egg/egg/internal/web/middleware"
)

// Router manages HTTP routing using chi. Sub-routers created with Route and
// With share one registry, so every route is visible to introspection.
type Router struct {
	mux        chi.Router
	prefix     string
	middleware []string
	registry   *registry
}

// Route represents a single registered route
type Route struct {
	Pattern    string   // /api/v1/apps/{id}
	Method     string   // GET, POST, etc.
	Name       string   // apps.show
	Middleware []string // names of per-route middleware, outermost first
}

type registry struct {
	mu     sync.Mutex
	routes []*Route
}

func (reg *registry) add(route *Route) {
	reg.mu.Lock()
	reg.routes = append(reg.routes, route)
	reg.mu.Unlock()
}

// NewRouter creates a new Router instance
func NewRouter() *Router {
	return &Router{
		mux:      chi.NewRouter(),
		registry: &registry{},
	}
}

// ServeHTTP implements http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Use adds middleware to every route of the router.
// It must be called before any route is registered.
func (r *Router) Use(middlewares ...middleware.Middleware) {
	for _, m := range middlewares {
		r.mux.Use(m)
	}
}

// With returns an inline router whose routes run the given middleware.
// name is recorded on each route for introspection.
func (r *Router) With(name string, middlewares ...middleware.Middleware) *Router {
	mws := make([]func(http.Handler) http.Handler, len(middlewares))
	for i, m := range middlewares {
		mws[i] = m
	}
	return &Router{
		mux:        r.mux.With(mws...),
		prefix:     r.prefix,
		middleware: append(append([]string(nil), r.middleware...), name),
		registry:   r.registry,
	}
}

// Route mounts a sub-router under prefix
func (r *Router) Route(prefix string, fn func(r *Router)) {
	r.mux.Route(prefix, func(sub chi.Router) {
		fn(&Router{
			mux:        sub,
			prefix:     r.prefix + prefix,
			middleware: r.middleware,
			registry:   r.registry,
		})
	})
}

// Get registers a GET route
func (r *Router) Get(pattern string, handler http.HandlerFunc) *Route {
	return r.Handle(http.MethodGet, pattern, handler)
}

// Post registers a POST route
func (r *Router) Post(pattern string, handler http.HandlerFunc) *Route {
	return r.Handle(http.MethodPost, pattern, handler)
}

// Put registers a PUT route
func (r *Router) Put(pattern string, handler http.HandlerFunc) *Route {
	return r.Handle(http.MethodPut, pattern, handler)
}

// Patch registers a PATCH route
func (r *Router) Patch(pattern string, handler http.HandlerFunc) *Route {
	return r.Handle(http.MethodPatch, pattern, handler)
}

// Delete registers a DELETE route
func (r *Router) Delete(pattern string, handler http.HandlerFunc) *Route {
	return r.Handle(http.MethodDelete, pattern, handler)
}

// Handle registers handler for method and pattern
func (r *Router) Handle(method, pattern string, handler http.Handler) *Route {
	r.mux.Method(method, pattern, handler)

	route := &Route{
		Pattern:    r.prefix + pattern,
		Method:     method,
		Middleware: r.middleware,
	}
	r.registry.add(route)
	return route
}

// Named sets a name for the route
func (route *Route) Named(name string) *Route {
	route.Name = name
	return route
}

// Routes returns all registered routes ordered by pattern then method
func (r *Router) Routes() []Route {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	routes := make([]Route, len(r.registry.routes))
	for i, route := range r.registry.routes {
		routes[i] = *route
	}
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Pattern != routes[j].Pattern {
			return routes[i].Pattern < routes[j].Pattern
		}
		return methodRank(routes[i].Method) < methodRank(routes[j].Method)
	})
	return routes
}

// GetRoute returns a route by name
func (r *Router) GetRoute(name string) (Route, bool) {
	for _, route := range r.Routes() {
		if route.Name == name {
			return route, true
		}
	}
	return Route{}, false
}

// NotFound sets the handler for 404 Not Found
func (r *Router) NotFound(handler http.HandlerFunc) {
	r.mux.NotFound(handler)
}

// MethodNotAllowed sets the handler for 405 Method Not Allowed
func (r *Router) MethodNotAllowed(handler http.HandlerFunc) {
	r.mux.MethodNotAllowed(handler)
}

// PathParameters lists the {name} segments of a pattern
func PathParameters(pattern string) []string {
	var params []string
	for _, part := range strings.Split(pattern, "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			params = append(params, strings.Trim(part, "{}"))
		}
	}
	return params
}

func methodRank(method string) int {
	switch method {
	case http.MethodGet:
		return 0
	case http.MethodPost:
		return 1
	case http.MethodPut:
		return 2
	case http.MethodPatch:
		return 3
	case http.MethodDelete:
		return 4
	default:
		return 5
	}
}
