package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-egg/egg/internal/web/middleware"
)

func ok(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouterHTTPMethods(t *testing.T) {
	tests := []struct {
		name   string
		method string
		setup  func(*Router, http.HandlerFunc) *Route
	}{
		{"GET route", http.MethodGet, func(r *Router, h http.HandlerFunc) *Route { return r.Get("/test", h) }},
		{"POST route", http.MethodPost, func(r *Router, h http.HandlerFunc) *Route { return r.Post("/test", h) }},
		{"PUT route", http.MethodPut, func(r *Router, h http.HandlerFunc) *Route { return r.Put("/test", h) }},
		{"PATCH route", http.MethodPatch, func(r *Router, h http.HandlerFunc) *Route { return r.Patch("/test", h) }},
		{"DELETE route", http.MethodDelete, func(r *Router, h http.HandlerFunc) *Route { return r.Delete("/test", h) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter()
			route := tt.setup(router, ok("success"))

			assert.Equal(t, "/test", route.Pattern)
			assert.Equal(t, tt.method, route.Method)

			rec := serve(t, router, tt.method, "/test")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "success", rec.Body.String())
		})
	}
}

func TestRouter_RouteAndWith(t *testing.T) {
	router := NewRouter()

	var calls []string
	tag := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router.Route("/api/v1", func(r *Router) {
		r.Get("/apps", ok("index")).Named("apps.index")
		r.With("auth", tag("auth")).Get("/my-apps", ok("mine")).Named("my_apps.index")
	})

	rec := serve(t, router, http.MethodGet, "/api/v1/apps")
	assert.Equal(t, "index", rec.Body.String())
	assert.Empty(t, calls)

	rec = serve(t, router, http.MethodGet, "/api/v1/my-apps")
	assert.Equal(t, "mine", rec.Body.String())
	assert.Equal(t, []string{"auth"}, calls)

	routes := router.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, "/api/v1/apps", routes[0].Pattern)
	assert.Empty(t, routes[0].Middleware)
	assert.Equal(t, "/api/v1/my-apps", routes[1].Pattern)
	assert.Equal(t, []string{"auth"}, routes[1].Middleware)

	route, found := router.GetRoute("my_apps.index")
	require.True(t, found)
	assert.Equal(t, http.MethodGet, route.Method)

	_, found = router.GetRoute("missing")
	assert.False(t, found)
}

func TestRouter_Resources(t *testing.T) {
	router := NewRouter()
	router.Resources("/apps", "apps", "id", ResourceHandlers{
		List:   ok("list"),
		Create: ok("create"),
		Show:   ok("show"),
		Update: ok("update"),
		Delete: ok("delete"),
	})
	router.Resources("/app_versions", "app_versions", "id", ResourceHandlers{Show: ok("version")})

	assert.Equal(t, "list", serve(t, router, http.MethodGet, "/apps").Body.String())
	assert.Equal(t, "create", serve(t, router, http.MethodPost, "/apps").Body.String())
	assert.Equal(t, "show", serve(t, router, http.MethodGet, "/apps/3").Body.String())
	assert.Equal(t, "update", serve(t, router, http.MethodPatch, "/apps/3").Body.String())
	assert.Equal(t, "update", serve(t, router, http.MethodPut, "/apps/3").Body.String())
	assert.Equal(t, "delete", serve(t, router, http.MethodDelete, "/apps/3").Body.String())
	assert.Equal(t, "version", serve(t, router, http.MethodGet, "/app_versions/1").Body.String())
	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, router, http.MethodDelete, "/app_versions/1").Code)

	routes := router.Routes()
	assert.Len(t, routes, 7)

	route, found := router.GetRoute("apps.destroy")
	require.True(t, found)
	assert.Equal(t, "/apps/{id}", route.Pattern)
}

func TestSetupDefaultErrorHandlers(t *testing.T) {
	router := NewRouter()
	SetupDefaultErrorHandlers(router)
	router.Get("/ping", ok("pong"))

	rec := serve(t, router, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No route matches GET /nope")

	rec = serve(t, router, http.MethodPost, "/ping")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "method_not_allowed")
}

func TestPathParameters(t *testing.T) {
	assert.Equal(t, []string{"app_version_id"}, PathParameters("/app_versions/{app_version_id}/feedbacks"))
	assert.Nil(t, PathParameters("/ping"))
}

func TestPathID(t *testing.T) {
	router := NewRouter()
	var got int64
	var gotErr error
	router.Get("/apps/{id}", func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = PathID(r, "id")
	})

	serve(t, router, http.MethodGet, "/apps/42")
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	serve(t, router, http.MethodGet, "/apps/abc")
	assert.Error(t, gotErr)

	serve(t, router, http.MethodGet, "/apps/-1")
	assert.Error(t, gotErr)
}

func TestQueryParams(t *testing.T) {
	p := NewParamExtractor(httptest.NewRequest(http.MethodGet, "/apps?category=web&sort=", nil))

	assert.Equal(t, "web", p.QueryParam("category"))
	assert.Empty(t, p.QueryParam("q"))
	assert.Equal(t, "newest", p.QueryParamWithDefault("sort", "newest"))
	assert.Equal(t, "web", p.QueryParamWithDefault("category", "all"))
}
