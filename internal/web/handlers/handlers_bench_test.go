package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func benchAPI(b *testing.B, apps int) (*testAPI, int64) {
	b.Helper()
	api := setupAPI(b)
	token := api.signUp("bench")
	var last int64
	for i := 0; i < apps; i++ {
		last = api.createApp(token, fmt.Sprintf("Bench App %d", i))
	}
	return api, last
}

func BenchmarkListApps(b *testing.B) {
	api, _ := benchAPI(b, 50)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/apps?sort=newest", nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

func BenchmarkShowApp(b *testing.B) {
	api, id := benchAPI(b, 1)
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/apps/%d", id), nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

func BenchmarkShowAppNotModified(b *testing.B) {
	api, id := benchAPI(b, 1)
	path := fmt.Sprintf("/api/v1/apps/%d", id)

	first := httptest.NewRecorder()
	api.router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, path, nil))
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("If-None-Match", first.Header().Get("ETag"))

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotModified {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}
