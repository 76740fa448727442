package app

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/cli/config"
	"github.com/portfolio-egg/egg/internal/jobs"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env: config.EnvDevelopment,
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			PublicURL:       "http://api.test",
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			TimeZone:        "UTC",
		},
		Database:  config.DatabaseConfig{Driver: "sqlite3", URL: filepath.Join(dir, "egg.db")},
		Auth:      config.AuthConfig{JWTSecret: "app-test-secret", TokenTTL: time.Hour},
		Frontend:  config.FrontendConfig{Origin: "http://frontend.test"},
		Storage:   config.StorageConfig{Dir: filepath.Join(dir, "storage"), MaxUploadBytes: 1 << 20},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 100, AuthRequestsPerMinute: 10},
		Jobs:      config.JobsConfig{BlobGCSchedule: "@every 1h", BlobGCGrace: time.Hour},
	}
}

func TestAppServesRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t)
	cfg.Server.PprofAddr = "127.0.0.1:0"
	a, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)

	applied, err := a.Migrate(ctx)
	require.NoError(t, err)
	assert.Positive(t, applied)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-a.Server().Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	base := "http://" + a.Server().Addr()

	select {
	case <-a.pprof.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("pprof server did not start")
	}
	resp, err := http.Get("http://" + a.pprof.Addr() + "/debug/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	body := `{"email":"dog@user.com","password":"doguser","password_confirmation":"doguser","username":"dog"}`
	resp, err = http.Post(base+"/api/v1/auth", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("access-token"))

	resp, err = http.Get(base + "/api/v1/nowhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, a.Close(context.Background()))
}

func TestAppRegistersJobsAndRoutes(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close(ctx)) })

	infos := a.Scheduler().Jobs()
	require.Len(t, infos, 1)
	assert.Equal(t, jobs.BlobGCJobName, infos[0].Name)

	_, ok := a.Router().GetRoute("apps.index")
	assert.True(t, ok)
	_, ok = a.Router().GetRoute("auth.sign_in")
	assert.True(t, ok)
}

func TestAppWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.URL = "redis://" + mr.Addr()

	ctx := context.Background()
	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, a.redis)
	assert.NoError(t, a.Close(ctx))
}

func TestNewFailsOnBadRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.URL = "redis://127.0.0.1:1"

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewRejectsBadTrustedProxy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.TrustedProxies = []string{"load-balancer"}

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.trusted_proxies")
}
