package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/Nexus/config"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  config.ServerConfig{Port: 0, Mode: "test", ShutdownTimeout: time.Second},
		Store:   config.StoreConfig{Driver: config.DriverSQLite},
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "nexus.db")},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func redisConfig(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{Host: mr.Host(), Port: port, KeyPrefix: "test"}
}

func createGuild(t *testing.T, a *App, name string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/guilds",
		strings.NewReader(`{"guildName":"`+name+`","guildID":"G","owner":"U"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestNew_SQLite(t *testing.T) {
	a, err := New(context.Background(), sqliteConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	createGuild(t, a, "Alpha")

	n, err := a.Service.DeleteAllGuilds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_RedisWithRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test", ShutdownTimeout: time.Second},
		Store:     config.StoreConfig{Driver: config.DriverRedis},
		Redis:     redisConfig(t, mr),
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMin: 2, Window: time.Hour},
	}

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	createGuild(t, a, "Alpha")
	assert.True(t, mr.Exists("test:guilds"))

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/guilds", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/guilds", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestNew_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Store: config.StoreConfig{Driver: config.DriverRedis},
		Redis: redisConfig(t, mr),
	}
	mr.Close()

	a, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
	assert.Nil(t, a)
}

func TestNew_KafkaUnavailableDegrades(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Kafka = config.KafkaConfig{Enabled: true, Brokers: []string{"127.0.0.1:1"}, Topic: "t", MaxRetries: 1}

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	createGuild(t, a, "Alpha")
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Store.Driver = "cassandra"

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "cassandra")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), sqliteConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), sqliteConfig(t), nil)
	require.NoError(t, err)

	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
