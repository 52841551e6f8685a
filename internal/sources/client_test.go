package sources

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kamar-Folarin/brand-sync/internal/config"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testSourceConfig(baseURL string) config.SourceConfig {
	cfg := *config.DefaultSourceConfig()
	cfg.BrandPlatform.BaseURL = baseURL
	cfg.BrandPlatform.APIKey = "bp-key"
	cfg.BrandPlatform.PageSize = 2
	cfg.AgencyAnalytics.BaseURL = baseURL
	cfg.AgencyAnalytics.APIKey = "aa-key"
	cfg.AgencyAnalytics.PageSize = 2
	cfg.RequestTimeout = 5 * time.Second
	cfg.RateLimit.RequestsPerSecond = 0
	cfg.RateLimit.MaxRetries = 2
	cfg.RateLimit.InitialBackoff = time.Millisecond
	cfg.RateLimit.MaxBackoff = 5 * time.Millisecond
	cfg.Breaker.ConsecutiveFailures = 3
	cfg.Breaker.Timeout = time.Minute
	return cfg
}

func TestRESTClient_SendsBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newRESTClient("test", srv.URL, "secret-token", testSourceConfig(srv.URL), testLogger())
	_, err := c.get(context.Background(), "/ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", auth)
}

func TestRESTClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newRESTClient("test", srv.URL, "t", testSourceConfig(srv.URL), testLogger())
	body, err := c.get(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRESTClient_RetriesAfterRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newRESTClient("test", srv.URL, "t", testSourceConfig(srv.URL), testLogger())
	_, err := c.get(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRESTClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "no such brand", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newRESTClient("test", srv.URL, "t", testSourceConfig(srv.URL), testLogger())
	_, err := c.get(context.Background(), "/brands/9", nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsSystemic(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRESTClient_CredentialRejectionIsSystemic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newRESTClient("test", srv.URL, "t", testSourceConfig(srv.URL), testLogger())
	_, err := c.get(context.Background(), "/brands", nil)
	require.Error(t, err)
	assert.True(t, IsSystemic(err))
}

func TestRESTClient_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testSourceConfig(srv.URL)
	cfg.RateLimit.MaxRetries = 0
	c := newRESTClient("test", srv.URL, "t", cfg, testLogger())

	for i := 0; i < 3; i++ {
		_, err := c.get(context.Background(), "/x", nil)
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}

	_, err := c.get(context.Background(), "/x", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.True(t, IsSystemic(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRESTClient_UnreachableSourceBecomesSystemicWhenBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := testSourceConfig(url)
	cfg.RateLimit.MaxRetries = 0
	c := newRESTClient("unreachable", url, "t", cfg, testLogger())

	for i := 0; i < 3; i++ {
		_, err := c.get(context.Background(), "/brands", nil)
		require.Error(t, err)
		assert.False(t, IsSystemic(err), "attempt %d", i+1)
	}

	_, err := c.get(context.Background(), "/brands", nil)
	require.Error(t, err)
	assert.True(t, IsSystemic(err))
}

func TestRESTClient_HonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testSourceConfig(srv.URL)
	cfg.RateLimit.InitialBackoff = time.Hour
	c := newRESTClient("test", srv.URL, "t", cfg, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.get(ctx, "/x", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFlexID(t *testing.T) {
	var payload struct {
		A flexID `json:"a"`
		B flexID `json:"b"`
		C flexID `json:"c"`
	}
	err := jsonUnmarshal(`{"a": 42, "b": "abc", "c": null}`, &payload)
	require.NoError(t, err)
	assert.Equal(t, "42", payload.A.String())
	assert.Equal(t, "abc", payload.B.String())
	assert.Equal(t, "", payload.C.String())
}
