package capability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sentra-sec/sentra/api/schemas"
	"github.com/sentra-sec/sentra/internal/config"
)

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(schemas.CapabilityThreatHunting,
		config.CapabilityEndpoint{URL: url, Timeout: timeout, MaxRetries: 3},
		30*time.Second, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestClientInvoke(t *testing.T) {
	t.Run("returns output on success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req invokeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, string(schemas.CapabilityThreatHunting), req.Capability)
			assert.Equal(t, "sess-1", req.SessionID)

			json.NewEncoder(w).Encode(invokeResponse{Output: "hunt results"})
		}))
		defer srv.Close()

		out, err := newTestClient(t, srv.URL, 5*time.Second).Invoke(context.Background(), "sess-1", "find lateral movement")
		require.NoError(t, err)
		assert.Equal(t, "hunt results", out)
	})

	t.Run("retries transient 5xx and succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(invokeResponse{Output: "ok"})
		}))
		defer srv.Close()

		out, err := newTestClient(t, srv.URL, 10*time.Second).Invoke(context.Background(), "s", "x")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.GreaterOrEqual(t, calls.Load(), int32(2))
	})

	t.Run("classifies 4xx as unavailable without retry", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL, 5*time.Second).Invoke(context.Background(), "s", "x")
		require.Error(t, err)
		assert.ErrorIs(t, err, schemas.ErrCapabilityUnavailable)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("classifies deadline expiry as timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			json.NewEncoder(w).Encode(invokeResponse{Output: "late"})
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL, 50*time.Millisecond).Invoke(context.Background(), "s", "x")
		require.Error(t, err)
		assert.ErrorIs(t, err, schemas.ErrCapabilityTimeout)
	})

	t.Run("surfaces service-reported errors as unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(invokeResponse{Error: "model backend offline"})
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL, 5*time.Second).Invoke(context.Background(), "s", "x")
		require.Error(t, err)
		assert.ErrorIs(t, err, schemas.ErrCapabilityUnavailable)
		assert.Contains(t, err.Error(), "model backend offline")
	})
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(schemas.CapabilityForensics, config.CapabilityEndpoint{}, time.Second, zap.NewNop())
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(invokeResponse{Output: "done"})
	}))
	defer srv.Close()

	cfg := config.CapabilitiesConfig{
		DefaultTimeout: 5 * time.Second,
		Endpoints: map[string]config.CapabilityEndpoint{
			"threat_hunting": {URL: srv.URL},
			"reporting":      {URL: srv.URL},
		},
	}

	t.Run("dispatches to registered capability", func(t *testing.T) {
		reg, err := NewRegistry(cfg, zap.NewNop())
		require.NoError(t, err)

		out, err := reg.Invoke(context.Background(), schemas.CapabilityThreatHunting, "s", "in")
		require.NoError(t, err)
		assert.Equal(t, "done", out)

		assert.ElementsMatch(t,
			[]schemas.Capability{schemas.CapabilityThreatHunting, schemas.CapabilityReporting},
			reg.Registered())
	})

	t.Run("unregistered capability is unavailable", func(t *testing.T) {
		reg, err := NewRegistry(cfg, zap.NewNop())
		require.NoError(t, err)

		_, err = reg.Invoke(context.Background(), schemas.CapabilityForensics, "s", "in")
		assert.ErrorIs(t, err, schemas.ErrCapabilityUnavailable)
	})

	t.Run("rejects unknown capability names", func(t *testing.T) {
		bad := config.CapabilitiesConfig{Endpoints: map[string]config.CapabilityEndpoint{
			"clairvoyance": {URL: srv.URL},
		}}
		_, err := NewRegistry(bad, zap.NewNop())
		require.Error(t, err)
	})
}
