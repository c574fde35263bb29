package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averlane/osprey/internal/config"
	"github.com/averlane/osprey/internal/errors"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	settings := config.Default().Settings
	settings.HTTPTimeout = 2 * time.Second
	client, err := New(settings)
	require.NoError(t, err)
	return client
}

func TestCheckURLIgnoresStatusCode(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "ok", status: http.StatusOK},
		{name: "forbidden", status: http.StatusForbidden},
		{name: "not found", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(t)
			reachable, err := client.CheckURL(context.Background(), server.URL)
			require.NoError(t, err)
			assert.True(t, reachable)
		})
	}
}

func TestCheckURLConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refused from here on

	client := newTestClient(t)
	reachable, err := client.CheckURL(context.Background(), server.URL)
	assert.False(t, reachable)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
}

func TestCheckURLSendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	settings := config.Default().Settings
	settings.UserAgentPreset = "custom"
	settings.UserAgent = "osprey-test/1.0"
	client, err := New(settings)
	require.NoError(t, err)

	_, err = client.CheckURL(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "osprey-test/1.0", gotUA)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name_value":"a.example.com"},{"name_value":"b.example.com"}]`))
	}))
	defer server.Close()

	client := newTestClient(t)
	var entries []struct {
		NameValue string `json:"name_value"`
	}
	err := client.GetJSON(context.Background(), server.URL, &entries)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.example.com", entries[0].NameValue)
}

func TestGetJSONInvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	client := newTestClient(t)
	var out any
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
}

func TestGetBodyLimit(t *testing.T) {
	big := strings.Repeat("x", maxBodyBytes+1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	client := newTestClient(t)
	body, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello", body)
}

func TestNewInvalidProxy(t *testing.T) {
	settings := config.Default().Settings
	settings.Proxy = "http://192.168.1.1:\x7f"
	_, err := New(settings)
	require.Error(t, err)
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CheckURL(ctx, server.URL)
	require.Error(t, err)
}
