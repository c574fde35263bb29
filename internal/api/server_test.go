package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averlane/osprey/internal/config"
	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/portscan"
	"github.com/averlane/osprey/internal/revdns"
	"github.com/averlane/osprey/internal/subenum"
)

type stubPortScanner struct {
	result *portscan.Result
	err    error
	gotOpts portscan.Options
}

func (s *stubPortScanner) Scan(ctx context.Context, host string, opts portscan.Options) (*portscan.Result, error) {
	s.gotOpts = opts
	return s.result, s.err
}

type stubReverse struct {
	result *revdns.Result
	err    error
}

func (s *stubReverse) Run(ctx context.Context, rawTarget string, opts revdns.Options) (*revdns.Result, error) {
	return s.result, s.err
}

type stubSubenum struct {
	result *subenum.Result
	err    error
}

func (s *stubSubenum) Enumerate(ctx context.Context, domain string, opts subenum.Options) (*subenum.Result, error) {
	return s.result, s.err
}

func newTestServer(engines Engines) *Server {
	cfg := config.Default().API
	return New(cfg, engines, nil)
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestPortScanEndpoint(t *testing.T) {
	scanner := &stubPortScanner{result: &portscan.Result{
		Target:  "192.0.2.1",
		Addr:    netip.MustParseAddr("192.0.2.1"),
		Scanned: 3,
		Open:    []portscan.OpenPort{{Port: 22, Service: "ssh"}},
	}}
	srv := newTestServer(Engines{PortScan: scanner})

	rec := postJSON(t, srv, "/api/v1/portscan", map[string]any{
		"target":  "192.0.2.1",
		"ports":   "22,80,443",
		"threads": 5,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "22,80,443", scanner.gotOpts.Ports)
	assert.Equal(t, 5, scanner.gotOpts.Threads)

	var result portscan.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Open, 1)
	assert.Equal(t, uint16(22), result.Open[0].Port)
}

func TestPortScanParseErrorIs400(t *testing.T) {
	scanner := &stubPortScanner{err: errors.NewParseError("80-", "invalid port range")}
	srv := newTestServer(Engines{PortScan: scanner})

	rec := postJSON(t, srv, "/api/v1/portscan", map[string]any{
		"target": "192.0.2.1",
		"ports":  "80-",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PARSE", resp.Code)
}

func TestGuardrailIs422(t *testing.T) {
	reverse := &stubReverse{err: errors.NewGuardrailError(2000, 1000)}
	srv := newTestServer(Engines{Reverse: reverse})

	rec := postJSON(t, srv, "/api/v1/reverse-dns", map[string]any{
		"target": "10.0.0.0/21",
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "GUARDRAIL_EXCEEDED", resp.Code)
}

func TestUpstreamUnavailableIs502(t *testing.T) {
	sub := &stubSubenum{err: errors.NewProbeErrorWithTarget(
		errors.CodeUpstreamUnavailable, "all subdomain sources failed", "example.com")}
	srv := newTestServer(Engines{Subenum: sub})

	rec := postJSON(t, srv, "/api/v1/subdomains", map[string]any{
		"domain": "example.com",
	})

	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSubdomainsEndpoint(t *testing.T) {
	sub := &stubSubenum{result: &subenum.Result{
		Domain: "example.com",
		Findings: []subenum.Finding{
			{Name: "www.example.com", Sources: []string{"crtsh"}, Checked: true, Alive: true},
		},
		Alive: 1,
	}}
	srv := newTestServer(Engines{Subenum: sub})

	rec := postJSON(t, srv, "/api/v1/subdomains", map[string]any{
		"domain": "example.com",
		"crt":    true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result subenum.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Alive)
}

func TestMalformedBodyIs400(t *testing.T) {
	srv := newTestServer(Engines{PortScan: &stubPortScanner{}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/portscan", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownFieldIs400(t *testing.T) {
	srv := newTestServer(Engines{PortScan: &stubPortScanner{}})

	rec := postJSON(t, srv, "/api/v1/portscan", map[string]any{
		"target":  "192.0.2.1",
		"bogus":   true,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(Engines{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(Engines{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHistoryWithoutDatabase(t *testing.T) {
	srv := newTestServer(Engines{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newTestServer(Engines{})
	srv.Router().HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
