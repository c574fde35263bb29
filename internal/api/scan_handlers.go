package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/averlane/osprey/internal/store"
)

// portScanRequest is the body of POST /api/v1/portscan.
type portScanRequest struct {
	Target  string `json:"target"`
	Ports   string `json:"ports,omitempty"`
	Threads int    `json:"threads,omitempty"`
}

func (s *Server) portscanHandler(w http.ResponseWriter, r *http.Request) {
	var req portScanRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	started := time.Now()
	result, err := s.engines.PortScan.Scan(r.Context(), req.Target, portScanOptions(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.saveRun(r, &store.Run{
		Kind:       "portscan",
		Target:     req.Target,
		Units:      result.Scanned,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, store.FromPortScan(result))

	s.writeJSON(w, http.StatusOK, result)
}

// reverseDNSRequest is the body of POST /api/v1/reverse-dns.
type reverseDNSRequest struct {
	Target  string `json:"target"`
	Force   bool   `json:"force,omitempty"`
	Threads int    `json:"threads,omitempty"`
}

func (s *Server) reverseDNSHandler(w http.ResponseWriter, r *http.Request) {
	var req reverseDNSRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	started := time.Now()
	result, err := s.engines.Reverse.Run(r.Context(), req.Target, reverseOptions(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.saveRun(r, &store.Run{
		Kind:       "reverse_dns",
		Target:     req.Target,
		Units:      result.Expanded,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, store.FromReverseDNS(result))

	s.writeJSON(w, http.StatusOK, result)
}

// subdomainsRequest is the body of POST /api/v1/subdomains.
type subdomainsRequest struct {
	Domain         string   `json:"domain"`
	CRT            bool     `json:"crt,omitempty"`
	Brute          bool     `json:"brute,omitempty"`
	SkipAliveCheck bool     `json:"skip_alive_check,omitempty"`
	Wordlist       []string `json:"wordlist,omitempty"`
	Threads        int      `json:"threads,omitempty"`
}

func (s *Server) subdomainsHandler(w http.ResponseWriter, r *http.Request) {
	var req subdomainsRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	started := time.Now()
	result, err := s.engines.Subenum.Enumerate(r.Context(), req.Domain, subenumOptions(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.saveRun(r, &store.Run{
		Kind:       "subdomain",
		Target:     req.Domain,
		Units:      result.Candidates,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, store.FromSubdomains(result))

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusNotImplemented, map[string]string{
			"error": "scan history requires a configured database",
		})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// saveRun persists a run when history is configured. Persistence
// failures are logged, never surfaced; the scan already succeeded.
func (s *Server) saveRun(r *http.Request, run *store.Run, findings []store.Finding) {
	if s.history == nil {
		return
	}
	if err := s.history.SaveRun(r.Context(), run, findings); err != nil {
		s.log.Error("failed to persist run", "kind", run.Kind, "error", err)
	}
}
