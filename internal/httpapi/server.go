// Package httpapi exposes the bank over HTTP for clients that cannot
// speak the raw TCP line protocol.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joelkehle/blackboard/internal/bank"
	"github.com/joelkehle/blackboard/internal/toolapi"
)

type Server struct {
	bank       *bank.Bank
	dispatcher *bank.Dispatcher
	tools      *toolapi.Registry
	started    time.Time
}

func NewServer(b *bank.Bank, d *bank.Dispatcher) http.Handler {
	s := &Server{
		bank:       b,
		dispatcher: d,
		tools:      toolapi.NewRegistry(d),
		started:    time.Now(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/dispatch", s.handleDispatch)
	mux.HandleFunc("/v1/tools", s.handleListTools)
	mux.HandleFunc("/v1/tools/", s.handleInvokeTool)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// statusFor maps a dispatch result onto an HTTP status. Domain errors
// keep their wire shape; only the status line changes.
func statusFor(result any) int {
	er, ok := result.(bank.ErrorResult)
	if !ok {
		return http.StatusOK
	}
	switch er.Err {
	case "bad-request", "invalid-json", "unknown-verb":
		return http.StatusBadRequest
	case "timeout: no matching message received":
		return http.StatusRequestTimeout
	}
	return http.StatusBadRequest
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, bank.ErrorResult{Err: "bad-request"})
		return
	}
	result := s.dispatcher.DispatchRaw(r.Context(), blob)
	writeJSON(w, statusFor(result), result)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.tools.Tools()})
}

func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/v1/tools/")
	name = strings.TrimSuffix(name, "/")
	if name == "" || strings.Contains(name, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad-request"})
		return
	}

	text, err := s.tools.Invoke(r.Context(), name, blob)
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "unknown tool") {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "text": json.RawMessage(text)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	stats := s.bank.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"messages":       stats.Messages,
		"waiters":        stats.Waiters,
		"pending":        stats.Pending,
		"total_puts":     stats.TotalPuts,
		"total_takes":    stats.TotalTakes,
	})
}
