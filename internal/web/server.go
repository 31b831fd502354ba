// Package web provides the HTTP surface for the traffic-light daemon: a
// status page, a JSON status document, the power attribute and metrics.
package web

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"

	"github.com/sweeney/traffic-light/internal/control"
	"github.com/sweeney/traffic-light/internal/status"
)

// maxPowerBody bounds a power write; the attribute holds a single value.
const maxPowerBody = 4096

// Server serves the status page and power attribute over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	target     control.Target
}

// New creates a Server that reads state from the given tracker and applies
// power writes to target. metrics may be nil.
func New(addr string, tracker *status.Tracker, target control.Target, metrics http.Handler) *Server {
	s := &Server{tracker: tracker, target: target}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/power", s.handlePower)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handlePower exposes the power state as a text attribute. Reads return
// "0" or "1"; writes are coerced, never rejected.
func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodPut, http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxPowerBody))
		if err != nil {
			log.Printf("web: read power body: %v", err)
		}
		if control.ApplyText(s.target, string(body)) {
			log.Printf("web: power=%s from %s", control.FormatPower(s.target.Powered()), r.RemoteAddr)
		}
	default:
		w.Header().Set("Allow", "GET, HEAD, PUT, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, control.FormatPower(s.target.Powered())+"\n")
}
