// Package web serves the node status page and its JSON twin.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/intercom-node/internal/status"
)

// ScriptPath is where a locally installed MQTT.js client is served for the
// live page.
const ScriptPath = "/mqtt.min.js"

// Server serves the status page over HTTP.
type Server struct {
	srv     *http.Server
	tracker *status.Tracker
	script  string
}

// New creates a Server reading from tracker. When script names a local
// MQTT.js file it is served at ScriptPath.
func New(addr string, tracker *status.Tracker, script string) *Server {
	s := &Server{tracker: tracker, script: script}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.page)
	mux.HandleFunc("GET /index.html", s.page)
	mux.HandleFunc("GET /index.json", s.json)
	if script != "" {
		mux.HandleFunc("GET "+ScriptPath, s.mqttClient)
	}

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the request multiplexer.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// Shutdown stops the server, waiting for active requests up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) page(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) json(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) mqttClient(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	http.ServeFile(w, r, s.script)
}
