// Package server exposes the mosaic engine over HTTP.
//
// The surface is intentionally thin: handlers decode requests, delegate
// to the session store and engine, and encode JSON (or raw image bytes)
// back. Authentication, persistence and upload back-pressure are out of
// scope.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/pixelfield/mosaic/internal/engine"
	"github.com/pixelfield/mosaic/internal/session"
)

// maxUploadBytes bounds one multipart upload request.
const maxUploadBytes = 256 << 20

// Server wires the session store and generator behind an http.Handler.
type Server struct {
	sessions  *session.Store
	generator *engine.Generator
	mux       *http.ServeMux
}

// New creates a server whose sessions expire after sessionTTL idle time.
func New(sessionTTL time.Duration) *Server {
	s := &Server{
		sessions:  session.NewStore(sessionTTL),
		generator: engine.New(),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

// Sessions exposes the store so the caller can run the TTL sweeper.
func (s *Server) Sessions() *session.Store { return s.sessions }

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/session", s.handleCreateSession)
	s.mux.HandleFunc("DELETE /api/session/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /api/session/{id}/target", s.handleUploadTarget)
	s.mux.HandleFunc("POST /api/session/{id}/dimensions", s.handleSetDimensions)
	s.mux.HandleFunc("POST /api/session/{id}/tiles", s.handleUploadTiles)
	s.mux.HandleFunc("GET /api/session/{id}/tiles", s.handleListTiles)
	s.mux.HandleFunc("DELETE /api/session/{id}/tiles", s.handleClearTiles)
	s.mux.HandleFunc("POST /api/session/{id}/generate", s.handleGenerate)
	s.mux.HandleFunc("GET /api/session/{id}/mosaic", s.handleGetMosaic)
	s.mux.HandleFunc("GET /api/session/{id}/dzi.xml", s.handleDescriptor)
	s.mux.HandleFunc("GET /api/session/{id}/dzi_files/{level}/{tile}", s.handleTile)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// sessionFor resolves the {id} path value, writing a 404 on miss.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return nil, false
	}
	return sess, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
