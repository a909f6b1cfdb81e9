package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chazu/csgcloud/pkg/engine"
	"github.com/chazu/csgcloud/pkg/export"
	"github.com/chazu/csgcloud/pkg/logging"
	"github.com/chazu/csgcloud/pkg/scene"
	"github.com/chazu/csgcloud/pkg/shape"
	"github.com/gorilla/mux"
)

// maxBodyBytes caps the size of a posted scene.
const maxBodyBytes = 1 << 20

// Server exposes an App over HTTP.
type Server struct {
	app        *App
	maxDensity int
}

// NewServer returns a Server that rejects densities above maxDensity.
func NewServer(app *App, maxDensity int) *Server {
	return &Server{app: app, maxDensity: maxDensity}
}

// Router returns the HTTP routes:
//
//	GET  /health
//	POST /api/evaluate          Request -> Result with the cloud as JSON
//	POST /api/export/{format}   Request -> cloud encoded as json, ply or xyz
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(recovery)
	r.Use(requestLogger)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/api/evaluate", s.Evaluate).Methods("POST")
	r.HandleFunc("/api/export/{format}", s.Export).Methods("POST")
	return r
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (Request, bool) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	if req.Density != "" {
		d, err := scene.Density(req.Density)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return req, false
		}
		if d > s.maxDensity {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("density %d exceeds the server limit of %d", d, s.maxDensity),
			})
			return req, false
		}
	}
	return req, true
}

// Evaluate answers with the same Result the command line builds.
func (s *Server) Evaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	pc, res := s.app.Run(r.Context(), req)
	if len(res.Errors) > 0 {
		writeJSON(w, failureStatus(res), res)
		return
	}
	res.Cloud = export.NewDocument(pc)
	writeJSON(w, http.StatusOK, res)
}

// Export streams the cloud in the requested format.
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	pc, res := s.app.Run(r.Context(), req)
	if len(res.Errors) > 0 {
		writeJSON(w, failureStatus(res), res)
		return
	}

	contentType := "text/plain; charset=utf-8"
	if format == export.JSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, res.ID, format.Ext()))
	w.Header().Set("X-Eval-Id", res.ID)
	if err := export.Write(w, pc, format); err != nil {
		logging.Logger().Error("export write failed", "eval", res.ID, "error", err)
	}
}

// failureStatus maps a failed Result to its HTTP status. Scene errors are
// 422.
func failureStatus(res Result) int {
	switch err := res.Cause(); {
	case errors.Is(err, shape.ErrTooManyPoints):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// recovery turns a handler panic into a 500.
func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Logger().Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Logger().LogAttrs(r.Context(), slog.LevelInfo, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}
