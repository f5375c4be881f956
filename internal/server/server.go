package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MOYARU/vigil/internal/report"
)

const (
	// MaxUploadBytes matches the reputation service's direct upload limit.
	MaxUploadBytes = 32 << 20
	// MaxMediaBytes bounds inline media sent to the model.
	MaxMediaBytes = 20 << 20
	maxJSONBytes  = 1 << 20
)

// Assessor runs the assessment flows behind the API.
type Assessor interface {
	AssessFile(ctx context.Context, name string, data []byte) (report.ThreatAssessment, error)
	AssessURL(ctx context.Context, raw string) (report.ThreatAssessment, error)
	AssessEmail(ctx context.Context, body string) (report.ThreatAssessment, error)
	CheckClaim(ctx context.Context, claim string) (report.FactCheck, error)
	AssessMedia(ctx context.Context, contentType string, data []byte) (report.MediaAuthenticity, error)
}

// Server is the dashboard backend.
type Server struct {
	assessor Assessor
	logf     func(format string, args ...any)
}

func New(a Assessor) *Server {
	return &Server{assessor: a, logf: log.Printf}
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/claims", s.postClaim)
		r.Post("/urls", s.postURL)
		r.Post("/emails", s.postEmail)
		r.Post("/files", s.postFile)
		r.Post("/media", s.postMedia)
	})
	return r
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logf("server: listening on %s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logf("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type claimRequest struct {
	Claim string `json:"claim"`
}

type urlRequest struct {
	URL string `json:"url"`
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) postClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.assessor.CheckClaim(r.Context(), req.Claim)
	s.respond(w, r, out, err)
}

func (s *Server) postURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.assessor.AssessURL(r.Context(), strings.TrimSpace(req.URL))
	s.respond(w, r, out, err)
}

func (s *Server) postEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.assessor.AssessEmail(r.Context(), req.Email)
	s.respond(w, r, out, err)
}

func (s *Server) postFile(w http.ResponseWriter, r *http.Request) {
	data, header, ok := s.upload(w, r, MaxUploadBytes)
	if !ok {
		return
	}
	out, err := s.assessor.AssessFile(r.Context(), header.Filename, data)
	s.respond(w, r, out, err)
}

func (s *Server) postMedia(w http.ResponseWriter, r *http.Request) {
	data, header, ok := s.upload(w, r, MaxMediaBytes)
	if !ok {
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	out, err := s.assessor.AssessMedia(r.Context(), contentType, data)
	s.respond(w, r, out, err)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON object")
		return false
	}
	return true
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart field \"file\" is required")
		return nil, nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "input_read", "could not read upload")
		return nil, nil, false
	}
	if int64(len(data)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit")
		return nil, nil, false
	}
	return data, header, true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, out any, err error) {
	if err != nil {
		status, code, msg := classify(err)
		s.logf("server: %s %s failed: %s", middleware.GetReqID(r.Context()), r.URL.Path, report.SanitizeText(err.Error()))
		if status == http.StatusAccepted {
			writeJSON(w, status, map[string]string{"status": "pending", "message": msg})
			return
		}
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logf("server: %s %s %s %d %s", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
