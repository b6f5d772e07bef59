// Package server implements the HTTP server that exposes the document-chat
// API: ingest content into named collections, ask grounded questions, and
// manage per-collection transcripts. The server is started by the
// `docuchat serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/b3ngr33n/docuchat-go/internal/convo"
	"github.com/b3ngr33n/docuchat-go/internal/core"
	"github.com/b3ngr33n/docuchat-go/internal/logging"
)

const (
	// maxUploadFiles is the maximum number of PDF files per ingestion request.
	maxUploadFiles = 3
	// maxFileSize is the maximum size of a single uploaded PDF.
	maxFileSize = 10 << 20 // 10 MiB
	// maxRequestSize bounds the whole multipart body.
	maxRequestSize = maxUploadFiles*maxFileSize + 1<<20
)

// New constructs a Server from the provided service and config.
func New(svc service, cfg *Config) (*Server, error) {
	return newWithRegistry(svc, cfg, prometheus.NewRegistry())
}

// newWithRegistry is the test seam: it lets tests supply a fresh registry so
// metric registration never collides across instances.
func newWithRegistry(svc service, cfg *Config, reg *prometheus.Registry) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("server: service must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Ingestion crawls and completions can run for minutes.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		svc:     svc,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(reg),
	}

	mux := http.NewServeMux()
	mux.Handle("POST /index", s.instrument("index", http.HandlerFunc(s.handleIndex)))
	mux.Handle("POST /query", s.instrument("query", http.HandlerFunc(s.handleQuery)))
	mux.Handle("GET /get-collections", s.instrument("get-collections", http.HandlerFunc(s.handleGetCollections)))
	mux.Handle("GET /get-messages", s.instrument("get-messages", http.HandlerFunc(s.handleGetMessages)))
	mux.Handle("POST /clear-messages", s.instrument("clear-messages", http.HandlerFunc(s.handleClearMessages)))
	mux.Handle("DELETE /delete-collection", s.instrument("delete-collection", http.HandlerFunc(s.handleDeleteCollection)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("authentication disabled — set DOCUCHAT_API_KEY to protect this server")
	}

	handler := authMiddleware(cfg.APIKey, rl.middleware(mux))
	handler = requestLogger(log, handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleIndex handles POST /index: a multipart form carrying any combination
// of raw text, up to three PDF files, and a website link, all targeting one
// collection. Uploaded PDFs are spooled to temp files that the ingestion
// pipeline removes after extraction.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := r.ParseMultipartForm(maxRequestSize); err != nil {
		s.writeError(w, r, core.Validationf("invalid multipart form: %v", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	req := core.IngestRequest{
		Collection: r.FormValue("collectionName"),
		Text:       r.FormValue("text"),
		WebsiteURL: r.FormValue("websiteLink"),
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["files"]
	}
	if len(files) > maxUploadFiles {
		s.writeError(w, r, core.Validationf("at most %d files per request, got %d", maxUploadFiles, len(files)))
		return
	}

	paths, err := spoolUploads(files)
	if err != nil {
		// Drop anything already spooled; the pipeline never saw these paths.
		removeSpooled(r.Context(), paths)
		s.writeError(w, r, err)
		return
	}
	req.PDFPaths = paths

	res, err := s.svc.Ingest(r.Context(), req)
	if err != nil {
		// The pipeline only deletes files it consumed. A failure before the
		// PDF normalizer ran leaves the spooled files behind.
		removeSpooled(r.Context(), req.PDFPaths)
		s.metrics.ingestRequestsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		s.writeError(w, r, err)
		return
	}
	s.metrics.ingestRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestSegmentsTotal.Add(float64(res.Segments))

	s.writeJSON(w, r, http.StatusOK, res)
}

// spoolUploads copies the uploaded files into temp files and returns their
// paths. Each file must carry a .pdf name and stay within maxFileSize.
func spoolUploads(files []*multipart.FileHeader) ([]string, error) {
	var paths []string
	for _, fh := range files {
		if fh.Size > maxFileSize {
			return paths, core.Validationf("file %q exceeds the %d MiB limit", fh.Filename, maxFileSize>>20)
		}
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
			return paths, core.Validationf("file %q is not a PDF", fh.Filename)
		}

		src, err := fh.Open()
		if err != nil {
			return paths, core.Validationf("cannot read upload %q: %v", fh.Filename, err)
		}

		dst, err := os.CreateTemp("", "docuchat-upload-*.pdf")
		if err != nil {
			src.Close()
			return paths, fmt.Errorf("server: spool upload: %w", err)
		}
		paths = append(paths, dst.Name())

		_, err = io.Copy(dst, src)
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, fmt.Errorf("server: spool upload %q: %w", fh.Filename, err)
		}
	}
	return paths, nil
}

// removeSpooled deletes spooled upload files that were never consumed.
// Files already removed by the ingestion pipeline are skipped silently.
func removeSpooled(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			logging.FromContext(ctx).Warn("failed to remove spooled upload",
				slog.String("path", p),
				slog.Any("error", err))
		}
	}
}

// handleQuery handles POST /query: retrieve context for the question and
// return a grounded answer.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, core.Validationf("invalid request body"))
		return
	}

	start := time.Now()
	answer, err := s.svc.Query(r.Context(), req.CollectionName, req.Query)
	if err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		s.writeError(w, r, err)
		return
	}
	s.metrics.queryRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.queryDurationSeconds.Observe(time.Since(start).Seconds())

	s.writeJSON(w, r, http.StatusOK, queryResponse{Response: answer})
}

// handleGetCollections handles GET /get-collections.
func (s *Server) handleGetCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.svc.Collections(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, r, http.StatusOK, collectionsResponse{Collections: names})
}

// handleGetMessages handles GET /get-messages?collectionName=<name>.
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("collectionName")
	turns, err := s.svc.Transcript(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if turns == nil {
		turns = []convo.Turn{}
	}
	s.writeJSON(w, r, http.StatusOK, messagesResponse{Messages: turns})
}

// handleClearMessages handles POST /clear-messages.
func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, core.Validationf("invalid request body"))
		return
	}
	if err := s.svc.ClearTranscript(r.Context(), req.CollectionName); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, statusResponse{Status: "ok"})
}

// handleDeleteCollection handles DELETE /delete-collection.
func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, core.Validationf("invalid request body"))
		return
	}
	if err := s.svc.DeleteCollection(r.Context(), req.CollectionName); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, statusResponse{Status: "ok"})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError maps the error kind onto an HTTP status and writes the error
// envelope. Upstream causes are logged but never leaked to the client
// verbatim beyond the wrapped message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())

	kind := core.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case core.KindValidation:
		status = http.StatusBadRequest
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindUpstream:
		status = http.StatusBadGateway
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		status = http.StatusRequestEntityTooLarge
		kind = core.KindValidation
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("kind", kind.String()), slog.Any("error", err))
	} else {
		log.Warn("request rejected", slog.String("kind", kind.String()), slog.Any("error", err))
	}

	s.writeJSON(w, r, status, errorBody{Error: errorDetail{
		Kind:    kind.String(),
		Message: err.Error(),
	}})
}

// outcomeLabel buckets an error into the metric outcome label.
func outcomeLabel(err error) string {
	switch core.KindOf(err) {
	case core.KindValidation:
		return "validation"
	case core.KindNotFound:
		return "not_found"
	case core.KindUpstream:
		return "upstream"
	default:
		return "error"
	}
}
