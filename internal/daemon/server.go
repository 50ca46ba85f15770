package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"tailor/internal/api"
	"tailor/internal/logging"
	"tailor/internal/services"
	"tailor/internal/workspace"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "tailor"

// multipartOverhead is allowed on top of the upload size limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// Server exposes a workspace over HTTP.
type Server struct {
	ws          *workspace.Workspace
	logger      *slog.Logger
	limiter     RateLimiter
	version     string
	maxBodySize int64
}

// Option customizes a Server.
type Option func(*Server)

// WithRateLimiter replaces the edit endpoint limiter.
func WithRateLimiter(l RateLimiter) Option {
	return func(s *Server) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithVersion sets the version reported by /api/health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer builds the HTTP surface for ws from its configuration.
func NewServer(ws *workspace.Workspace, opts ...Option) *Server {
	cfg := ws.Config
	s := &Server{
		ws:          ws,
		logger:      logging.NewComponentLogger(ws.Logger, "api-server"),
		limiter:     unlimited{},
		version:     "dev",
		maxBodySize: int64(cfg.API.MaxUploadMB)<<20 + multipartOverhead,
	}
	if cfg.API.EditRatePerMinute > 0 {
		s.limiter = NewIPRateLimiter(cfg.API.EditRatePerMinute, cfg.API.EditBurst, 0)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/edit", s.handleEdit)
	mux.HandleFunc("GET /api/files", s.handleFiles)
	mux.HandleFunc("GET /api/assets/{name}/history", s.handleHistory)
	mux.HandleFunc("GET /api/operations", s.handleOperations)
	mux.HandleFunc("GET /media/{filename}", s.handleMedia)
	mux.Handle("GET /metrics", s.ws.Metrics.Handler())
	return s.withRequestID(mux)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "online", Service: ServiceName, Version: s.version})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart form with a file field", services.KindValidation)
		return
	}
	part, err := nextFilePart(reader)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), services.KindValidation)
		return
	}
	defer part.Close()

	v, err := s.ws.Importer.Import(r.Context(), part.FileName(), part)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit", services.KindValidation)
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UploadResponse{
		Status:   "success",
		Filename: v.Filename,
		SizeMB:   math.Round(float64(v.SizeBytes)/(1<<20)*100) / 100,
		Path:     api.MediaURL(v.Filename),
	})
}

func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no file provided")
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart form: %w", err)
		}
		if part.FormName() == "file" {
			if part.FileName() == "" {
				_ = part.Close()
				return nil, errors.New("no file selected")
			}
			return part, nil
		}
		_ = part.Close()
	}
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientKey(r)) {
		w.Header().Set("Retry-After", "60")
		s.writeError(w, http.StatusTooManyRequests, "too many edit requests; slow down", "rate_limited")
		return
	}
	filename, query, err := editParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), services.KindValidation)
		return
	}

	asset := s.ws.AssetOf(filename)
	out, err := s.ws.Pipeline.HandleCommand(r.Context(), asset, query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromOutcome(query, out))
}

// editParams accepts either a form body or a JSON object with filename and
// query fields.
func editParams(r *http.Request) (string, string, error) {
	var filename, query string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Filename string `json:"filename"`
			Query    string `json:"query"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil {
			return "", "", fmt.Errorf("invalid JSON body: %w", err)
		}
		filename, query = body.Filename, body.Query
	} else {
		if err := r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("invalid form: %w", err)
		}
		filename, query = r.PostForm.Get("filename"), r.PostForm.Get("query")
	}
	filename, query = strings.TrimSpace(filename), strings.TrimSpace(query)
	if filename == "" || query == "" {
		return "", "", errors.New("filename and query are required")
	}
	return filename, query, nil
}

func (s *Server) handleFiles(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.SplitFiles(s.ws.Store.All()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	asset := s.ws.AssetOf(r.PathValue("name"))
	history, err := s.ws.Store.History(asset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Asset: asset, Versions: api.FromVersions(history)})
}

func (s *Server) handleOperations(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.FromRegistry(s.ws.Registry, s.ws.Resolver))
}

// handleMedia serves registered versions only; stray files in the media
// directory are never exposed.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	v, err := s.ws.Store.Get(r.PathValue("filename"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	f, err := os.Open(s.ws.Store.Path(v))
	if err != nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrVersionNotFound, "api", "media", v.Filename, err))
		return
	}
	defer f.Close()
	http.ServeContent(w, r, v.Filename, v.CreatedAt, f)
}

// Serve accepts connections on listener until ctx ends, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}
