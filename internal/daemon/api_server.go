package daemon

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"nightcore/internal/api"
	"nightcore/internal/config"
	"nightcore/internal/jobs"
	"nightcore/internal/logging"
	"nightcore/internal/services"
)

//go:embed index.html
var indexPage []byte

// maxRequestBody caps /generate bodies; a job request is a handful of fields.
const maxRequestBody = 64 << 10

const headerRequestID = "X-Request-ID"

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	r := mux.NewRouter()
	// Filenames are matched verbatim and vetted by the artifact store.
	r.SkipClean(true)
	r.HandleFunc("/", srv.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/generate", srv.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/download/{filename:.+}", srv.handleDownload).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/cookies", authMiddleware(cfg.Paths.APIToken, srv.handleCookies)).Methods(http.MethodPost)
	r.HandleFunc("/api/status", srv.handleStatus).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		srv.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	srv.handler = srv.withRequestID(r)
	// No WriteTimeout: /generate holds the connection for queue wait plus
	// both tool timeouts.
	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address is not configured")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withRequestID stamps every response with X-Request-ID, reusing a sane
// incoming value, and logs the request once it completes.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		ctx := services.WithRequestID(r.Context(), id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		logging.WithContext(ctx, s.logger).Debug("request handled",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *apiServer) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if limiter := s.daemon.comp.Limiter; limiter != nil {
		key := limiter.ClientKey(r)
		if !limiter.Allow(key) {
			wait := int(math.Ceil(limiter.RetryAfter(key).Seconds()))
			if wait < 1 {
				wait = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(wait))
			logging.WithContext(r.Context(), s.logger).Info("generate request rate limited",
				logging.String(logging.FieldEventType, "rate_limited"),
				logging.String("client", key),
				logging.Int("retry_after_seconds", wait),
			)
			s.writeJSON(w, http.StatusTooManyRequests, jobs.Failed(
				fmt.Sprintf("Too many requests. Try again in %d seconds.", wait),
				"Patience is a virtue. You should try it sometime.",
			))
			return
		}
	}

	req := jobs.DefaultRequest()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, jobs.Failed(
			"Invalid request body: "+err.Error(),
			jobs.ErrorFlavor(jobs.StageValidate, services.KindValidation, jobs.RandomPicker),
		))
		return
	}

	outcome := s.daemon.comp.Gate.Submit(r.Context(), req)
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	path, info, err := s.daemon.comp.Store.Resolve(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	file, err := os.Open(path)
	if err != nil {
		// Swept between Resolve and Open.
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	defer file.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name()))
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

func (s *apiServer) handleCookies(w http.ResponseWriter, r *http.Request) {
	jar := s.daemon.comp.Cookies
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, jar.MaxBytes()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("cookie jar exceeds %d bytes", jar.MaxBytes()))
			return
		}
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	if err := jar.Write(r.Context(), data); err != nil {
		status := http.StatusInternalServerError
		switch services.Kind(err) {
		case services.KindValidation:
			status = http.StatusBadRequest
		case services.KindTimeout:
			status = http.StatusServiceUnavailable
		}
		if status != http.StatusBadRequest {
			logging.WithContext(r.Context(), s.logger).Error("cookie jar update failed", logging.Error(err))
		}
		s.writeError(w, status, services.Message(err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.CookieUploadResponse{Success: true, Path: jar.Path(), Bytes: len(data)})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
