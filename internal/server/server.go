// Package server exposes the HTTP boundary: format discovery, conversion
// admission, job submission, status polling, and result downloads.
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
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formatforge/formatforge/internal/config"
	"github.com/formatforge/formatforge/internal/format"
	"github.com/formatforge/formatforge/internal/model"
	"github.com/formatforge/formatforge/internal/repository"
	"github.com/formatforge/formatforge/internal/signing"
)

// ObjectStore is the object-storage surface the API needs.
type ObjectStore interface {
	UploadSource(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	OpenResult(ctx context.Context, objectKey string) (io.ReadCloser, error)
}

// Dispatcher triggers asynchronous processing of an accepted job. Backed by
// the asynq queue in multi-process deployments and by the in-process pool
// otherwise.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Server hosts the HTTP handlers.
type Server struct {
	cfg        *config.Config
	store      repository.Store
	objects    ObjectStore
	dispatcher Dispatcher
	signer     *signing.Signer
	log        *slog.Logger
	server     *http.Server
	once       sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, store repository.Store, objects ObjectStore, dispatcher Dispatcher, signer *signing.Signer, log *slog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		store:      store,
		objects:    objects,
		dispatcher: dispatcher,
		signer:     signer,
		log:        log,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Routes(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info("api listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes assembles the handler tree. Exposed so tests can drive the API
// through httptest without binding a socket.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/formats", s.handleFormats)
	mux.HandleFunc("/api/conversions/validate", s.handleValidate)
	mux.HandleFunc("/api/conversions/targets", s.handleTargets)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobRoute)
	return corsMiddleware(s.loggingMiddleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, format.All())
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	source := r.URL.Query().Get("source")
	target := r.URL.Query().Get("target")
	if source == "" || target == "" {
		respondError(w, http.StatusBadRequest, "missing-parameters", "source and target are required")
		return
	}
	respondJSON(w, http.StatusOK, format.Evaluate(source, target))
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	source := r.URL.Query().Get("source")
	if source == "" {
		respondError(w, http.StatusBadRequest, "missing-parameters", "source is required")
		return
	}
	if !format.Known(source) {
		respondError(w, http.StatusNotFound, format.ReasonUnsupportedFormat, "unknown source format")
		return
	}
	targets := format.ValidTargets(source)
	if targets == nil {
		targets = []format.Target{}
	}
	respondJSON(w, http.StatusOK, targets)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleJobRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleJobStatus(w, r, id)
		return
	}
	switch parts[1] {
	case "download":
		s.handleDownload(w, r, id)
	case "download-url":
		s.handleDownloadURL(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// handleCreateJob re-runs admission server-side: the client-side pre-check
// against /api/conversions/targets is advisory only. Warned conversions
// require an explicit confirmed=true resubmission before a job is created.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+64*1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad-request", "expecting multipart form")
		return
	}

	var tmp *tempUpload
	fields := make(map[string]string)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if tmp != nil {
				tmp.cleanup()
			}
			respondError(w, http.StatusBadRequest, "bad-request", "failed to read upload")
			return
		}
		if part.FormName() == "file" {
			if tmp != nil {
				part.Close()
				continue
			}
			tmp, err = s.persistTemp(part)
			if err != nil {
				respondError(w, http.StatusBadRequest, "bad-request", err.Error())
				return
			}
			continue
		}
		value, err := readField(part)
		if err != nil {
			if tmp != nil {
				tmp.cleanup()
			}
			respondError(w, http.StatusBadRequest, "bad-request", "failed to read form field")
			return
		}
		fields[part.FormName()] = value
	}
	if tmp == nil {
		respondError(w, http.StatusBadRequest, "bad-request", "missing file part")
		return
	}
	defer tmp.cleanup()

	target := format.Normalize(fields["target"])
	if target == "" {
		respondError(w, http.StatusBadRequest, "bad-request", "missing target format")
		return
	}
	sourceExt := format.Normalize(filepath.Ext(tmp.filename))
	confirmed, _ := strconv.ParseBool(fields["confirmed"])

	decision := format.Evaluate(sourceExt, target)
	if !decision.Allowed {
		respondError(w, http.StatusUnprocessableEntity, decision.Reason,
			fmt.Sprintf("conversion from %s to %s is not permitted", sourceExt, target))
		return
	}
	if decision.Warning != "" && !confirmed {
		respondJSON(w, http.StatusConflict, map[string]string{
			"status":  "confirmation_required",
			"warning": decision.Warning,
		})
		return
	}

	var options model.Options
	if raw := fields["options"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			respondError(w, http.StatusBadRequest, "bad-request", "options must be a JSON object of strings")
			return
		}
	}

	jobID := uuid.NewString()
	objectKey := fmt.Sprintf("uploads/%s/%s", jobID, filepath.Base(tmp.filename))
	if err := s.uploadToStorage(ctx, objectKey, tmp); err != nil {
		s.log.Error("upload source", "error", err)
		respondError(w, http.StatusInternalServerError, "storage-error", "failed to store file")
		return
	}

	job := &model.Job{
		ID:           jobID,
		SourceName:   tmp.filename,
		SourceKey:    objectKey,
		SourceSize:   tmp.size,
		SourceMIME:   tmp.contentType,
		SourceFormat: sourceExt,
		TargetFormat: target,
		Options:      options,
	}
	if err := s.store.Create(ctx, job); err != nil {
		s.log.Error("create job", "error", err)
		respondError(w, http.StatusInternalServerError, "storage-error", "failed to store job")
		return
	}
	if err := s.dispatcher.Dispatch(ctx, jobID); err != nil {
		s.log.Error("dispatch job", "job", jobID, "error", err)
		// Leave the record consistent: a job that never reaches the worker
		// must still end terminal.
		_ = s.store.MarkFailed(ctx, jobID, model.JobError{
			Code:    model.ErrCodeWorker,
			Message: "failed to dispatch job for processing",
		})
		respondError(w, http.StatusInternalServerError, "dispatch-error", "failed to queue job")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     jobID,
		"status": string(model.StatusQueued),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not-found", "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	expires := r.URL.Query().Get("expires")
	signature := r.URL.Query().Get("signature")
	if expires != "" || signature != "" {
		expiryUnix, err := strconv.ParseInt(expires, 10, 64)
		if err != nil || time.Unix(expiryUnix, 0).Before(time.Now()) {
			respondError(w, http.StatusUnauthorized, "url-expired", "download url expired")
			return
		}
		if !s.signer.Validate(id, expires, signature) {
			respondError(w, http.StatusUnauthorized, "invalid-signature", "invalid download signature")
			return
		}
	}
	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not-found", "job not found")
		return
	}
	if job.Status != model.StatusCompleted || job.Result == nil {
		respondError(w, http.StatusConflict, "not-completed", "job has no result to download")
		return
	}
	obj, err := s.objects.OpenResult(r.Context(), job.Result.ObjectKey)
	if err != nil {
		s.log.Error("open result", "job", id, "error", err)
		respondError(w, http.StatusInternalServerError, "storage-error", "result unavailable")
		return
	}
	defer obj.Close()
	w.Header().Set("Content-Type", job.Result.MIME)
	w.Header().Set("Content-Length", strconv.FormatInt(job.Result.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+job.Result.FileName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		s.log.Warn("stream result", "job", id, "error", err)
	}
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	job, err := s.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not-found", "job not found")
		return
	}
	if job.Status != model.StatusCompleted {
		respondError(w, http.StatusConflict, "not-completed", "job has no result to download")
		return
	}
	expiry := time.Now().Add(s.cfg.SignedURLTTL).Unix()
	signature := s.signer.Sign(id, expiry)
	downloadURL := fmt.Sprintf("/api/jobs/%s/download?expires=%d&signature=%s",
		url.PathEscape(id), expiry, url.QueryEscape(signature))
	respondJSON(w, http.StatusOK, map[string]string{
		"url":     downloadURL,
		"expires": strconv.FormatInt(expiry, 10),
	})
}

type tempUpload struct {
	f           *os.File
	path        string
	size        int64
	contentType string
	filename    string
}

func (t *tempUpload) cleanup() {
	t.f.Close()
	os.Remove(t.path)
}

// persistTemp streams a multipart file part to disk with a bounded memory
// footprint, sniffing the MIME type from the first 512 bytes.
func (s *Server) persistTemp(part *multipart.Part) (*tempUpload, error) {
	defer part.Close()
	tmpFile, err := os.CreateTemp(s.cfg.TempDir, "formatforge-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	discard := func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.cfg.MaxFileSize {
				discard()
				return nil, fmt.Errorf("file exceeds limit (%d bytes)", s.cfg.MaxFileSize)
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := tmpFile.Write(buf[:n]); err != nil {
				discard()
				return nil, fmt.Errorf("write temp file: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			discard()
			return nil, fmt.Errorf("read file: %w", readErr)
		}
	}
	if written == 0 {
		discard()
		return nil, errors.New("empty file")
	}
	if _, err := tmpFile.Seek(0, 0); err != nil {
		discard()
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	filename := part.FileName()
	if filename == "" {
		discard()
		return nil, errors.New("upload is missing a filename")
	}
	return &tempUpload{
		f:           tmpFile,
		path:        tmpFile.Name(),
		size:        written,
		contentType: http.DetectContentType(sniff),
		filename:    filepath.Base(filename),
	}, nil
}

func (s *Server) uploadToStorage(ctx context.Context, objectKey string, tmp *tempUpload) error {
	if _, err := tmp.f.Seek(0, 0); err != nil {
		return err
	}
	return s.objects.UploadSource(ctx, objectKey, tmp.f, tmp.size, tmp.contentType)
}

func readField(part *multipart.Part) (string, error) {
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, 8*1024))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}
