package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docqa/internal/jobs"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/store"
)

type uploadResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
	JobID    string `json:"job_id"`
}

// handleUpload saves the file into the docs directory and starts a
// background rebuild tracked as a job.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupported(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	if err := os.MkdirAll(s.cfg.DocsDir, 0o755); err != nil {
		jsonError(w, "failed to prepare docs directory", http.StatusInternalServerError)
		return
	}
	target := filepath.Join(s.cfg.DocsDir, filename)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		jsonError(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	job := s.jobs.Create(filename)
	go s.runRebuildJob(job)

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:  true,
		Filename: filename,
		Message:  fmt.Sprintf("Uploaded %s. Rebuild job started in background.", filename),
		JobID:    job.ID,
	})
}

// runRebuildJob rebuilds the index off the request path. The manager's
// rebuild mutex serializes concurrent uploads.
func (s *Server) runRebuildJob(job *jobs.Job) {
	job.SetStatus(jobs.StatusRunning, "")
	if _, err := s.manager.Rebuild(); err != nil {
		s.log.Error("background rebuild failed", "job_id", job.ID, "error", err)
		job.SetStatus(jobs.StatusFailed, err.Error())
		return
	}
	job.SetStatus(jobs.StatusSuccess, "")
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.jobs.Get(jobID)
	if job == nil {
		jsonError(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleIndexNode serves one tree node for inspection. An optional
// level_hint narrows the disk scan to a single bucket.
func (s *Server) handleIndexNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	levelHint := store.NoLevelHint
	if v := r.URL.Query().Get("level_hint"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			levelHint = n
		}
	}
	node, _, err := s.manager.Store().Load(nodeID, levelHint)
	if err != nil || node == nil {
		jsonError(w, "Node not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
