package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/opd-ai/storybook/bookcompiler"
	"github.com/opd-ai/storybook/srv/generator"
	storybook "github.com/opd-ai/storybook/src"
)

type createResponse struct {
	ID        string `json:"id"`
	StatusURL string `json:"status_url"`
	SocketURL string `json:"ws_url"`
}

type statusResponse struct {
	generator.Status
	ManuscriptURL string `json:"manuscript_url,omitempty"`
	CoverURL      string `json:"cover_url,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func isValidID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *BookServer) buildDir(id string) string {
	return filepath.Join(s.workDir, id)
}

func (s *BookServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *BookServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	var req generator.BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.New().String()
	progress := generator.NewBuildProgress(id, req.Title, s.persist)
	s.persist(progress.Status())
	s.progress.Set(id, progress, cache.DefaultExpiration)
	s.startBuild(id, req, progress)

	s.log.Info("build queued", zap.String("build", id), zap.Int("pages", len(req.Texts)))
	writeJSON(w, http.StatusAccepted, createResponse{
		ID:        id,
		StatusURL: "/api/books/" + id,
		SocketURL: "/ws/" + id,
	})
}

func (s *BookServer) lookup(w http.ResponseWriter, r *http.Request) (generator.Status, bool) {
	id := chi.URLParam(r, "id")
	if !isValidID(id) {
		writeError(w, http.StatusBadRequest, "invalid build id")
		return generator.Status{}, false
	}
	status, ok, err := s.store.Load(r.Context(), id)
	if err != nil {
		s.log.Error("loading build status", zap.String("build", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load build")
		return status, false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "build not found")
		return status, false
	}
	return status, true
}

func (s *BookServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.lookup(w, r)
	if !ok {
		return
	}
	resp := statusResponse{Status: status}
	if status.Manuscript != "" {
		resp.ManuscriptURL = fmt.Sprintf("/api/books/%s/%s", status.ID, bookcompiler.ManuscriptFile)
	}
	if status.Cover != "" {
		resp.CoverURL = fmt.Sprintf("/api/books/%s/%s", status.ID, bookcompiler.CoverFile)
	}
	// server paths stay private
	resp.Manuscript, resp.Cover = "", ""
	writeJSON(w, http.StatusOK, resp)
}

func (s *BookServer) handleDownload(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, ok := s.lookup(w, r)
		if !ok {
			return
		}
		path := status.Manuscript
		if name == bookcompiler.CoverFile {
			path = status.Cover
		}
		if path == "" {
			if !status.State.Finished() {
				writeError(w, http.StatusConflict, "build still running")
			} else {
				writeError(w, http.StatusNotFound, strings.TrimSuffix(name, ".pdf")+" was not produced")
			}
			return
		}

		f, err := os.Open(path)
		if err != nil {
			s.log.Error("opening build output", zap.String("path", path), zap.Error(err))
			writeError(w, http.StatusGone, "build output no longer available")
			return
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not read build output")
			return
		}

		filename := storybook.FolderName(status.Title) + "_" + name
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		http.ServeContent(w, r, filename, st.ModTime(), f)
	}
}
