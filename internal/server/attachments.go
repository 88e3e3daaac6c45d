package server

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/store"
)

// multipartOverhead is allowed on top of the file limit for form fields and
// part headers.
const multipartOverhead = 1 << 20

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	list, err := s.store.ListAttachments(r.Context(), user.ID, store.AttachmentFilter{
		ProjectID: queryString(r, "projectId"),
		TaskID:    queryString(r, "taskId"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIAttachments(list))
}

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mb *http.MaxBytesError
		if errors.As(err, &mb) {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, badRequestf("", "invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	projectID := strings.TrimSpace(r.FormValue("projectId"))
	if projectID == "" {
		s.writeError(w, r, badRequestf("projectId", "is required"))
		return
	}
	var taskID *string
	if v := strings.TrimSpace(r.FormValue("taskId")); v != "" {
		taskID = &v
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, badRequestf("file", "is required"))
		return
	}
	defer file.Close()

	user := userFrom(r.Context())
	// Ownership first so nothing is written for a foreign project.
	if _, err := s.store.GetProject(r.Context(), user.ID, projectID); err != nil {
		s.writeError(w, r, err)
		return
	}

	key, size, err := s.blobs.Put(user.ID, header.Filename, file, s.maxUpload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.store.CreateAttachment(r.Context(), user.ID, store.AttachmentParams{
		ProjectID:  projectID,
		TaskID:     taskID,
		Filename:   filepath.Base(header.Filename),
		StorageKey: key,
		MimeType:   mimeTypeOf(header.Header.Get("Content-Type"), header.Filename),
		SizeBytes:  size,
	})
	if err != nil {
		s.removeBlobs(key)
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAPIAttachment(*a))
}

func (s *Server) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	a, err := s.store.GetAttachment(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.blobs.Open(a.StorageKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": a.Filename}))
	http.ServeContent(w, r, a.Filename, a.CreatedAt, f)
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	a, err := s.store.DeleteAttachment(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.removeBlobs(a.StorageKey)
	writeJSON(w, http.StatusOK, api.Success{Success: true})
}

// removeBlobs deletes stored files whose metadata is gone. Failures leave an
// orphan file and are only logged.
func (s *Server) removeBlobs(keys ...string) {
	for _, key := range keys {
		if err := s.blobs.Remove(key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("remove attachment blob")
		}
	}
}

func mimeTypeOf(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}
