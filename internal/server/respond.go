package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/attachments"
	"github.com/sadopc/tally/internal/store"
)

// badRequest is a malformed request caught before reaching the store.
type badRequest struct {
	field string
	msg   string
}

func (e *badRequest) Error() string {
	if e.field == "" {
		return e.msg
	}
	return e.field + ": " + e.msg
}

func badRequestf(field, format string, args ...any) error {
	return &badRequest{field: field, msg: fmt.Sprintf(format, args...)}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return badRequestf("", "invalid JSON body: %v", err)
	}
	if decoder.More() {
		return badRequestf("", "unexpected extra JSON data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps err onto a status code. Unknown errors are logged and
// reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		br *badRequest
		ve *store.ValidationError
		tl *attachments.TooLargeError
		mb *http.MaxBytesError
	)
	switch {
	case errors.As(err, &br):
		s.writeStatus(w, r, http.StatusBadRequest, br.Error(), fieldDetails(br.field))
	case errors.As(err, &ve):
		s.writeStatus(w, r, http.StatusBadRequest, ve.Error(), fieldDetails(ve.Field))
	case errors.Is(err, store.ErrNotFound), errors.Is(err, attachments.ErrMissing):
		s.writeStatus(w, r, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, store.ErrConflict):
		s.writeStatus(w, r, http.StatusConflict, store.ErrConflict.Error(), nil)
	case errors.As(err, &tl):
		s.writeStatus(w, r, http.StatusRequestEntityTooLarge, tl.Error(), nil)
	case errors.As(err, &mb):
		s.writeStatus(w, r, http.StatusRequestEntityTooLarge, (&attachments.TooLargeError{Limit: s.maxUpload}).Error(), nil)
	case errors.Is(err, attachments.ErrEmpty):
		s.writeStatus(w, r, http.StatusBadRequest, err.Error(), fieldDetails("file"))
	case store.IsUnavailable(err):
		s.log.WithError(err).WithField("path", r.URL.Path).Warn("database unavailable")
		s.writeStatus(w, r, http.StatusServiceUnavailable, "service unavailable", nil)
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		s.writeStatus(w, r, http.StatusInternalServerError, "internal server error", nil)
	}
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, status int, msg string, details any) {
	if status < 500 {
		s.log.WithFields(logrus.Fields{
			"path":   r.URL.Path,
			"status": status,
		}).Debugf("request rejected: %s", msg)
	}
	writeJSON(w, status, api.ErrorBody{Error: msg, Details: details})
}

func fieldDetails(field string) any {
	if field == "" {
		return nil
	}
	return map[string]string{"field": field}
}

func queryString(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func queryInt(r *http.Request, key string, def, max int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, badRequestf(key, "must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
