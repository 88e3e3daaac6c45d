package server

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/tally/internal/store"
)

type userKey struct{}

func userFrom(ctx context.Context) *store.User {
	u, _ := ctx.Value(userKey{}).(*store.User)
	return u
}

// authed resolves the bearer token to a user before calling h.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.writeStatus(w, r, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		u, err := s.store.UserByToken(r.Context(), token)
		if err != nil {
			if store.IsUnavailable(err) {
				s.writeError(w, r, err)
				return
			}
			s.writeStatus(w, r, http.StatusUnauthorized, "invalid token", nil)
			return
		}
		if rt, ok := w.(*responseTracker); ok {
			rt.userID = u.ID
		}
		h(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type responseTracker struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	userID      string
}

func (w *responseTracker) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseTracker) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseTracker) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		tracker, ok := w.(*responseTracker)
		if !ok {
			tracker = &responseTracker{ResponseWriter: w}
		}
		next.ServeHTTP(tracker, r)

		status := tracker.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   status,
			"duration": time.Since(start).Round(time.Microsecond).String(),
		}
		if tracker.userID != "" {
			fields["user"] = tracker.userID
		}
		entry := s.log.WithFields(fields)
		if status >= 500 {
			entry.Warn("request")
		} else {
			entry.Info("request")
		}
	})
}

func (s *Server) recoverHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writer := &responseTracker{ResponseWriter: w}
		defer func() {
			if recovered := recover(); recovered != nil {
				s.log.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  recovered,
				}).Errorf("panic handling request\n%s", debug.Stack())
				if writer.wroteHeader {
					return
				}
				writeJSON(writer, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(writer, r)
	})
}
