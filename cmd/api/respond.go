package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/audit"
	"github.com/safar/gold-ledger/internal/database"
)

const actorHeader = "X-User-ID"

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("encode JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// statusFor maps service error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case apperr.IsValidation(err):
		return http.StatusUnprocessableEntity
	case database.IsNotFound(err):
		return http.StatusNotFound
	case apperr.IsStateConflict(err):
		return http.StatusConflict
	case apperr.IsIntegrity(err):
		return http.StatusBadRequest
	case apperr.IsConcurrency(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
		respondError(w, status, "internal error")
		return
	}

	if status == http.StatusUnprocessableEntity {
		var fields []fieldError
		var many apperr.ValidationErrors
		var one *apperr.ValidationError
		switch {
		case errors.As(err, &many):
			for _, ve := range many {
				fields = append(fields, fieldError{Field: ve.Field, Message: ve.Message})
			}
		case errors.As(err, &one):
			fields = append(fields, fieldError{Field: one.Field, Message: one.Message})
		}
		respondJSON(w, status, map[string]any{"error": "validation failed", "fields": fields})
		return
	}

	respondError(w, status, err.Error())
}

// actorFrom reads the acting user id. A missing header means an anonymous
// actor.
func actorFrom(r *http.Request) (*int64, error) {
	raw := r.Header.Get(actorHeader)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return nil, apperr.Invalid(actorHeader, "must be a positive integer")
	}
	return &id, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Invalid("id", "must be a positive integer")
	}
	return id, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Invalid("body", "invalid JSON: %v", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withRequestMeta attaches client address and user agent for audit entries
// and logs each request.
func withRequestMeta(logger *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			ip = strings.TrimSpace(first)
		}

		ctx := audit.WithRequestMeta(r.Context(), ip, r.UserAgent())
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"ip":       ip,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}
