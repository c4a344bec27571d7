package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/models"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	claims *models.Claims
}

// claimsSink lets Authenticate hand the caller's identity back to an outer
// RequestLogger, whose request context never sees it.
type claimsSink interface {
	setClaims(*models.Claims)
}

func (s *statusRecorder) setClaims(c *models.Claims) {
	s.claims = c
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request with its status and latency.
func RequestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			fields := log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if claims, ok := GetUserFromContext(r.Context()); ok {
				fields["user_id"] = claims.UserID
			} else if rec.claims != nil {
				fields["user_id"] = rec.claims.UserID
			}
			entry := logger.WithFields(fields)
			switch {
			case rec.status >= 500:
				entry.Error("Request failed")
			case rec.status >= 400:
				entry.Warn("Request rejected")
			default:
				entry.Info("Request served")
			}
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
