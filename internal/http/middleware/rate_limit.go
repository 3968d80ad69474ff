package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nammaooru/civic-reports/internal/domain"
	"github.com/nammaooru/civic-reports/internal/http/response"
	"github.com/nammaooru/civic-reports/internal/repo/redisrepo"
	"github.com/nammaooru/civic-reports/pkg/logger"
)

// OtpRateLimit throttles OTP issuance per client IP and per target email.
// The limiter fails open: an unavailable backend never locks users out.
func OtpRateLimit(limiter redisrepo.RateLimiter, perHour int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keys := []string{"otp:ip:" + clientIP(r)}
			if email := peekEmail(r); email != "" {
				keys = append(keys, "otp:email:"+email)
			}

			for _, key := range keys {
				allowed, err := limiter.Allow(r.Context(), key, perHour, time.Hour)
				if err != nil {
					logger.WarnContext(r.Context(), "Rate limit check failed", "error", err)
					continue
				}
				if !allowed {
					response.RateLimit(w, "Too many verification requests. Please try again later.")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// peekEmail reads the email field from the JSON body without consuming it.
func peekEmail(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var req struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	return domain.NormalizeEmail(req.Email)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
