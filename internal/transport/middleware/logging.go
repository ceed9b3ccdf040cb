package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport"
)

const (
	filtered       = "[FILTERED]"
	maxLoggedBytes = 4 << 10
)

// sensitiveFields are matched as substrings of lowercased header names and JSON keys.
var sensitiveFields = []string{
	"password",
	"token",
	"authorization",
	"cookie",
	"secret",
	"api_key",
	"credential",
}

// LoggingMiddleware logs each request and its response with secrets masked. Run it after RequestID to get the
// trace id on every line.
func LoggingMiddleware(base *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lg := base
			if traceID := internal.TraceIDFromContext(r.Context()); traceID != "" {
				lg = lg.With("trace_id", traceID)
			}

			logRequest(lg, r)

			rw := &bodyRecorder{statusWriter: statusWriter{ResponseWriter: w}}
			next.ServeHTTP(rw, r)

			logResponse(lg, r, rw, time.Since(start))
		})
	}
}

type bodyRecorder struct {
	statusWriter
	body bytes.Buffer
}

func (rw *bodyRecorder) Write(b []byte) (int, error) {
	if room := maxLoggedBytes - rw.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		rw.body.Write(b[:room])
	}
	return rw.statusWriter.Write(b)
}

func logRequest(lg *slog.Logger, r *http.Request) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		body, _ = io.ReadAll(io.LimitReader(r.Body, maxLoggedBytes+1))
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
	}

	lg.InfoContext(r.Context(), "incoming request",
		"method", r.Method,
		"path", transport.LogPath(r),
		"query", filterSensitiveQuery(r.URL.Query()),
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"headers", filterSensitiveHeaders(r.Header),
		"body", filterSensitiveBody(body),
	)
}

func logResponse(lg *slog.Logger, r *http.Request, rw *bodyRecorder, duration time.Duration) {
	status := rw.Status()

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	lg.Log(r.Context(), level, "response",
		"method", r.Method,
		"path", transport.LogPath(r),
		"status_code", status,
		"duration_ms", duration.Milliseconds(),
		"body", filterSensitiveBody(rw.body.Bytes()),
	)
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = filtered
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func filterSensitiveQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	out := make(url.Values, len(query))
	for key, values := range query {
		if isSensitive(key) {
			out[key] = []string{filtered}
			continue
		}
		out[key] = values
	}
	return out.Encode()
}

// filterSensitiveBody masks sensitive JSON keys at any depth. Non-JSON bodies that mention a sensitive word are
// dropped entirely.
func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > maxLoggedBytes {
		return "[TRUNCATED]"
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		if isSensitive(string(body)) {
			return filtered
		}
		return string(body)
	}

	out, err := json.Marshal(filterSensitiveJSON(data))
	if err != nil {
		return "[UNSERIALIZABLE]"
	}
	return string(out)
}

func filterSensitiveJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				out[key] = filtered
				continue
			}
			out[key] = filterSensitiveJSON(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = filterSensitiveJSON(item)
		}
		return out
	default:
		return v
	}
}
