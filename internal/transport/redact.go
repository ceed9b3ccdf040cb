package transport

import (
	"net/http"
	"strings"
)

// Path segments that are followed by a bearer secret, such as /auth/reset-password/{token}.
var secretPathPrefixes = []string{"reset-password"}

const redacted = "[FILTERED]"

// LogPath is the request path safe to write to logs: the segment after a secret prefix is masked.
func LogPath(r *http.Request) string {
	return RedactPath(r.URL.Path)
}

func RedactPath(path string) string {
	segments := strings.Split(path, "/")
	masked := false
	for i := 0; i < len(segments)-1; i++ {
		for _, prefix := range secretPathPrefixes {
			if segments[i] == prefix && segments[i+1] != "" {
				segments[i+1] = redacted
				masked = true
			}
		}
	}
	if !masked {
		return path
	}
	return strings.Join(segments, "/")
}
