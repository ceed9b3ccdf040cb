package storage

import (
	"net/url"
	"strings"
)

const avatarBaseURL = "https://ui-avatars.com/api/"

// URLResolver turns stored object keys into public URLs. Object storage itself lives elsewhere.
type URLResolver struct {
	cloudURL string
}

func NewURLResolver(cloudURL string) *URLResolver {
	return &URLResolver{cloudURL: strings.TrimRight(cloudURL, "/")}
}

// ProfilePictureURL resolves path, or a generated avatar for the name when no picture was uploaded.
func (r *URLResolver) ProfilePictureURL(path, firstName, lastName string) string {
	if path == "" {
		return DefaultAvatarURL(firstName, lastName)
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if r == nil || r.cloudURL == "" {
		return "/" + strings.TrimLeft(path, "/")
	}
	return r.cloudURL + "/" + strings.TrimLeft(path, "/")
}

func DefaultAvatarURL(firstName, lastName string) string {
	q := url.Values{}
	q.Set("name", strings.TrimSpace(firstName+" "+lastName))
	q.Set("background", "random")
	q.Set("format", "png")
	return avatarBaseURL + "?" + q.Encode()
}
