package model

import (
	"fmt"
	"strings"
	"time"
)

// MediaKind is the requested output format of a download
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// ParseMediaKind maps the public type parameter (mp3, mp4) to a MediaKind
func ParseMediaKind(typ string) (MediaKind, bool) {
	switch typ {
	case "mp3":
		return KindAudio, true
	case "mp4":
		return KindVideo, true
	}
	return "", false
}

// Extension returns the file extension of the kind
func (k MediaKind) Extension() string {
	if k == KindAudio {
		return "mp3"
	}
	return "mp4"
}

// ContentType returns the MIME type used when serving the kind
func (k MediaKind) ContentType() string {
	if k == KindAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

// DownloadRequest identifies one media artifact
type DownloadRequest struct {
	VideoID string
	Kind    MediaKind
}

// Filename returns the deterministic on-disk name {id}.{ext}
func (r DownloadRequest) Filename() string {
	return fmt.Sprintf("%s.%s", r.VideoID, r.Kind.Extension())
}

// WatchURL returns the canonical page URL handed to the extractor
func (r DownloadRequest) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + r.VideoID
}

// SearchResult is one parsed line of extractor search output
type SearchResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Duration  string `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error     string   `json:"error"`
	Message   string   `json:"message,omitempty"`
	Code      int      `json:"code,omitempty"`
	Note      string   `json:"note,omitempty"`
	Solutions []string `json:"solutions,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Endpoints []string  `json:"endpoints"`
}

// Cookie is one named session credential
type Cookie struct {
	Name  string
	Value string
}

// CookieSet is an ordered list of session credentials
type CookieSet []Cookie

// Populated returns the cookies that carry a value
func (s CookieSet) Populated() CookieSet {
	var out CookieSet
	for _, c := range s {
		if strings.TrimSpace(c.Value) != "" {
			out = append(out, c)
		}
	}
	return out
}

// Configured reports whether at least one value is present
func (s CookieSet) Configured() bool {
	return len(s.Populated()) > 0
}

// Header joins populated cookies into a single Cookie header value
func (s CookieSet) Header() string {
	pop := s.Populated()
	parts := make([]string, 0, len(pop))
	for _, c := range pop {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// CookieJarDomain is the domain written into materialized jars
const CookieJarDomain = ".youtube.com"

// NetscapeJar renders populated cookies in the tab separated cookies.txt
// layout understood by the extractor.
func (s CookieSet) NetscapeJar(expires time.Time) string {
	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n")
	for _, c := range s.Populated() {
		fmt.Fprintf(&b, "%s\tTRUE\t/\tTRUE\t%d\t%s\t%s\n", CookieJarDomain, expires.Unix(), c.Name, c.Value)
	}
	return b.String()
}
