package crawler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

var (
	nonASCII    = regexp.MustCompile(`[^\x20-\x7E]`)
	underscores = regexp.MustCompile(`_+`)
)

// extractFilename derives a deterministic, filesystem-safe filename from a
// document URL. The source site embeds the filename mid-path followed by a
// tracking suffix (/documents/123/abc/name.pdf/<uuid>?t=...), so the path is
// scanned for the segment containing the extension marker. When no usable
// segment exists, the name falls back to a hash of the URL — still stable
// across repeat crawls of the same URL.
func extractFilename(rawURL, ext string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		for _, part := range strings.Split(parsed.Path, "/") {
			if !strings.Contains(strings.ToLower(part), ext) {
				continue
			}
			name := part
			if decoded, err := url.QueryUnescape(part); err == nil {
				name = decoded
			}
			name = strings.TrimSpace(strings.ReplaceAll(name, "+", " "))
			name = nonASCII.ReplaceAllString(name, "_")
			name = underscores.ReplaceAllString(name, "_")
			name = strings.Trim(name, "_ ")
			if name == "" || strings.EqualFold(name, ext) {
				break
			}
			if !strings.HasSuffix(strings.ToLower(name), ext) {
				name += ext
			}
			return name
		}
	}

	hash := sha256.Sum256([]byte(rawURL))
	return "doc_" + hex.EncodeToString(hash[:])[:8] + ext
}
