package files

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var mimeExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/x-icon":  ".ico",
	"image/svg+xml": ".svg",

	"video/mp4":  ".mp4",
	"video/webm": ".webm",
	"video/avi":  ".avi",
	"audio/mpeg": ".mp3",
	"audio/wave": ".wav",
	"audio/ogg":  ".ogg",

	"application/ogg":              ".ogg",
	"application/pdf":              ".pdf",
	"application/zip":              ".zip",
	"application/x-gzip":           ".gz",
	"application/x-rar-compressed": ".rar",
}

// InferExtension picks a file extension for content whose destination has
// none. sniffedMime is the content type detected from the leading bytes of
// the stream; when it is missing or unmapped the leading bytes are matched
// against magic numbers. ok is false when neither stage recognises the
// content.
func InferExtension(sniffedMime string, leading []byte) (ext string, ok bool) {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(sniffedMime, ";", 2)[0]))
	if e, found := mimeExtensions[base]; found {
		return e, true
	}
	if len(leading) == 0 {
		return "", false
	}
	m := mimetype.Detect(leading)
	if m.Is("application/octet-stream") || m.Is("text/plain") || m.Extension() == "" {
		return "", false
	}
	return m.Extension(), true
}

// HasKnownExtension reports whether path already ends in something that looks
// like a real extension.
func HasKnownExtension(path string) bool {
	ext := filepath.Ext(path)
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
