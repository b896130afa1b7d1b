// Package files holds the pure filename logic of the download pipeline.
package files

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tanq16/ripfetch/internal/utils"
)

var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]+`)

const fallbackName = "download"

// SanitizeName strips characters that are illegal in a filename on any
// common filesystem.
func SanitizeName(name string) string {
	clean := illegalChars.ReplaceAllString(name, "")
	clean = strings.TrimRight(strings.TrimSpace(clean), ". ")
	if clean == "" {
		return fallbackName
	}
	return clean
}

// SanitizePath sanitizes only the final element of path.
func SanitizePath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, SanitizeName(base))
}

// PartPath is the stable working file used for resumable downloads.
func PartPath(target string) string {
	return target + utils.PartSuffix
}

// TempPath is a unique working file next to target.
func TempPath(target string) string {
	return fmt.Sprintf("%s.%s%s", target, uuid.NewString()[:8], utils.TempSuffix)
}

// WorkingSuffixLen is the longest suffix a working file adds to its target.
const WorkingSuffixLen = 1 + 8 + len(utils.TempSuffix)
