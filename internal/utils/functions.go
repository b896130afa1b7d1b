package utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// ParseCookieArgs turns "name=value" arguments into a cookie map.
func ParseCookieArgs(cookies []string) map[string]string {
	result := make(map[string]string)
	for _, cookie := range cookies {
		parts := strings.SplitN(cookie, "=", 2)
		if len(parts) == 2 && strings.TrimSpace(parts[0]) != "" {
			result[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return result
}

func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(bytes))
}

// CleanArtifacts removes working files left next to outputPath by
// interrupted or failed runs.
func CleanArtifacts(outputPath string) ([]string, error) {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, base) {
			continue
		}
		isPart := name == base+PartSuffix
		isTemp := strings.HasPrefix(name, base+".") && strings.HasSuffix(name, TempSuffix)
		if !isPart && !isTemp {
			continue
		}
		filePath := filepath.Join(dir, name)
		if err := os.Remove(filePath); err != nil {
			return removed, err
		}
		removed = append(removed, filePath)
	}
	return removed, nil
}
