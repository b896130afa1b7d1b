package files

import (
	"errors"
	"path/filepath"
	"unicode/utf8"
)

var ErrPathTooLong = errors.New("path cannot be shortened to fit the filesystem limits")

// Limits are the filesystem capabilities the shortening strategy works
// against, in bytes. Zero means unlimited.
type Limits struct {
	MaxName int
	MaxPath int
}

// PlatformLimits are the limits of the host filesystem.
func PlatformLimits() Limits {
	return platformLimits
}

// PathStrategy shortens a path so that path plus reserve more bytes of
// suffix fits the limits it was built for.
type PathStrategy interface {
	Fit(path string, reserve int) (string, error)
}

func StrategyFor(l Limits) PathStrategy {
	if l.MaxPath > 0 {
		return totalPathStrategy{maxPath: l.MaxPath, maxName: l.MaxName}
	}
	return nameStrategy{maxName: l.MaxName}
}

type nameStrategy struct {
	maxName int
}

func (s nameStrategy) Fit(path string, reserve int) (string, error) {
	if s.maxName <= 0 {
		return path, nil
	}
	return shortenBase(path, s.maxName-reserve)
}

type totalPathStrategy struct {
	maxPath int
	maxName int
}

func (s totalPathStrategy) Fit(path string, reserve int) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	budget := len(filepath.Base(path)) - (len(abs) + reserve - s.maxPath)
	if len(abs)+reserve <= s.maxPath {
		budget = len(filepath.Base(path))
	}
	if s.maxName > 0 && budget > s.maxName-reserve {
		budget = s.maxName - reserve
	}
	return shortenBase(path, budget)
}

// shortenBase trims the stem of path's base name to at most budget bytes in
// total, keeping the extension and cutting on a rune boundary.
func shortenBase(path string, budget int) (string, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if len(base) <= budget {
		return path, nil
	}
	ext := filepath.Ext(base)
	if len(ext) > 16 {
		ext = ""
	}
	stem := base[:len(base)-len(ext)]
	keep := budget - len(ext)
	if keep < 1 {
		return "", ErrPathTooLong
	}
	stem = truncateRunes(stem, keep)
	if stem == "" {
		return "", ErrPathTooLong
	}
	return filepath.Join(dir, stem+ext), nil
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
