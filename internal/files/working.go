package files

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog/log"
)

// IsNameTooLong reports whether err is the filesystem rejecting a path for
// its length.
func IsNameTooLong(err error) bool {
	return errors.Is(err, syscall.ENAMETOOLONG)
}

// WorkingFile is an open working file and the target it will be committed to.
type WorkingFile struct {
	*os.File
	Target string
	Path   string
}

// OpenWorking opens the working file for target. With resume the stable part
// file is used and appendMode keeps its existing bytes; otherwise a fresh
// uniquely named sibling is created. A filename-too-long error shortens the
// target through strategy and retries the open once.
func OpenWorking(target string, resume, appendMode bool, strategy PathStrategy) (*WorkingFile, error) {
	w, err := openWorking(target, resume, appendMode)
	if err == nil || !IsNameTooLong(err) {
		return w, err
	}
	short, ferr := strategy.Fit(target, WorkingSuffixLen)
	if ferr != nil {
		return nil, fmt.Errorf("%w: %v", ferr, err)
	}
	if short == target {
		// strategy limits looser than the filesystem; fall back to the common name limit
		short, ferr = nameStrategy{maxName: 255}.Fit(target, WorkingSuffixLen)
		if ferr != nil {
			return nil, fmt.Errorf("%w: %v", ferr, err)
		}
	}
	log.Debug().Str("op", "files/working").Str("from", target).Str("to", short).Msg("Shortened filename")
	return openWorking(short, resume, false)
}

func openWorking(target string, resume, appendMode bool) (*WorkingFile, error) {
	path := TempPath(target)
	flags := os.O_CREATE | os.O_WRONLY | os.O_EXCL
	if resume {
		path = PartPath(target)
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if appendMode {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	return &WorkingFile{File: f, Target: target, Path: path}, nil
}

// Commit publishes the working file at target with a single rename.
func Commit(working, target string, strategy PathStrategy) (string, error) {
	err := os.Rename(working, target)
	if err == nil {
		return target, nil
	}
	if !IsNameTooLong(err) {
		return "", err
	}
	short, ferr := strategy.Fit(target, 0)
	if ferr != nil {
		return "", fmt.Errorf("%w: %v", ferr, err)
	}
	if err := os.Rename(working, short); err != nil {
		return "", err
	}
	return short, nil
}

// ResumeOffset is the size of target's part file, or 0 when there is none.
func ResumeOffset(target string) int64 {
	info, err := os.Stat(PartPath(target))
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return info.Size()
}

// AdoptPartial moves a partial file left at target to its part path so a
// resumed download continues it. Nothing moves when a part file already
// exists.
func AdoptPartial(target string) (bool, error) {
	if !Exists(target) || Exists(PartPath(target)) {
		return false, nil
	}
	if err := os.Rename(target, PartPath(target)); err != nil {
		return false, err
	}
	return true, nil
}

// RestorePartial puts an adopted part file back at target. An occupied
// target is left alone.
func RestorePartial(target string) error {
	part := PartPath(target)
	if !Exists(part) || Exists(target) {
		return nil
	}
	return os.Rename(part, target)
}

// Exists reports whether a regular file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
