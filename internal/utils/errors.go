package utils

import "fmt"

// StatusError is an HTTP status the state machine refused to stream.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned HTTP %d for %s", e.StatusCode, e.URL)
}

// TooSmallError is a streamed file rejected for being below the plausible size.
type TooSmallError struct {
	Size int64
	Min  int64
}

func (e *TooSmallError) Error() string {
	return fmt.Sprintf("file size %d bytes is below the minimum of %d bytes", e.Size, e.Min)
}
