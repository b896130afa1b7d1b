//go:build windows

package files

// MAX_PATH minus the terminating NUL.
var platformLimits = Limits{MaxName: 255, MaxPath: 259}
