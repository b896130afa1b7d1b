//go:build !windows

package files

var platformLimits = Limits{MaxName: 255}
