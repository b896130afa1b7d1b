package fetch

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tanq16/ripfetch/internal/utils"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Jitter returns a uniformly random duration in [0, 5s).
func Jitter() time.Duration {
	return time.Duration(rand.Int64N(int64(5 * time.Second)))
}

// Backoff is min(base * 2^attempt + jitter, MaxBackoff).
func Backoff(base time.Duration, attempt int, jitter time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 || base > utils.MaxBackoff>>attempt {
		return utils.MaxBackoff
	}
	d := base*time.Duration(int64(1)<<attempt) + jitter
	if d > utils.MaxBackoff || d < 0 {
		return utils.MaxBackoff
	}
	return d
}

const maxRetryAfterSecs = int64(math.MaxInt64 / time.Second)

// ParseRetryAfter reads a Retry-After header given either as delay seconds
// or as an HTTP date.
func ParseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if errors.Is(err, strconv.ErrRange) && secs > 0 {
		err = nil
	}
	if err == nil {
		if secs < 0 {
			return 0, false
		}
		if secs > maxRetryAfterSecs {
			secs = maxRetryAfterSecs
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
