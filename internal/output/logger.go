package output

import (
	"github.com/rs/zerolog"
)

// Logger writes lifecycle events as structured log lines. Byte progress is
// only logged at trace level.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(l zerolog.Logger) *Logger {
	return &Logger{log: l.With().Str("op", "output/logger").Logger()}
}

func (l *Logger) Started(url string) {
	l.log.Debug().Str("url", url).Msg("Download started")
}

func (l *Logger) TotalBytes(url string, n int64) {
	l.log.Debug().Str("url", url).Int64("total", n).Msg("Size known")
}

func (l *Logger) BytesCompleted(url string, n int64) {
	l.log.Trace().Str("url", url).Int64("bytes", n).Msg("Progress")
}

func (l *Logger) Exists(url, path string) {
	l.log.Info().Str("url", url).Str("path", path).Msg("Target exists")
}

func (l *Logger) Skipped(url, reason string) {
	l.log.Info().Str("url", url).Str("reason", reason).Msg("Download skipped")
}

func (l *Logger) Completed(url, path string) {
	l.log.Info().Str("url", url).Str("path", path).Msg("Download completed")
}

func (l *Logger) Errored(url string, err error) {
	l.log.Error().Str("url", url).Err(err).Msg("Download failed")
}

func (l *Logger) Interrupted(url string) {
	l.log.Warn().Str("url", url).Msg("Download interrupted")
}

func (l *Logger) LimitReached() {
	l.log.Warn().Msg("Download limit reached")
}
