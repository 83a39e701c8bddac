package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger adapts chi's request logging to slog.
type requestLogger struct {
	logger *slog.Logger
}

func (l requestLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestEntry{
		logger: l.logger.With(
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		),
	}
}

type requestEntry struct {
	logger *slog.Logger
}

func (e *requestEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	e.logger.Log(context.Background(), level, "request", "status", status, "bytes", bytes, "elapsed", elapsed)
}

func (e *requestEntry) Panic(v any, stack []byte) {
	e.logger.Error("handler panic", "panic", v, "stack", string(stack))
}
