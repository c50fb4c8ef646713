package logger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	return NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter creates a logger that writes to w at the given level
func NewWithWriter(w io.Writer, levelStr string) *Logger {
	level := getLogLevel(levelStr)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text handler in development, JSON otherwise
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("request_id", requestID)),
	}
}

// WithGuestID adds guest ID to logger context
func (l *Logger) WithGuestID(guestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("guest_id", guestID)),
	}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("error", err.Error())),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("user_agent", c.Request.UserAgent()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHTTPError logs a failed request; client errors at warn, server errors at error
func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	l.Logger.Log(c.Request.Context(), level,
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("ip", c.ClientIP()),
	)
}

// Booking lifecycle logging methods

// LogHoldCreated logs a new hold on a room
func (l *Logger) LogHoldCreated(ctx context.Context, reservationID, roomID, guestID string, expiresAt time.Time) {
	l.Logger.InfoContext(ctx,
		"Hold Created",
		slog.String("reservation_id", reservationID),
		slog.String("room_id", roomID),
		slog.String("guest_id", guestID),
		slog.Time("hold_expires_at", expiresAt),
	)
}

// LogBookingConfirmed logs a settled and confirmed reservation
func (l *Logger) LogBookingConfirmed(ctx context.Context, reservationID, roomID, settlementID string, amount float64) {
	l.Logger.InfoContext(ctx,
		"Booking Confirmed",
		slog.String("reservation_id", reservationID),
		slog.String("room_id", roomID),
		slog.String("settlement_id", settlementID),
		slog.Float64("amount", amount),
	)
}

// LogBookingRolledBack logs a hold released after a failed settlement
func (l *Logger) LogBookingRolledBack(ctx context.Context, reservationID, roomID string, cause error) {
	l.Logger.WarnContext(ctx,
		"Booking Rolled Back",
		slog.String("reservation_id", reservationID),
		slog.String("room_id", roomID),
		slog.String("cause", cause.Error()),
	)
}

// LogBookingCancelled logs a guest cancellation
func (l *Logger) LogBookingCancelled(ctx context.Context, reservationID, roomID, guestID string) {
	l.Logger.InfoContext(ctx,
		"Booking Cancelled",
		slog.String("reservation_id", reservationID),
		slog.String("room_id", roomID),
		slog.String("guest_id", guestID),
	)
}

// LogHoldsExpired logs a sweep pass that expired at least one hold
func (l *Logger) LogHoldsExpired(ctx context.Context, count int, now time.Time) {
	l.Logger.InfoContext(ctx,
		"Holds Expired",
		slog.Int("count", count),
		slog.Time("swept_at", now),
	)
}

// Security logging methods

// LogAuthFailure logs failed authentication
func (l *Logger) LogAuthFailure(ctx context.Context, reason, ip string) {
	l.Logger.WarnContext(ctx,
		"Authentication Failure",
		slog.String("reason", reason),
		slog.String("ip", ip),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Helper methods for common patterns

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.InfoContext(ctx, msg, args...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
