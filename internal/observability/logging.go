package observability

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Logger is the structured logger the core's components share: slog
// underneath, with request/session correlation pulled from the context
// and secret redaction applied to every message and attribute before it
// reaches a handler.
type Logger struct {
	logger  *slog.Logger
	config  LogConfig
	redacts []*regexp.Regexp
}

// LogConfig configures a Logger.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string

	// Format selects the handler: "json" (production) or "text" (dev).
	Format string

	// Output defaults to os.Stdout.
	Output io.Writer

	// AddSource includes file:line in records.
	AddSource bool

	// RedactPatterns extends the built-in secret patterns.
	RedactPatterns []string
}

// ContextKey types the context keys this package reads.
type ContextKey string

const (
	// RequestIDKey correlates log records to one remote request.
	RequestIDKey ContextKey = "request_id"

	// SessionIDKey correlates log records to one agent session.
	SessionIDKey ContextKey = "session_id"
)

// defaultRedactPatterns match the secret shapes most likely to leak into
// log attributes: key=value style assignments, provider API keys, JWTs.
var defaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)[\s:=]+["\']?([a-zA-Z0-9_\-]{16,})["\']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-\.]{16,})`,
	`(?i)(secret|password|passwd|pwd)[\s:=]+["\']?([^\s"']{8,})["\']?`,
	`sk-ant-[a-zA-Z0-9_-]{95,}`,
	`sk-[a-zA-Z0-9]{48,}`,
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
	`(?i)(secret|key|token)[\s:=]+["\']?([a-fA-F0-9]{32,})["\']?`,
}

// sensitiveAttrKeys are map keys whose values are redacted wholesale,
// regardless of shape.
var sensitiveAttrKeys = map[string]bool{
	"password": true, "passwd": true, "secret": true, "token": true,
	"api_key": true, "apikey": true, "private_key": true, "privatekey": true,
	"auth": true, "authorization": true,
}

// NewLogger builds a Logger; zero-valued config fields fall back to
// stdout, info, json.
func NewLogger(config LogConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Format == "" {
		config.Format = "json"
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(config.Level),
		AddSource: config.AddSource,
	}
	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}

	var redacts []*regexp.Regexp
	for _, pattern := range append(append([]string{}, defaultRedactPatterns...), config.RedactPatterns...) {
		if re, err := regexp.Compile(pattern); err == nil {
			redacts = append(redacts, re)
		}
	}

	return &Logger{logger: slog.New(handler), config: config, redacts: redacts}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	attrs := make([]any, 0, len(args)+4)
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := GetSessionID(ctx); id != "" {
		attrs = append(attrs, "session_id", id)
	}
	if id := GetRunID(ctx); id != "" {
		attrs = append(attrs, "run_id", id)
	}
	if id := GetToolCallID(ctx); id != "" {
		attrs = append(attrs, "tool_call_id", id)
	}
	if id := GetAgentID(ctx); id != "" {
		attrs = append(attrs, "agent_id", id)
	}
	if id := GetMessageID(ctx); id != "" {
		attrs = append(attrs, "message_id", id)
	}
	for _, arg := range args {
		attrs = append(attrs, l.redactValue(arg))
	}
	l.logger.Log(ctx, level, l.redactString(msg), attrs...)
}

// WithFields returns a logger with args attached to every record.
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), config: l.config, redacts: l.redacts}
}

func (l *Logger) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return l.redactString(val)
	case error:
		return l.redactString(val.Error())
	case []byte:
		return l.redactString(string(val))
	case map[string]any:
		return l.redactMap(val)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return l.redactMap(m)
	default:
		if b, err := json.Marshal(v); err == nil {
			return l.redactString(string(b))
		}
		return v
	}
}

func (l *Logger) redactString(s string) string {
	for _, re := range l.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

func (l *Logger) redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		normalized := strings.ToLower(strings.ReplaceAll(k, "-", "_"))
		if sensitiveAttrKeys[normalized] {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = l.redactValue(v)
	}
	return out
}

// AddRequestID stores a request id for log correlation.
func AddRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// AddSessionID stores a session id for log correlation.
func AddSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetRequestID reads the correlation request id, "" when absent.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetSessionID reads the correlation session id, "" when absent.
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}
