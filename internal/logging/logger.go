package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultMaxAge is the retention period for log files (7 days)
	DefaultMaxAge = 7 * 24 * time.Hour

	dirPermissions  = 0755
	filePermissions = 0644

	// MaxMessageLength caps messages forwarded from the webview
	MaxMessageLength = 10000

	// MaxFieldValueLength caps individual field values from the webview
	MaxFieldValueLength = 1000

	// MaxFieldCount caps the number of fields from the webview
	MaxFieldCount = 50
)

// sensitiveKeys are redacted from webview-originated log fields
var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"token", "access_token", "refresh_token", "auth_token",
	"secret", "client_secret",
	"api_key", "apikey", "api-key",
	"authorization", "auth",
	"credential", "credentials",
	"private_key", "privatekey",
	"cookie", "cookies",
}

var (
	defaultLogger *slog.Logger
	loggerMu      sync.RWMutex
	currentConfig Config
	configMu      sync.RWMutex
)

// Config holds logger configuration
type Config struct {
	LogDir     string        // Directory for log files
	MaxAge     time.Duration // Maximum age of log files before cleanup
	JSONOutput bool          // Use JSON output format
	DevMode    bool          // Tee output to stdout for development
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		LogDir:     filepath.Join(homeDir, ".codedeck", "logs"),
		MaxAge:     DefaultMaxAge,
		JSONOutput: true,
		DevMode:    os.Getenv("CODEDECK_DEV") != "",
	}
}

// GetConfig returns the current logger configuration
func GetConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return currentConfig
}

// rotatingWriter rotates log files by date and prunes old files
type rotatingWriter struct {
	dir         string
	prefix      string
	maxAge      time.Duration
	file        *os.File
	currentDate string
	mu          sync.Mutex
	pruning     atomic.Bool
}

func newRotatingWriter(dir, prefix string, maxAge time.Duration) (*rotatingWriter, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, err
	}
	w := &rotatingWriter{dir: dir, prefix: prefix, maxAge: maxAge}
	if err := w.rotate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if today != w.currentDate {
		if err := w.rotate(); err != nil {
			return 0, err
		}
		if w.pruning.CompareAndSwap(false, true) {
			go func() {
				defer w.pruning.Store(false)
				w.prune()
			}()
		}
	}
	return w.file.Write(p)
}

func (w *rotatingWriter) rotate() error {
	if w.file != nil {
		w.file.Close()
	}

	today := time.Now().Format("2006-01-02")
	name := filepath.Join(w.dir, w.prefix+"."+today+".log")

	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return err
	}
	w.file = f
	w.currentDate = today

	// Convenience symlink to the current log
	link := filepath.Join(w.dir, w.prefix+".log")
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove old log symlink", "path", link, "error", err)
	}
	if err := os.Symlink(name, link); err != nil {
		slog.Warn("Failed to create log symlink", "path", link, "error", err)
	}
	return nil
}

// prune removes dated log files older than maxAge
func (w *rotatingWriter) prune() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		slog.Warn("Failed to read log directory", "dir", w.dir, "error", err)
		return
	}

	cutoff := time.Now().Add(-w.maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !isDatedLogFile(entry.Name(), w.prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(w.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				slog.Warn("Failed to remove old log file", "path", path, "error", err)
			}
		}
	}
}

// isDatedLogFile matches prefix.YYYY-MM-DD.log but not the prefix.log symlink
func isDatedLogFile(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix+".") || !strings.HasSuffix(name, ".log") {
		return false
	}
	return len(name) == len(prefix)+len(".2006-01-02.log")
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	configMu.Lock()
	currentConfig = cfg
	configMu.Unlock()

	fileWriter, err := newRotatingWriter(cfg.LogDir, "codedeck", cfg.MaxAge)
	if err != nil {
		return err
	}

	var out io.Writer = fileWriter
	if cfg.DevMode {
		out = io.MultiWriter(fileWriter, os.Stdout)
	}

	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.JSONOutput {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	return nil
}

// InitDefault initializes the logger with default configuration
func InitDefault() error {
	return Init(DefaultConfig())
}

// Logger returns the default logger
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if defaultLogger == nil {
		return slog.Default()
	}
	return defaultLogger
}

// Debug logs at debug level
func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }

// Info logs at info level
func Info(msg string, args ...any) { Logger().Info(msg, args...) }

// Warn logs at warn level
func Warn(msg string, args ...any) { Logger().Warn(msg, args...) }

// Error logs at error level
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

// With returns a logger with additional attributes
func With(args ...any) *slog.Logger { return Logger().With(args...) }

// MaskPath replaces the home directory prefix with ~ for logging
func MaskPath(path string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, homeDir) {
		return "~" + path[len(homeDir):]
	}
	return path
}

// WebviewEntry is a log record forwarded from the webview layer
type WebviewEntry struct {
	Level   string         `json:"level"`
	Module  string         `json:"module"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// LogFromWebview logs an entry from the webview with sanitization applied
func LogFromWebview(entry WebviewEntry) {
	msg := entry.Message
	if len(msg) > MaxMessageLength {
		msg = msg[:MaxMessageLength] + "...[truncated]"
	}

	logger := Logger().With("source", "webview", "module", entry.Module)
	if fields := sanitizeFields(entry.Fields); len(fields) > 0 {
		logger = logger.With("fields", fields)
	}

	switch strings.ToLower(strings.TrimSpace(entry.Level)) {
	case "debug":
		logger.Debug(msg)
	case "warn":
		logger.Warn(msg)
	case "error":
		logger.Error(msg)
	default:
		logger.Info(msg)
	}
}

// sanitizeFields redacts sensitive keys and truncates oversized values
func sanitizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	result := make(map[string]any, len(fields))
	count := 0
	for key, value := range fields {
		if count >= MaxFieldCount {
			result["_truncated"] = true
			break
		}
		count++

		if isSensitiveKey(key) {
			result[key] = "[REDACTED]"
			continue
		}
		if s, ok := value.(string); ok && len(s) > MaxFieldValueLength {
			result[key] = s[:MaxFieldValueLength] + "...[truncated]"
			continue
		}
		result[key] = value
	}
	return result
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
