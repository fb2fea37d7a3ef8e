// Package logging provides categorized file-based logging for entityscout.
// Logs are written to <workspace>/.scout/logs/ with one file per category
// per day. Logging is a silent no-op unless debug mode is enabled, so
// production runs pay nothing for it.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category names one subsystem's log stream.
type Category string

const (
	CategoryBoot      Category = "boot"      // startup and wiring
	CategoryPipeline  Category = "pipeline"  // controller and router decisions
	CategoryDiscovery Category = "discovery" // web search
	CategoryCrawler   Category = "crawler"   // page fetching
	CategoryVerifier  Category = "verifier"  // credibility scoring
	CategoryExtractor Category = "extractor" // entity extraction and merging
	CategoryStore     Category = "store"     // persistence
	CategoryInference Category = "inference" // model API calls
	CategoryUsage     Category = "usage"     // token/cost accounting
)

// Options controls the logging subsystem. The caller resolves these from
// its own configuration; this package never reads config files itself.
type Options struct {
	Debug      bool            // master switch; false = no-op
	Level      string          // debug, info, warn, error
	JSONFormat bool            // structured lines instead of text
	Categories map[string]bool // nil = all categories enabled
}

// Log levels.
const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

// Logger writes to one category's file. A Logger with a nil inner logger
// is a no-op, which is how disabled categories are represented.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	logsDir  string
	opts     Options
	logLevel int
)

// Initialize sets up the logging directory under the workspace. Safe to
// call again with new options; existing per-category files stay open.
func Initialize(workspace string, o Options) error {
	mu.Lock()
	defer mu.Unlock()

	opts = o
	switch o.Level {
	case "debug":
		logLevel = levelDebug
	case "warn", "warning":
		logLevel = levelWarn
	case "error":
		logLevel = levelError
	default:
		logLevel = levelInfo
	}

	if !o.Debug {
		logsDir = ""
		return nil
	}
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	dir := filepath.Join(workspace, ".scout", "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	logsDir = dir
	return nil
}

func categoryEnabled(category Category) bool {
	if !opts.Debug {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Disabled categories
// get a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if !categoryEnabled(category) || logsDir == "" {
		mu.RUnlock()
		return &Logger{category: category}
	}
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Close flushes and closes every open category file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	for cat, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
		delete(loggers, cat)
	}
}

// structuredEntry is the JSON line format.
type structuredEntry struct {
	Timestamp int64  `json:"ts"`
	Category  string `json:"cat"`
	Level     string `json:"lvl"`
	Message   string `json:"msg"`
}

func (l *Logger) write(level int, name, format string, args ...any) {
	if l.logger == nil || logLevel > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if opts.JSONFormat {
		data, err := json.Marshal(structuredEntry{
			Timestamp: time.Now().UnixMilli(),
			Category:  string(l.category),
			Level:     name,
			Message:   msg,
		})
		if err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	l.logger.Printf("[%s] %s", name, msg)
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...any) { l.write(levelDebug, "DEBUG", format, args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) { l.write(levelInfo, "INFO", format, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) { l.write(levelWarn, "WARN", format, args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) { l.write(levelError, "ERROR", format, args...) }
