// Package logger is the process-wide structured logger: slog JSON on
// stdout, TRACE..FATAL levels, sampled warnings and errors, and counters
// that are incremented whether or not a line is sampled.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// Level is slog.Level
type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

var (
	Logger          *slog.Logger
	errorSampleRate atomic.Int32
	programLevel    = new(slog.LevelVar)
	exit            = os.Exit
)

// Counters for the stats endpoint
var (
	TotalErrors     atomic.Int64
	TotalWarnings   atomic.Int64
	Total5xxErrors  atomic.Int64
	Total4xxErrors  atomic.Int64
	Total400Errors  atomic.Int64
	Total404Errors  atomic.Int64
	Total409Errors  atomic.Int64
	Total422Errors  atomic.Int64
	Predictions     atomic.Int64
	UnknownCategory atomic.Int64
	Rejections      atomic.Int64
	SlowRequests    atomic.Int64
)

func init() {
	errorSampleRate.Store(1)

	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = LevelInfo
	}
	programLevel.Set(level)

	if rate, err := strconv.Atoi(os.Getenv("ERROR_SAMPLE_RATE")); err == nil && rate > 0 {
		errorSampleRate.Store(int32(rate))
	}

	SetOutput(os.Stdout)
}

// SetOutput replaces the JSON handler's destination
func SetOutput(w io.Writer) {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       programLevel,
		ReplaceAttr: levelNames,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// levelNames prints the custom levels by name instead of "DEBUG-4"
func levelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch {
	case level <= LevelTrace:
		a.Value = slog.StringValue("TRACE")
	case level >= LevelFatal:
		a.Value = slog.StringValue("FATAL")
	}
	return a
}

// Configure applies a level name and sample rate, e.g. from the config file
func Configure(level string, sampleRate int) error {
	if level != "" {
		l, err := ParseLevel(level)
		if err != nil {
			return err
		}
		SetLevel(l)
	}
	if sampleRate > 0 {
		errorSampleRate.Store(int32(sampleRate))
	}
	return nil
}

// SetLevel sets the minimum log level
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// GetLevel returns the current minimum log level
func GetLevel() slog.Level {
	return programLevel.Level()
}

// SampleRate returns N where 1 in N warnings and errors is written
func SampleRate() int {
	return int(errorSampleRate.Load())
}

// ParseLevel converts a level name to slog.Level. Empty means INFO.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

func shouldSample() bool {
	rate := errorSampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

// Trace logs at trace level
func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs at debug level
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs at info level
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn counts the warning and logs it if sampled
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error counts the error and logs it if sampled
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs and exits with status 1
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	exit(1)
}

// ErrorHttp5xx counts a server error response
func ErrorHttp5xx() {
	Total5xxErrors.Add(1)
	TotalErrors.Add(1)
}

// WarnHttp4xx counts a client error response
func WarnHttp4xx(status int) {
	Total4xxErrors.Add(1)
	TotalWarnings.Add(1)

	switch status {
	case 400:
		Total400Errors.Add(1)
	case 404:
		Total404Errors.Add(1)
	case 409:
		Total409Errors.Add(1)
	case 422:
		Total422Errors.Add(1)
	}
}

// WarnSlowRequest counts a request over the slow threshold
func WarnSlowRequest() {
	SlowRequests.Add(1)
	TotalWarnings.Add(1)
}

// Stats is a point-in-time copy of the counters
type Stats struct {
	Errors          int64 `json:"errors"`
	Warnings        int64 `json:"warnings"`
	Http5xx         int64 `json:"http5xx"`
	Http4xx         int64 `json:"http4xx"`
	Http400         int64 `json:"http400"`
	Http404         int64 `json:"http404"`
	Http409         int64 `json:"http409"`
	Http422         int64 `json:"http422"`
	Predictions     int64 `json:"predictions"`
	UnknownCategory int64 `json:"unknownCategory"`
	Rejections      int64 `json:"rejections"`
	SlowRequests    int64 `json:"slowRequests"`
}

// Snapshot reads every counter
func Snapshot() Stats {
	return Stats{
		Errors:          TotalErrors.Load(),
		Warnings:        TotalWarnings.Load(),
		Http5xx:         Total5xxErrors.Load(),
		Http4xx:         Total4xxErrors.Load(),
		Http400:         Total400Errors.Load(),
		Http404:         Total404Errors.Load(),
		Http409:         Total409Errors.Load(),
		Http422:         Total422Errors.Load(),
		Predictions:     Predictions.Load(),
		UnknownCategory: UnknownCategory.Load(),
		Rejections:      Rejections.Load(),
		SlowRequests:    SlowRequests.Load(),
	}
}
