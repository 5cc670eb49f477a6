package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel accepts the names printed by Level.String in any case.
func ParseLevel(s string) (Level, error) {
	for level, name := range levelNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return level, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Fields whose values never reach the log output.
var redactedKeys = map[string]bool{
	"password":      true,
	"password_hash": true,
	"token":         true,
	"session_token": true,
	"invite_token":  true,
	"authorization": true,
	"device_token":  true,
}

// Coordinates are logged at roughly 100m precision so request logs cannot
// be used to track where a student is.
var coordinateKeys = map[string]bool{
	"lat":       true,
	"lng":       true,
	"latitude":  true,
	"longitude": true,
}

const coordinatePrecision = 1000

// Logger writes one JSON object per line. Loggers derived with WithFields
// share the parent's writer and lock.
type Logger struct {
	mu     *sync.Mutex
	output io.Writer
	level  Level
	fields map[string]interface{}
}

func New() *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		output: os.Stdout,
		level:  LevelInfo,
	}
}

func (l *Logger) SetOutput(w io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	return l
}

func (l *Logger) SetLevel(level Level) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	return l
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a child logger that adds fields to every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		mu:     l.mu,
		output: l.output,
		level:  l.level,
		fields: merge(l.fields, fields),
	}
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields)
}

func (l *Logger) log(level Level, msg string, extra []map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		Fields:    sanitize(merge(l.fields, extra...)),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		_, _ = fmt.Fprintf(l.output, "%s %s %s (unencodable fields: %v)\n", entry.Timestamp, entry.Level, msg, err)
		return
	}
	data = append(data, '\n')
	_, _ = l.output.Write(data)
}

func merge(base map[string]interface{}, more ...map[string]interface{}) map[string]interface{} {
	n := len(base)
	for _, m := range more {
		n += len(m)
	}
	if n == 0 {
		return nil
	}
	out := make(map[string]interface{}, n)
	for k, v := range base {
		out[k] = v
	}
	for _, m := range more {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func sanitize(fields map[string]interface{}) map[string]interface{} {
	for k, v := range fields {
		key := strings.ToLower(k)
		switch {
		case redactedKeys[key]:
			fields[k] = "[redacted]"
		case coordinateKeys[key]:
			if f, ok := v.(float64); ok {
				fields[k] = math.Round(f*coordinatePrecision) / coordinatePrecision
			}
		}
	}
	return fields
}

var Default = New()

func SetDefaultLevel(level Level) {
	Default.SetLevel(level)
}

func Debug(msg string, fields ...map[string]interface{}) {
	Default.Debug(msg, fields...)
}

func Info(msg string, fields ...map[string]interface{}) {
	Default.Info(msg, fields...)
}

func Warn(msg string, fields ...map[string]interface{}) {
	Default.Warn(msg, fields...)
}

func Error(msg string, fields ...map[string]interface{}) {
	Default.Error(msg, fields...)
}
