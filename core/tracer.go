package core

import (
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceLevel represents different levels of tracing
type TraceLevel int

const (
	TraceLevelOff TraceLevel = iota
	TraceLevelError
	TraceLevelWarn
	TraceLevelInfo
	TraceLevelDebug
	TraceLevelVerbose
)

// String returns the string representation of TraceLevel
func (tl TraceLevel) String() string {
	switch tl {
	case TraceLevelOff:
		return "OFF"
	case TraceLevelError:
		return "ERROR"
	case TraceLevelWarn:
		return "WARN"
	case TraceLevelInfo:
		return "INFO"
	case TraceLevelDebug:
		return "DEBUG"
	case TraceLevelVerbose:
		return "VERBOSE"
	default:
		return "UNKNOWN"
	}
}

// ParseTraceLevel parses a level name, case-insensitively
func ParseTraceLevel(s string) (TraceLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OFF", "":
		return TraceLevelOff, true
	case "ERROR":
		return TraceLevelError, true
	case "WARN":
		return TraceLevelWarn, true
	case "INFO":
		return TraceLevelInfo, true
	case "DEBUG":
		return TraceLevelDebug, true
	case "VERBOSE":
		return TraceLevelVerbose, true
	}
	return TraceLevelOff, false
}

// TraceComponent represents different components that can be traced
type TraceComponent string

const (
	TraceComponentExpression TraceComponent = "EXPRESSION"
	TraceComponentPattern    TraceComponent = "PATTERN"
	TraceComponentKernel     TraceComponent = "KERNEL"
	TraceComponentWorker     TraceComponent = "WORKER"
	TraceComponentCodec      TraceComponent = "CODEC"
	TraceComponentParquet    TraceComponent = "PARQUET"
	TraceComponentConfig     TraceComponent = "CONFIG"
)

var allComponents = []TraceComponent{
	TraceComponentExpression, TraceComponentPattern, TraceComponentKernel,
	TraceComponentWorker, TraceComponentCodec, TraceComponentParquet,
	TraceComponentConfig,
}

// Tracer is a leveled, per-component logger on top of zap
type Tracer struct {
	level             TraceLevel
	enabledComponents map[TraceComponent]bool
	logger            *zap.Logger
	mutex             sync.RWMutex
}

var (
	globalTracer *Tracer
	tracerOnce   sync.Once
)

// GetTracer returns the global tracer instance
func GetTracer() *Tracer {
	tracerOnce.Do(func() {
		globalTracer = NewTracer()
	})
	return globalTracer
}

// NewTracer creates a tracer configured from environment variables
func NewTracer() *Tracer {
	t := &Tracer{
		level:             TraceLevelOff,
		enabledComponents: make(map[TraceComponent]bool),
		logger:            newDefaultLogger(),
	}
	t.configureFromEnv()
	return t
}

func newDefaultLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// configureFromEnv reads SQLEVAL_TRACE_LEVEL and SQLEVAL_TRACE_COMPONENTS
func (t *Tracer) configureFromEnv() {
	if levelStr := os.Getenv("SQLEVAL_TRACE_LEVEL"); levelStr != "" {
		if level, ok := ParseTraceLevel(levelStr); ok {
			t.level = level
		}
	}
	if componentsStr := os.Getenv("SQLEVAL_TRACE_COMPONENTS"); componentsStr != "" {
		t.enableComponents(strings.Split(componentsStr, ","))
	}
}

func (t *Tracer) enableComponents(names []string) {
	for _, name := range names {
		name = strings.TrimSpace(strings.ToUpper(name))
		if name == "ALL" {
			for _, comp := range allComponents {
				t.enabledComponents[comp] = true
			}
			continue
		}
		if name != "" {
			t.enabledComponents[TraceComponent(name)] = true
		}
	}
}

// Configure applies a trace configuration section
func (t *Tracer) Configure(cfg TraceConfig) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if level, ok := ParseTraceLevel(cfg.Level); ok {
		t.level = level
	}
	t.enableComponents(cfg.Components)
}

// WithLogger replaces the zap logger entries are written to
func (t *Tracer) WithLogger(logger *zap.Logger) *Tracer {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.logger = logger
	return t
}

// SetLevel sets the trace level
func (t *Tracer) SetLevel(level TraceLevel) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.level = level
}

// EnableComponent enables tracing for a specific component
func (t *Tracer) EnableComponent(component TraceComponent) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.enabledComponents[component] = true
}

// DisableComponent disables tracing for a specific component
func (t *Tracer) DisableComponent(component TraceComponent) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.enabledComponents[component] = false
}

// IsEnabled checks if tracing is enabled for a given level and component
func (t *Tracer) IsEnabled(level TraceLevel, component TraceComponent) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.level >= level && t.enabledComponents[component]
}

func (t *Tracer) trace(level TraceLevel, component TraceComponent, message string, context []map[string]interface{}) {
	if !t.IsEnabled(level, component) {
		return
	}
	fields := []zap.Field{zap.String("component", string(component))}
	if len(context) > 0 {
		keys := make([]string, 0, len(context[0]))
		for k := range context[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, zap.Any(k, context[0][k]))
		}
	}

	t.mutex.RLock()
	logger := t.logger
	t.mutex.RUnlock()

	switch level {
	case TraceLevelError:
		logger.Error(message, fields...)
	case TraceLevelWarn:
		logger.Warn(message, fields...)
	case TraceLevelInfo:
		logger.Info(message, fields...)
	default:
		logger.Debug(message, append(fields, zap.String("trace_level", level.String()))...)
	}
}

// Error logs an error-level trace
func (t *Tracer) Error(component TraceComponent, message string, context ...map[string]interface{}) {
	t.trace(TraceLevelError, component, message, context)
}

// Warn logs a warning-level trace
func (t *Tracer) Warn(component TraceComponent, message string, context ...map[string]interface{}) {
	t.trace(TraceLevelWarn, component, message, context)
}

// Info logs an info-level trace
func (t *Tracer) Info(component TraceComponent, message string, context ...map[string]interface{}) {
	t.trace(TraceLevelInfo, component, message, context)
}

// Debug logs a debug-level trace
func (t *Tracer) Debug(component TraceComponent, message string, context ...map[string]interface{}) {
	t.trace(TraceLevelDebug, component, message, context)
}

// Verbose logs a verbose-level trace
func (t *Tracer) Verbose(component TraceComponent, message string, context ...map[string]interface{}) {
	t.trace(TraceLevelVerbose, component, message, context)
}

// Sync flushes buffered log entries
func (t *Tracer) Sync() error {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.logger.Sync()
}

// TraceContext creates a context map for tracing from key/value pairs
func TraceContext(pairs ...interface{}) map[string]interface{} {
	context := make(map[string]interface{})
	for i := 0; i < len(pairs)-1; i += 2 {
		if key, ok := pairs[i].(string); ok {
			context[key] = pairs[i+1]
		}
	}
	return context
}
