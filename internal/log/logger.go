/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the log level of a module.
type Level int8

// Log levels, ordered from least to most verbose.
const (
	PANIC Level = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

// Encoding is the output encoding of a logger.
type Encoding string

// Supported encodings.
const (
	Console Encoding = "console"
	JSON    Encoding = "json"
)

var levelNames = map[Level]string{
	PANIC:   "PANIC",
	ERROR:   "ERROR",
	WARNING: "WARNING",
	INFO:    "INFO",
	DEBUG:   "DEBUG",
}

// String returns the upper case name of the level.
func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}

	return fmt.Sprintf("Level(%d)", l)
}

// ParseLevel parses a level name (case insensitive). "warn" is accepted as an alias of "warning".
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PANIC", "CRITICAL":
		return PANIC, nil
	case "ERROR":
		return ERROR, nil
	case "WARNING", "WARN":
		return WARNING, nil
	case "INFO":
		return INFO, nil
	case "DEBUG":
		return DEBUG, nil
	default:
		return ERROR, fmt.Errorf("invalid log level: %s", s)
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case PANIC:
		return zapcore.PanicLevel
	case ERROR:
		return zapcore.ErrorLevel
	case WARNING:
		return zapcore.WarnLevel
	case DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Log is a module logger backed by zap.
type Log struct {
	module string
	level  zap.AtomicLevel
	zl     *zap.Logger
	sugar  *zap.SugaredLogger
}

type options struct {
	out      io.Writer
	encoding Encoding
}

// Option configures a logger.
type Option func(o *options)

// WithStdOut sets the writer the logger writes to. Defaults to the shared output (see SetOutput).
func WithStdOut(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// WithEncoding sets the output encoding.
func WithEncoding(encoding Encoding) Option {
	return func(o *options) {
		o.encoding = encoding
	}
}

// New returns a logger for the given module.
func New(module string, opts ...Option) *Log {
	o := &options{encoding: Console}
	for _, opt := range opts {
		opt(o)
	}

	var ws zapcore.WriteSyncer = output
	if o.out != nil {
		ws = zapcore.AddSync(o.out)
	}

	level := levels.atomic(module)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if o.encoding == JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	zl := zap.New(zapcore.NewCore(enc, ws, level), zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("logger", module))

	return &Log{module: module, level: level, zl: zl, sugar: zl.Sugar()}
}

// Module returns the module name of the logger.
func (l *Log) Module() string {
	return l.module
}

// IsEnabled returns true if the given level is enabled for this logger.
func (l *Log) IsEnabled(level Level) bool {
	return l.level.Enabled(level.zapLevel())
}

// Debug logs a message with structured fields at debug level.
func (l *Log) Debug(msg string, fields ...zap.Field) {
	l.zl.Debug(msg, fields...)
}

// Info logs a message with structured fields at info level.
func (l *Log) Info(msg string, fields ...zap.Field) {
	l.zl.Info(msg, fields...)
}

// Warn logs a message with structured fields at warning level.
func (l *Log) Warn(msg string, fields ...zap.Field) {
	l.zl.Warn(msg, fields...)
}

// Error logs a message with structured fields at error level.
func (l *Log) Error(msg string, fields ...zap.Field) {
	l.zl.Error(msg, fields...)
}

// Debugf logs a formatted message at debug level.
func (l *Log) Debugf(msg string, args ...interface{}) {
	l.sugar.Debugf(msg, args...)
}

// Infof logs a formatted message at info level.
func (l *Log) Infof(msg string, args ...interface{}) {
	l.sugar.Infof(msg, args...)
}

// Warnf logs a formatted message at warning level.
func (l *Log) Warnf(msg string, args ...interface{}) {
	l.sugar.Warnf(msg, args...)
}

// Errorf logs a formatted message at error level.
func (l *Log) Errorf(msg string, args ...interface{}) {
	l.sugar.Errorf(msg, args...)
}

// Panicf logs a formatted message and panics.
func (l *Log) Panicf(msg string, args ...interface{}) {
	l.sugar.Panicf(msg, args...)
}

// sharedOutput is the writer used by loggers that were not given their own. It can be swapped after the
// package level loggers have been created.
type sharedOutput struct {
	mutex sync.RWMutex
	ws    zapcore.WriteSyncer
}

var output = &sharedOutput{ws: zapcore.Lock(os.Stderr)}

func (s *sharedOutput) Write(p []byte) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.ws.Write(p)
}

func (s *sharedOutput) Sync() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.ws.Sync()
}

// SetOutput redirects all loggers that use the shared output.
func SetOutput(w io.Writer) {
	output.mutex.Lock()
	defer output.mutex.Unlock()

	output.ws = zapcore.Lock(zapcore.AddSync(w))
}

type moduleLevels struct {
	mutex        sync.RWMutex
	defaultLevel Level
	explicit     map[string]Level
	atomics      map[string]zap.AtomicLevel
}

var levels = &moduleLevels{
	defaultLevel: INFO,
	explicit:     make(map[string]Level),
	atomics:      make(map[string]zap.AtomicLevel),
}

func (m *moduleLevels) atomic(module string) zap.AtomicLevel {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if a, ok := m.atomics[module]; ok {
		return a
	}

	lvl, ok := m.explicit[module]
	if !ok {
		lvl = m.defaultLevel
	}

	a := zap.NewAtomicLevelAt(lvl.zapLevel())
	m.atomics[module] = a

	return a
}

// SetLevel sets the log level for the given module.
func SetLevel(module string, level Level) {
	levels.mutex.Lock()
	defer levels.mutex.Unlock()

	if module == "" {
		setDefaultLevel(level)

		return
	}

	levels.explicit[module] = level

	if a, ok := levels.atomics[module]; ok {
		a.SetLevel(level.zapLevel())
	}
}

// SetDefaultLevel sets the level of every module that has no explicit level.
func SetDefaultLevel(level Level) {
	levels.mutex.Lock()
	defer levels.mutex.Unlock()

	setDefaultLevel(level)
}

func setDefaultLevel(level Level) {
	levels.defaultLevel = level

	for module, a := range levels.atomics {
		if _, ok := levels.explicit[module]; !ok {
			a.SetLevel(level.zapLevel())
		}
	}
}

// GetLevel returns the level of the given module.
func GetLevel(module string) Level {
	levels.mutex.RLock()
	defer levels.mutex.RUnlock()

	if lvl, ok := levels.explicit[module]; ok {
		return lvl
	}

	return levels.defaultLevel
}

// SetSpec sets module levels and the default level from a spec of the form
// module1=level1:module2=level2:defaultLevel.
func SetSpec(spec string) error {
	explicit := make(map[string]Level)
	defaultLevel := INFO
	defaultSet := false

	for _, part := range strings.Split(spec, ":") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.Split(part, "=")

		switch len(kv) {
		case 1:
			lvl, err := ParseLevel(kv[0])
			if err != nil {
				return err
			}

			defaultLevel = lvl
			defaultSet = true
		case 2:
			lvl, err := ParseLevel(kv[1])
			if err != nil {
				return err
			}

			explicit[kv[0]] = lvl
		default:
			return fmt.Errorf("invalid log spec: %s", spec)
		}
	}

	for module, lvl := range explicit {
		SetLevel(module, lvl)
	}

	if defaultSet {
		SetDefaultLevel(defaultLevel)
	}

	return nil
}

// GetSpec returns the current log spec.
func GetSpec() string {
	levels.mutex.RLock()
	defer levels.mutex.RUnlock()

	modules := make([]string, 0, len(levels.explicit))
	for module := range levels.explicit {
		modules = append(modules, module)
	}

	sort.Strings(modules)

	var sb strings.Builder
	for _, module := range modules {
		sb.WriteString(module)
		sb.WriteString("=")
		sb.WriteString(levels.explicit[module].String())
		sb.WriteString(":")
	}

	sb.WriteString(levels.defaultLevel.String())

	return sb.String()
}
