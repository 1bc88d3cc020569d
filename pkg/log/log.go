/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trustbloc/datatoken-provider-go/internal/log"
)

// Options configures the process-wide log output.
type Options struct {
	// Spec is the level spec, see SetSpec.
	Spec string
	// FilePath, when set, sends log output to a rotated file in addition to stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Initialize applies the given options to all loggers.
func Initialize(opts Options) error {
	if opts.Spec != "" {
		if err := SetSpec(opts.Spec); err != nil {
			return err
		}
	}

	if opts.FilePath == "" {
		return nil
	}

	rotated := &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	log.SetOutput(io.MultiWriter(os.Stderr, rotated))

	return nil
}

// SetLevel sets the log level for given module and level.
func SetLevel(module string, level log.Level) {
	log.SetLevel(module, level)
}

// SetDefaultLevel sets the default log level.
func SetDefaultLevel(level log.Level) {
	log.SetDefaultLevel(level)
}

// GetLevel returns the log level for the given module.
func GetLevel(module string) log.Level {
	return log.GetLevel(module)
}

// SetSpec sets the log levels for individual modules as well as the default log level.
// The format of the spec is as follows:
//
// module1=level1:module2=level2:module3=level3:defaultLevel
//
// Valid log levels are: panic, error, warning, info, debug
//
// Example:
//
// provider-orderverifier=debug:provider-chain=warning:info
func SetSpec(spec string) error {
	return log.SetSpec(spec)
}

// GetSpec returns the log spec which specifies the log level of each individual module. The spec is
// in the following format:
//
// module1=level1:module2=level2:module3=level3:defaultLevel
func GetSpec() string {
	return log.GetSpec()
}
