// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package conf

type Level string

const (
	TraceLevel Level = "trace"
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
	FatalLevel Level = "fatal"
)

type Formatter string

const (
	JSONFormater    Formatter = "json"
	ConsoleFormater Formatter = "console"
)

func isValidFormatter(f Formatter) bool {
	return (f == JSONFormater) ||
		(f == ConsoleFormater)
}

// LogConfig configures the process logger. When File is empty everything
// goes to stderr; otherwise output rotates through lumberjack with the
// size/age/backup limits below.
type LogConfig struct {
	Level      Level     `yaml:"level" json:"level"`
	Formatter  Formatter `yaml:"formatter" json:"formatter"`
	File       string    `yaml:"file" json:"file"`
	MaxSizeMB  int       `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int       `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int       `yaml:"max_age_days" json:"max_age_days"`
}

func DefaultConfig() *LogConfig {
	return &LogConfig{
		Level:      InfoLevel,
		Formatter:  ConsoleFormater,
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

func (c *LogConfig) Normalize() {
	if c.Level == "" {
		c.Level = InfoLevel
	}
	if !isValidFormatter(c.Formatter) {
		c.Formatter = ConsoleFormater
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 100
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 28
	}
}
