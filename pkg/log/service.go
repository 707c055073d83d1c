package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mwantia/ephysdb/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerService interface {
	Debug(msg string, args ...any)

	Info(msg string, args ...any)

	Warn(msg string, args ...any)

	Error(msg string, args ...any)

	Fatal(msg string, args ...any)

	Named(name string) LoggerService

	// With returns a logger that appends key=value to every entry, e.g. the
	// ingest run id or the session being written.
	With(key, value string) LoggerService
}

type field struct {
	key   string
	value string
}

type LoggerServiceImpl struct {
	cfg    config.LogConfig
	name   string
	level  LogLevel
	writer io.Writer
	fields []field
}

type logEntry struct {
	Timestamp string            `json:"timestamp"`
	Level     string            `json:"level"`
	Service   string            `json:"service,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func NewLoggerService(name string, cfg config.LogConfig) LoggerService {
	impl := &LoggerServiceImpl{
		cfg:   cfg,
		name:  name,
		level: Parse(cfg.Level),
	}

	impl.setupWriter()
	return impl
}

// NewLoggerServiceWithWriter bypasses terminal and file output and writes
// every entry to w. Colours are disabled.
func NewLoggerServiceWithWriter(name string, cfg config.LogConfig, w io.Writer) LoggerService {
	cfg.NoColor = true
	return &LoggerServiceImpl{
		cfg:    cfg,
		name:   name,
		level:  Parse(cfg.Level),
		writer: w,
	}
}

func (impl *LoggerServiceImpl) setupWriter() {
	var writers []io.Writer

	if !impl.cfg.NoTerminal {
		writers = append(writers, os.Stdout)
	}

	if impl.cfg.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   impl.cfg.File,
			MaxSize:    impl.cfg.Rotation.MaxSize,
			MaxBackups: impl.cfg.Rotation.MaxBackups,
			MaxAge:     impl.cfg.Rotation.MaxAge,
			Compress:   impl.cfg.Rotation.Compress,
		}
		writers = append(writers, fileWriter)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	impl.writer = io.MultiWriter(writers...)
}

func (impl *LoggerServiceImpl) log(level LogLevel, msg string, args ...any) {
	if level < impl.level {
		return
	}

	timeFormat := impl.cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	timestamp := time.Now().Format(timeFormat)
	formattedMsg := msg
	if len(args) > 0 {
		formattedMsg = fmt.Sprintf(msg, args...)
	}

	if impl.cfg.JSON {
		entry := logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Message:   formattedMsg,
		}
		if impl.name != "" {
			entry.Service = impl.name
		}
		if len(impl.fields) > 0 {
			entry.Fields = make(map[string]string, len(impl.fields))
			for _, f := range impl.fields {
				entry.Fields[f.key] = f.value
			}
		}

		jsonBytes, _ := json.Marshal(entry)
		fmt.Fprintf(impl.writer, "%s\n", jsonBytes)
	} else {
		prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
		if impl.name != "" {
			prefix = fmt.Sprintf("%s [%s]", prefix, impl.name)
		}
		for _, f := range impl.fields {
			formattedMsg = fmt.Sprintf("%s %s=%s", formattedMsg, f.key, f.value)
		}

		if !impl.cfg.NoTerminal && !impl.cfg.NoColor {
			fmt.Fprintf(impl.writer, "%s%s %s\033[0m\n", Color(level), prefix, formattedMsg)
		} else {
			fmt.Fprintf(impl.writer, "%s %s\n", prefix, formattedMsg)
		}
	}

	if level == Fatal {
		os.Exit(1)
	}
}

func (impl *LoggerServiceImpl) Debug(msg string, args ...any) {
	impl.log(Debug, msg, args...)
}

func (impl *LoggerServiceImpl) Info(msg string, args ...any) {
	impl.log(Info, msg, args...)
}

func (impl *LoggerServiceImpl) Warn(msg string, args ...any) {
	impl.log(Warn, msg, args...)
}

func (impl *LoggerServiceImpl) Error(msg string, args ...any) {
	impl.log(Error, msg, args...)
}

func (impl *LoggerServiceImpl) Fatal(msg string, args ...any) {
	impl.log(Fatal, msg, args...)
}

func (impl *LoggerServiceImpl) Named(name string) LoggerService {
	return &LoggerServiceImpl{
		cfg:    impl.cfg,
		name:   fmt.Sprintf("%s/%s", impl.name, name),
		level:  impl.level,
		writer: impl.writer, // Share the same writer
		fields: impl.fields,
	}
}

func (impl *LoggerServiceImpl) With(key, value string) LoggerService {
	fields := make([]field, 0, len(impl.fields)+1)
	for _, f := range impl.fields {
		if f.key != key {
			fields = append(fields, f)
		}
	}

	return &LoggerServiceImpl{
		cfg:    impl.cfg,
		name:   impl.name,
		level:  impl.level,
		writer: impl.writer,
		fields: append(fields, field{key: key, value: value}),
	}
}
