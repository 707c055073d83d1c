package log

import "strings"

type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	Fatal
)

// Parse maps a case-insensitive level name onto a LogLevel, falling back to Info.
func Parse(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return Debug
	case "INFO", "":
		return Info
	case "WARN", "WARNING":
		return Warn
	case "ERROR":
		return Error
	case "FATAL":
		return Fatal
	default:
		return Info
	}
}

func (l LogLevel) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Color returns the ANSI escape sequence used for terminal output of the level.
func Color(l LogLevel) string {
	switch l {
	case Debug:
		return "\033[36m"
	case Info:
		return "\033[32m"
	case Warn:
		return "\033[33m"
	case Error, Fatal:
		return "\033[31m"
	default:
		return "\033[0m"
	}
}
