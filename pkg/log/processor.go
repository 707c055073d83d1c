package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/mwantia/fabric/pkg/container"
)

const loggerTag = "logger"

// LoggerTagProcessor injects loggers into fields tagged fabric:"logger" or
// fabric:"logger:<name>". A name yields the base logger's Named(name).
type LoggerTagProcessor struct{}

func NewLoggerTagProcessor() *LoggerTagProcessor {
	return &LoggerTagProcessor{}
}

// GetPriority runs the processor ahead of the default inject processor.
func (ltp *LoggerTagProcessor) GetPriority() int {
	return 50
}

func (ltp *LoggerTagProcessor) CanProcess(value string) bool {
	return strings.EqualFold(value, loggerTag) || strings.HasPrefix(strings.ToLower(value), loggerTag+":")
}

func (ltp *LoggerTagProcessor) Process(ctx context.Context, sc *container.ServiceContainer, field reflect.StructField, value string) (any, error) {
	logger, err := Resolve(ctx, sc, value)
	if err != nil {
		return nil, fmt.Errorf("field '%s': %w", field.Name, err)
	}
	return logger, nil
}

// Resolve returns the LoggerService registered in sc, named after the part of
// tag following "logger:" when present.
func Resolve(ctx context.Context, sc *container.ServiceContainer, tag string) (LoggerService, error) {
	ok, resolved := sc.ResolveByType(ctx, reflect.TypeOf((*LoggerService)(nil)).Elem())
	if !ok {
		return nil, fmt.Errorf("no logger service registered")
	}

	base, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("resolved %T is not a LoggerService", resolved)
	}

	if _, name, found := strings.Cut(tag, ":"); found {
		if name = strings.TrimSpace(name); name != "" {
			return base.Named(name), nil
		}
	}
	return base, nil
}
