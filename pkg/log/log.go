package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/cuemby/overlord/pkg/types"
	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents a log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// InitFromConfig wires the Configuration Snapshot's LogLevel/LogFormat/LogFile
// into Init, writing to LogFile (opened for append) if set and to stdout
// otherwise. An error opening LogFile is returned and Init is not called.
func InitFromConfig(cfg *types.Config) error {
	var level Level
	switch cfg.LogLevel {
	case "debug":
		level = DebugLevel
	case "warn":
		level = WarnLevel
	case "error":
		level = ErrorLevel
	default:
		level = InfoLevel
	}

	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		output = f
	}

	Init(Config{
		Level:      level,
		JSONOutput: cfg.LogFormat == "json",
		Output:     output,
	})
	return nil
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithWorkerID creates a child logger with a worker_id field.
func WithWorkerID(workerID string) zerolog.Logger {
	return Logger.With().Str("worker_id", workerID).Logger()
}

// WithRepo creates a child logger with a repo field.
func WithRepo(repo string) zerolog.Logger {
	return Logger.With().Str("repo", repo).Logger()
}

// WithCorrelationID creates a child logger with a correlation_id field. The
// correlation id originates from the Minion's /minion/report payloads and is
// threaded through every log line produced while handling that report, so a
// single worker's lifecycle can be grepped out of a shared log stream.
func WithCorrelationID(correlationID string) zerolog.Logger {
	if correlationID == "" {
		return Logger
	}
	return Logger.With().Str("correlation_id", correlationID).Logger()
}

type correlationIDKey struct{}

// ContextWithCorrelationID returns a context carrying correlationID, so it
// can be recovered by FromContext deep inside a call chain without passing a
// logger explicitly through every function signature.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

// FromContext returns a logger annotated with the correlation id carried by
// ctx, or the global Logger if none was set.
func FromContext(ctx context.Context) zerolog.Logger {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	if id == "" {
		return Logger
	}
	return WithCorrelationID(id)
}

// Helper functions for common logging patterns.
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
