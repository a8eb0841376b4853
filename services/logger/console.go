package logsvc

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/user"
)

// ConsoleLogger writes colored structured logs.
type ConsoleLogger struct {
	log  *slog.Logger
	exit func(code int) // mockable
}

var _ core.Logger = (*ConsoleLogger)(nil)

func NewConsoleLogger(w io.Writer, level string) *ConsoleLogger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isTerminal(f)
	}
	return &ConsoleLogger{
		log: slog.New(tint.NewHandler(w, &tint.Options{
			Level:      ParseLevel(level),
			TimeFormat: time.Kitchen,
			NoColor:    noColor,
		})),
		exit: os.Exit,
	}
}

// ParseLevel maps debug, info, warn and error to a slog level; anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog exposes the underlying logger, e.g. for slog.SetDefault.
func (l *ConsoleLogger) Slog() *slog.Logger { return l.log }

// attrs turns core.Logger args (errors, field maps, actors, key/value pairs) into slog attributes.
func attrs(args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch arg := args[i].(type) {
		case error:
			out = append(out, tint.Err(arg))
		case map[string]interface{}:
			for k, v := range arg {
				out = append(out, slog.Any(k, v))
			}
		case user.Actor:
			out = append(out, slog.String("actor", arg.Label()))
		case slog.Attr:
			out = append(out, arg)
		case string:
			if i+1 < len(args) {
				out = append(out, slog.Any(arg, args[i+1]))
				i++
			} else {
				out = append(out, slog.String("extra", arg))
			}
		default:
			out = append(out, slog.Any("extra", arg))
		}
	}
	return out
}

func (l *ConsoleLogger) logAt(level slog.Level, msg string, args []interface{}) {
	l.log.Log(context.Background(), level, msg, attrs(args)...)
}

func (l *ConsoleLogger) Debug(msg string, args ...interface{}) { l.logAt(slog.LevelDebug, msg, args) }
func (l *ConsoleLogger) Info(msg string, args ...interface{})  { l.logAt(slog.LevelInfo, msg, args) }
func (l *ConsoleLogger) Warn(msg string, args ...interface{})  { l.logAt(slog.LevelWarn, msg, args) }
func (l *ConsoleLogger) Error(msg string, args ...interface{}) { l.logAt(slog.LevelError, msg, args) }

func (l *ConsoleLogger) Fatal(msg string, args ...interface{}) {
	l.logAt(slog.LevelError, msg, args)
	l.exit(1)
}
