package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/viper"
)

// setupLogging configures the default slog logger. Logs go to stderr so they
// never mix with command output on stdout. Development gets colored console
// logs, production (STORIFY_ENV=prod) gets JSON.
func setupLogging() {
	env := viper.GetString("env")
	level := parseLevel(viper.GetString("log.level"), env)

	var handler slog.Handler
	if env == "prod" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Key = "ts"
					a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
				}
				return a
			},
		})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	log.SetOutput(slog.NewLogLogger(handler, slog.LevelInfo).Writer())
}

func parseLevel(s, env string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "":
		if env == "prod" {
			return slog.LevelInfo
		}
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
