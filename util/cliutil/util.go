// Package cliutil holds bootstrap helpers shared by the gaggled commands.
package cliutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupDatabase opens a gorm connection from a database URL. Supported
// schemes are sqlite:// (path or :memory:) and postgres:// /
// postgresql:// (full DSN URL).
func SetupDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector

	isSqlite := false
	openConns := maxConnections
	switch {
	case strings.HasPrefix(dburl, "sqlite://"):
		path := dburl[len("sqlite://"):]
		if !strings.Contains(path, ":memory:") {
			os.MkdirAll(filepath.Dir(path), os.ModePerm)
		}
		dial = sqlite.Open(path)
		openConns = 1
		isSqlite = true
	case strings.HasPrefix(dburl, "postgresql://"), strings.HasPrefix(dburl, "postgres://"):
		dial = postgres.Open(dburl)
	default:
		return nil, fmt.Errorf("unsupported or unrecognized database URL scheme")
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxIdleConns(openConns)
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
		if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
			return nil, err
		}
	}

	return db, nil
}

// LogOptions configures SetupSlog. The zero value means info-level text
// logs on stdout.
type LogOptions struct {
	// info|debug|warn|error
	LogLevel string

	// text|json
	LogFormat string
}

// SetupSlog builds the process-wide logger and installs it as the slog
// default. Env vars GAGGLE_LOG_LEVEL and GAGGLE_LOG_FMT fill in options
// left empty.
func SetupSlog(options LogOptions) (*slog.Logger, error) {
	var hopts slog.HandlerOptions

	if options.LogLevel == "" {
		options.LogLevel = os.Getenv("GAGGLE_LOG_LEVEL")
	}
	switch strings.ToLower(options.LogLevel) {
	case "", "info":
		hopts.Level = slog.LevelInfo
	case "debug":
		hopts.Level = slog.LevelDebug
	case "warn":
		hopts.Level = slog.LevelWarn
	case "error":
		hopts.Level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %#v", options.LogLevel)
	}

	if options.LogFormat == "" {
		options.LogFormat = os.Getenv("GAGGLE_LOG_FMT")
	}
	var handler slog.Handler
	switch strings.ToLower(options.LogFormat) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stdout, &hopts)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &hopts)
	default:
		return nil, fmt.Errorf("invalid log format: %#v", options.LogFormat)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
