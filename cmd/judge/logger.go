package main

import (
	"io"
	"os"

	"github.com/itstheanurag/pyjudge/internal/config"
	"github.com/rs/zerolog"
)

func newLogger(conf config.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(conf.Level)
	if err != nil || conf.Level == "" {
		level = zerolog.InfoLevel
	}

	if conf.Format == "json" {
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out}).Level(level).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	conf, err := config.LoadConfig()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return conf, newLogger(conf.Log, os.Stderr), nil
}
