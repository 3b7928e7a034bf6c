package ulogger

import (
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFile = "./data/marabu.log"

// NewFileLogger writes JSON log lines into a size-rotated file.
func NewFileLogger(service string, options ...Option) *ZLoggerWrapper {
	if service == "" {
		service = "marabu"
	}

	opts := DefaultOptions()
	for _, o := range options {
		o(opts)
	}

	filename := opts.filename
	if filename == "" {
		filename = defaultLogFile
	}

	w := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		Compress:   true,
	}

	z := &ZLoggerWrapper{
		zerolog.New(w).With().
			Str("service", service).
			Timestamp().
			Logger(),
		service,
		w,
	}

	z.SetLogLevel(opts.logLevel)

	return z
}
