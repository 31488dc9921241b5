// Package logging builds the CLI's logrus logger from verbosity and format flags.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configure New. The zero value logs warnings and errors as text to stderr.
type Options struct {
	// Verbosity is the -v count: 0 warn, 1 info, 2 debug, 3 and above trace.
	Verbosity int
	NoColor   bool
	// Format is "text", "json" or "raw".
	Format string
	Output io.Writer
}

// New returns a configured logger.
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)
	log.SetLevel(Level(opts.Verbosity))

	switch opts.Format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			DisableColors:   opts.NoColor,
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "raw":
		log.SetFormatter(&RawFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format '%s'", opts.Format)
	}
	return log, nil
}

// Level maps a -v count to a logrus level.
func Level(verbosity int) logrus.Level {
	switch {
	case verbosity <= 0:
		return logrus.WarnLevel
	case verbosity == 1:
		return logrus.InfoLevel
	case verbosity == 2:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// RawFormatter prints only the message.
type RawFormatter struct{}

func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}
