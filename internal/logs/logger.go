package logs

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide application logger, set up once via Init.
var Logger = logrus.New()

// Options holds logger initialization parameters.
type Options struct {
	Level  string // trace|debug|info|warning|error
	Format string // text|json
	File   string // log file prefix; empty means stdout only
}

// Init configures the global logger from the given options.
func Init(opts Options) {
	switch opts.Level {
	case "trace":
		Logger.SetLevel(logrus.TraceLevel)
	case "debug":
		Logger.SetLevel(logrus.DebugLevel)
	case "warning", "warn":
		Logger.SetLevel(logrus.WarnLevel)
	case "error":
		Logger.SetLevel(logrus.ErrorLevel)
	default:
		Logger.SetLevel(logrus.InfoLevel)
	}

	if opts.Format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if opts.File != "" {
		logFileName := fmt.Sprintf("%s_%s.log", opts.File, time.Now().Format("2006-01-02_15-04-05"))
		file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			Logger.Fatalf("failed to open log file %s: %v", logFileName, err)
		}
		Logger.SetOutput(io.MultiWriter(file, os.Stdout))
	} else {
		Logger.SetOutput(os.Stdout)
	}
}
