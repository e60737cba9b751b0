package logger

import (
	"io"
	"os"
	"path/filepath"

	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logging bundles the sinks every component writes to.
type Logging struct {
	Writer io.Writer
	Logger *logrus.Logger
	Access fiberLogger.Config
	Worker zerolog.Logger

	file *lumberjack.Logger
}

// New writes to stdout and a rotating file under logDir. JSON is used
// unless debug is set.
func New(logDir string, debug bool) (*Logging, error) {
	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		return nil, err
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "app.log"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	multiWriter := io.MultiWriter(os.Stdout, logFile)

	log := logrus.New()
	log.SetOutput(multiWriter)
	if debug {
		log.SetLevel(logrus.DebugLevel)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return &Logging{
		Writer: multiWriter,
		Logger: log,
		Access: fiberLogger.Config{
			Output:     multiWriter,
			Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${locals:requestid} | ${error}\n",
			TimeFormat: "2006-01-02 15:04:05",
			TimeZone:   "Local",
		},
		Worker: zerolog.New(multiWriter).Level(level).With().Timestamp().Logger(),
		file:   logFile,
	}, nil
}

func (l *Logging) Close() error {
	return l.file.Close()
}
