//go:build android && cgo

package main

import (
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	logTag      = "WireGuard/GoBackend"
	stackLogTag = logTag + "/Stacktrace"

	logDebug = 3
	logInfo  = 4
	logWarn  = 5
	logError = 6
	logFatal = 7
)

// logcatHook mirrors every entry to logcat. The tag carries the interface name when the
// entry has one so per-tunnel output can be filtered on the device.
type logcatHook struct {
	formatter logrus.Formatter
}

func (logcatHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h logcatHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	logcat(logcatLevel(entry.Level), entryTag(entry.Data), strings.TrimRight(string(line), "\n"))
	return nil
}

func logcatLevel(level logrus.Level) int {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return logFatal
	case logrus.ErrorLevel:
		return logError
	case logrus.WarnLevel:
		return logWarn
	case logrus.InfoLevel:
		return logInfo
	default:
		return logDebug
	}
}

func entryTag(data logrus.Fields) string {
	if name, ok := data["interface"].(string); ok && name != "" {
		return logTag + "/" + name
	}
	if data["component"] == "autoconnect" {
		return logTag + "/AC"
	}
	return logTag
}

// newLogger builds the library logger. stdout and stderr are not read on Android, so
// all output goes through the logcat hook.
func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(logcatHook{formatter: &logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	}})
	return logger
}

// watchStackDumps logs every goroutine's stack on SIGUSR2.
func watchStackDumps() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, unix.SIGUSR2)
	go func() {
		buf := make([]byte, 1<<16)
		for range signals {
			n := runtime.Stack(buf, true)
			logcat(logError, stackLogTag, string(buf[:n]))
		}
	}()
}
