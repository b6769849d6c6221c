package core

import (
	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/device"
)

// deviceLogger forwards wireguard-go's logging onto log. Verbose output is dropped
// unless log is known to be at debug level, since the device logs every handshake.
func deviceLogger(log logrus.FieldLogger) *device.Logger {
	verbose := log.Debugf
	if !debugEnabled(log) {
		verbose = device.DiscardLogf
	}
	return &device.Logger{
		Verbosef: verbose,
		Errorf:   log.Errorf,
	}
}

func debugEnabled(log logrus.FieldLogger) bool {
	switch l := log.(type) {
	case *logrus.Logger:
		return l.IsLevelEnabled(logrus.DebugLevel)
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(logrus.DebugLevel)
	}
	return true
}
