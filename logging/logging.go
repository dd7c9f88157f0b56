package logging

import (
	gomodlog "github.com/cyverse-de/go-mod/logging"
	"github.com/cyverse/ngs/config"
	"github.com/sirupsen/logrus"
)

// GetLogger returns the service-wide log entry.
func GetLogger() *logrus.Entry {
	return gomodlog.Log.WithFields(logrus.Fields{"service": config.ServiceName})
}

// ForPackage returns a log entry tagged with the name of the calling package.
func ForPackage(name string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{"package": name})
}

// SetupLogging sets the log level for the service.
func SetupLogging(level string) {
	gomodlog.SetupLogging(level)
}
