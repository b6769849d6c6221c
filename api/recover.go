package api

import (
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// Recover runs fn and stops any panic from unwinding past it, so no Go panic reaches a
// foreign caller. It reports whether fn returned normally. Results the caller preset to
// their failure value are left unchanged on a panic.
func Recover(log logrus.FieldLogger, method string, fn func()) bool {
	err := oops.In("boundary").With("method", method).Recover(fn)
	if err == nil {
		return true
	}
	log.WithFields(logrus.Fields{"at": "api.Recover", "method": method, "error": err}).Error("panic_recovered")
	return false
}
