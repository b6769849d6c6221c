// Command acctl drives the auto-connect provisioning client from a desktop shell.
//
// Settings come from flags, a config file given with --config, or WG_AC_* environment
// variables, in that order of precedence.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if err := newRootCmd(os.Stdout, log).Execute(); err != nil {
		log.WithError(err).Error("acctl_failed")
		os.Exit(1)
	}
}
