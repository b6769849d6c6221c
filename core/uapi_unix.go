//go:build linux || darwin || freebsd || openbsd

package core

import (
	"net"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/device"
)

// uapiPath is where the control socket for the named interface lives.
func uapiPath(dir, name string) string {
	return filepath.Join(dir, name+".sock")
}

// listenUAPI serves the UAPI control socket for dev under dir. Failure is logged and
// leaves the tunnel without a control socket.
func listenUAPI(dir, name string, dev *device.Device, log logrus.FieldLogger) net.Listener {
	log = log.WithField("at", "core.listenUAPI")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.WithField("error", err).Warn("uapi_dir_failed")
		return nil
	}
	path := uapiPath(dir, name)
	// A socket left behind by a previous process blocks the bind.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithField("error", err).Warn("uapi_stale_socket")
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		log.WithField("error", err).Warn("uapi_listen_failed")
		return nil
	}
	if err := os.Chmod(path, 0o600); err != nil {
		log.WithField("error", err).Warn("uapi_chmod_failed")
	}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go dev.IpcHandle(c)
		}
	}()
	log.WithField("socket", path).Debug("uapi_listening")
	return ln
}
