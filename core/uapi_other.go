//go:build !(linux || darwin || freebsd || openbsd)

package core

import (
	"net"

	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/device"
)

func listenUAPI(_, _ string, _ *device.Device, _ logrus.FieldLogger) net.Listener { return nil }
