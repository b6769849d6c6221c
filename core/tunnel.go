package core

import (
	"math"
	"net"
	"strings"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/device"

	"wireguard_android_wrapper/contract"
	"wireguard_android_wrapper/marshal"
)

type tunnel struct {
	name   string
	device *device.Device
	uapi   net.Listener
}

func (t *tunnel) close() {
	if t.uapi != nil {
		_ = t.uapi.Close()
	}
	t.device.Close()
}

// TurnOn adopts tunFd, applies settings in UAPI form and brings the device up.
// On any failure the fd is closed and InvalidHandle is returned.
func (e *Engine) TurnOn(ifname marshal.View, tunFd contract.FD, settings marshal.View) contract.Handle {
	name := strings.Clone(ifname.String())
	log := e.log.WithField("interface", name)

	t, err := e.open(name, int(tunFd), settings.String(), log)
	if err != nil {
		log.WithFields(logrus.Fields{"at": "core.TurnOn", "fd": tunFd, "error": err}).Error("turn_on_failed")
		return contract.InvalidHandle
	}

	e.mu.Lock()
	handle, ok := e.freeHandleLocked()
	if ok {
		e.tunnels[handle] = t
	}
	e.mu.Unlock()

	if !ok {
		log.WithField("at", "core.TurnOn").Error("no_free_handle")
		t.close()
		return contract.InvalidHandle
	}
	log.WithFields(logrus.Fields{"at": "core.TurnOn", "handle": handle}).Info("device_started")
	return handle
}

func (e *Engine) open(name string, fd int, settings string, log logrus.FieldLogger) (*tunnel, error) {
	tunDev, tunName, err := e.openTUN(fd)
	if err != nil {
		closeFD(fd)
		return nil, oops.In("engine").With("fd", fd).Wrapf(err, "open tun")
	}
	log.WithField("tun", tunName).Debug("attaching_to_interface")

	dev := device.NewDevice(tunDev, e.newBind(), deviceLogger(log))
	if err := dev.IpcSet(settings); err != nil {
		dev.Close()
		return nil, oops.In("engine").With("interface", name).Wrapf(err, "apply settings")
	}
	dev.DisableSomeRoamingForBrokenMobileSemantics()

	t := &tunnel{name: name, device: dev}
	if e.uapiDir != "" {
		t.uapi = listenUAPI(e.uapiDir, tunName, dev, log)
	}
	if err := dev.Up(); err != nil {
		t.close()
		return nil, oops.In("engine").With("interface", name).Wrapf(err, "bring up device")
	}
	return t, nil
}

// freeHandleLocked returns the lowest unused non-negative handle.
func (e *Engine) freeHandleLocked() (contract.Handle, bool) {
	for i := contract.Handle(0); i < math.MaxInt32; i++ {
		if _, used := e.tunnels[i]; !used {
			return i, true
		}
	}
	return contract.InvalidHandle, false
}

// TurnOff closes the tunnel behind handle. Unknown handles, including ones already
// turned off, are ignored.
func (e *Engine) TurnOff(handle contract.Handle) {
	e.mu.Lock()
	t, ok := e.tunnels[handle]
	delete(e.tunnels, handle)
	e.mu.Unlock()

	if !ok {
		e.log.WithFields(logrus.Fields{"at": "core.TurnOff", "handle": handle}).Debug("unknown_handle")
		return
	}
	t.close()
	e.log.WithFields(logrus.Fields{"at": "core.TurnOff", "handle": handle, "interface": t.name}).Info("device_closed")
}

// socketPeeker is implemented by binds that expose their UDP sockets so the host can
// exempt them from the VPN.
type socketPeeker interface {
	PeekLookAtSocketFd4() (fd int, err error)
	PeekLookAtSocketFd6() (fd int, err error)
}

func (e *Engine) peek(handle contract.Handle, v6 bool) contract.FD {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tunnels[handle]
	if !ok {
		return contract.InvalidFD
	}
	peeker, ok := t.device.Bind().(socketPeeker)
	if !ok {
		return contract.InvalidFD
	}
	var fd int
	var err error
	if v6 {
		fd, err = peeker.PeekLookAtSocketFd6()
	} else {
		fd, err = peeker.PeekLookAtSocketFd4()
	}
	if err != nil {
		return contract.InvalidFD
	}
	return contract.FD(fd)
}

// SocketV4 returns the tunnel's IPv4 socket, or InvalidFD.
func (e *Engine) SocketV4(handle contract.Handle) contract.FD {
	return e.peek(handle, false)
}

// SocketV6 returns the tunnel's IPv6 socket, or InvalidFD.
func (e *Engine) SocketV6(handle contract.Handle) contract.FD {
	return e.peek(handle, true)
}
