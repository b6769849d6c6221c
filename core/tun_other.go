//go:build !linux

package core

import (
	"github.com/samber/oops"
	"golang.zx2c4.com/wireguard/tun"
)

func openTUNFromFD(fd int) (tun.Device, string, error) {
	return nil, "", oops.In("engine").With("fd", fd).Errorf("adopting a TUN fd is only supported on linux and android")
}

func closeFD(int) {}
