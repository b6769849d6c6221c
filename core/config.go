package core

import (
	"context"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"

	"wireguard_android_wrapper/contract"
	"wireguard_android_wrapper/marshal"
)

const wireguardModule = "golang.zx2c4.com/wireguard"

// Config returns the tunnel's current UAPI configuration, or a nil Buffer.
func (e *Engine) Config(handle contract.Handle) marshal.Buffer {
	e.mu.Lock()
	t, ok := e.tunnels[handle]
	if !ok {
		e.mu.Unlock()
		return marshal.Buffer{}
	}
	settings, err := t.device.IpcGet()
	e.mu.Unlock()

	if err != nil {
		e.log.WithFields(logrus.Fields{"at": "core.Config", "handle": handle, "error": err}).Error("ipc_get_failed")
		return marshal.Buffer{}
	}
	return e.alloc.CString(settings)
}

// Version returns the wireguard-go version linked into the library.
func (e *Engine) Version() marshal.Buffer {
	info, _ := debug.ReadBuildInfo()
	return e.alloc.CString(moduleVersion(info))
}

// moduleVersion reports the wireguard-go version, shortening pseudo-versions to their
// commit prefix.
func moduleVersion(info *debug.BuildInfo) string {
	if info == nil {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path != wireguardModule {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			dep = dep.Replace
		}
		parts := strings.Split(dep.Version, "-")
		if len(parts) == 3 && len(parts[2]) == 12 {
			return parts[2][:7]
		}
		return dep.Version
	}
	return "unknown"
}

// AutoConnectUp provisions a tunnel from serverIP:port and returns its wg-quick config,
// or a nil Buffer when provisioning failed.
func (e *Engine) AutoConnectUp(serverIP, port, privateKey, publicKey marshal.View) marshal.Buffer {
	config, err := e.ac.Up(context.Background(),
		strings.Clone(serverIP.String()), strings.Clone(port.String()),
		strings.Clone(privateKey.String()), strings.Clone(publicKey.String()))
	if err != nil {
		return marshal.Buffer{}
	}
	return e.alloc.CString(config)
}

// AutoConnectDown deregisters publicKey from serverIP:port.
func (e *Engine) AutoConnectDown(serverIP, port, publicKey marshal.View) contract.Code {
	err := e.ac.Down(context.Background(),
		strings.Clone(serverIP.String()), strings.Clone(port.String()), strings.Clone(publicKey.String()))
	if err != nil {
		return contract.CodeFailed
	}
	return contract.CodeOK
}
