package contract

import "wireguard_android_wrapper/marshal"

// Handle identifies a live tunnel inside the engine. Negative values signal failure.
type Handle int32

// InvalidHandle is what TurnOn returns when no tunnel was created.
const InvalidHandle Handle = -1

// Valid reports whether h may identify a live tunnel.
func (h Handle) Valid() bool { return h >= 0 }

// FD is a file descriptor passed to or returned from the engine. Negative means none.
type FD int32

// InvalidFD is returned by socket queries that have nothing to report.
const InvalidFD FD = -1

// Code is an integer result code. Negative means failure.
type Code int32

const (
	CodeOK     Code = 0
	CodeFailed Code = -1
)

// Engine is the native tunnel engine. Views are valid only for the duration of the call
// and must be cloned if retained. Returned Buffers belong to the caller, who frees them with
// the Allocator the engine was built with.
type Engine interface {
	TurnOn(ifname marshal.View, tunFd FD, settings marshal.View) Handle
	TurnOff(handle Handle)
	SocketV4(handle Handle) FD
	SocketV6(handle Handle) FD
	Config(handle Handle) marshal.Buffer
	Version() marshal.Buffer

	AutoConnectUp(serverIP, port, privateKey, publicKey marshal.View) marshal.Buffer
	AutoConnectDown(serverIP, port, publicKey marshal.View) Code
}
