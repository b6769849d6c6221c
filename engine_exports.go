//go:build android && cgo

package main

// The symbols below keep the libwg-go C ABI, so JNI glue written in C can drive the
// engine directly. Go strings arrive as borrowed go_string views; returned char*
// buffers are malloc'd and must be released by the caller with free().

//#include <stdlib.h>
import "C"

import (
	"wireguard_android_wrapper/contract"
	"wireguard_android_wrapper/marshal"
)

func cBuffer(buf marshal.Buffer) *C.char {
	return (*C.char)(buf.Pointer())
}

//export wgTurnOn
func wgTurnOn(interfaceName string, tunFd int32, settings string) int32 {
	handle := contract.InvalidHandle
	guard("wgTurnOn", func() {
		handle = getEngine().TurnOn(marshal.ViewOf(interfaceName), contract.FD(tunFd), marshal.ViewOf(settings))
	})
	return int32(handle)
}

//export wgTurnOff
func wgTurnOff(tunnelHandle int32) {
	guard("wgTurnOff", func() {
		getEngine().TurnOff(contract.Handle(tunnelHandle))
	})
}

//export wgGetSocketV4
func wgGetSocketV4(tunnelHandle int32) int32 {
	fd := contract.InvalidFD
	guard("wgGetSocketV4", func() {
		fd = getEngine().SocketV4(contract.Handle(tunnelHandle))
	})
	return int32(fd)
}

//export wgGetSocketV6
func wgGetSocketV6(tunnelHandle int32) int32 {
	fd := contract.InvalidFD
	guard("wgGetSocketV6", func() {
		fd = getEngine().SocketV6(contract.Handle(tunnelHandle))
	})
	return int32(fd)
}

//export wgGetConfig
func wgGetConfig(tunnelHandle int32) *C.char {
	var buf marshal.Buffer
	guard("wgGetConfig", func() {
		buf = getEngine().Config(contract.Handle(tunnelHandle))
	})
	return cBuffer(buf)
}

//export wgVersion
func wgVersion() *C.char {
	var buf marshal.Buffer
	guard("wgVersion", func() {
		buf = getEngine().Version()
	})
	return cBuffer(buf)
}

//export acTurnOn
func acTurnOn(serverIP, serverPort, privateKey, publicKey string) *C.char {
	var buf marshal.Buffer
	guard("acTurnOn", func() {
		buf = getEngine().AutoConnectUp(marshal.ViewOf(serverIP), marshal.ViewOf(serverPort),
			marshal.ViewOf(privateKey), marshal.ViewOf(publicKey))
	})
	return cBuffer(buf)
}

//export acTurnOff
func acTurnOff(serverIP, serverPort, publicKey string) int32 {
	code := contract.CodeFailed
	guard("acTurnOff", func() {
		code = getEngine().AutoConnectDown(marshal.ViewOf(serverIP), marshal.ViewOf(serverPort), marshal.ViewOf(publicKey))
	})
	return int32(code)
}
