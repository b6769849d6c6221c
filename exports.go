//go:build android && cgo

package main

//#include "jni_bridge.h"
import "C"

import (
	"wireguard_android_wrapper/api"
	"wireguard_android_wrapper/contract"
	"wireguard_android_wrapper/marshal"
)

// guard runs fn and recovers any panic so it never unwinds into the JVM or C glue.
func guard(method string, fn func()) {
	ensureRuntime()
	api.Recover(runtimeLog, method, fn)
}

// Java_com_wireguard_android_backend_GoBackend_wgTurnOn creates a tunnel on tunFd and
// returns its handle, or -1.
//
//export Java_com_wireguard_android_backend_GoBackend_wgTurnOn
func Java_com_wireguard_android_backend_GoBackend_wgTurnOn(env *C.JNIEnv, c C.jclass, ifname C.jstring, tunFd C.jint, settings C.jstring) C.jint {
	handle := contract.InvalidHandle
	guard("wgTurnOn", func() {
		handle = getBridge().TurnOn(jniHost{env}, marshal.Ref(ifname), contract.FD(tunFd), marshal.Ref(settings))
	})
	return C.jint(handle)
}

//export Java_com_wireguard_android_backend_GoBackend_wgTurnOff
func Java_com_wireguard_android_backend_GoBackend_wgTurnOff(env *C.JNIEnv, c C.jclass, handle C.jint) {
	guard("wgTurnOff", func() {
		getBridge().TurnOff(contract.Handle(handle))
	})
}

//export Java_com_wireguard_android_backend_GoBackend_wgGetSocketV4
func Java_com_wireguard_android_backend_GoBackend_wgGetSocketV4(env *C.JNIEnv, c C.jclass, handle C.jint) C.jint {
	fd := contract.InvalidFD
	guard("wgGetSocketV4", func() {
		fd = getBridge().SocketV4(contract.Handle(handle))
	})
	return C.jint(fd)
}

//export Java_com_wireguard_android_backend_GoBackend_wgGetSocketV6
func Java_com_wireguard_android_backend_GoBackend_wgGetSocketV6(env *C.JNIEnv, c C.jclass, handle C.jint) C.jint {
	fd := contract.InvalidFD
	guard("wgGetSocketV6", func() {
		fd = getBridge().SocketV6(contract.Handle(handle))
	})
	return C.jint(fd)
}

// Java_com_wireguard_android_backend_GoBackend_wgGetConfig returns the UAPI config of a
// tunnel, or null.
//
//export Java_com_wireguard_android_backend_GoBackend_wgGetConfig
func Java_com_wireguard_android_backend_GoBackend_wgGetConfig(env *C.JNIEnv, c C.jclass, handle C.jint) C.jstring {
	var ret marshal.Ref
	guard("wgGetConfig", func() {
		ret = getBridge().Config(jniHost{env}, contract.Handle(handle))
	})
	return C.jstring(ret)
}

//export Java_com_wireguard_android_backend_GoBackend_wgVersion
func Java_com_wireguard_android_backend_GoBackend_wgVersion(env *C.JNIEnv, c C.jclass) C.jstring {
	var ret marshal.Ref
	guard("wgVersion", func() {
		ret = getBridge().Version(jniHost{env})
	})
	return C.jstring(ret)
}

// Java_com_wireguard_android_backend_GoBackend_acTurnOn provisions a tunnel from an
// auto-connect server and returns its wg-quick config, or null.
//
//export Java_com_wireguard_android_backend_GoBackend_acTurnOn
func Java_com_wireguard_android_backend_GoBackend_acTurnOn(env *C.JNIEnv, c C.jclass, serverIP, port, privateKey, publicKey C.jstring) C.jstring {
	var ret marshal.Ref
	guard("acTurnOn", func() {
		ret = getBridge().AutoConnectUp(jniHost{env},
			marshal.Ref(serverIP), marshal.Ref(port), marshal.Ref(privateKey), marshal.Ref(publicKey))
	})
	return C.jstring(ret)
}

// Java_com_wireguard_android_backend_GoBackend_acTurnOff deregisters publicKey from an
// auto-connect server. It returns 0 on success and -1 otherwise.
//
//export Java_com_wireguard_android_backend_GoBackend_acTurnOff
func Java_com_wireguard_android_backend_GoBackend_acTurnOff(env *C.JNIEnv, c C.jclass, serverIP, port, publicKey C.jstring) C.jint {
	code := contract.CodeFailed
	guard("acTurnOff", func() {
		code = getBridge().AutoConnectDown(jniHost{env}, marshal.Ref(serverIP), marshal.Ref(port), marshal.Ref(publicKey))
	})
	return C.jint(code)
}
