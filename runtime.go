//go:build android && cgo

package main

import (
	"sync"

	"github.com/sirupsen/logrus"

	"wireguard_android_wrapper/api"
	"wireguard_android_wrapper/core"
	"wireguard_android_wrapper/core/autoconnect"
)

// uapiDir is the directory for UAPI control sockets, set at link time with
// -X main.uapiDir=<dir>. Android apps cannot write wireguard-go's default location, so
// UAPI stays off unless a build names an app-private directory.
var uapiDir string

var (
	runtimeOnce   sync.Once
	runtimeLog    *logrus.Logger
	runtimeEngine *core.Engine
	runtimeBridge *api.Bridge
)

// ensureRuntime initializes the singleton Engine and Bridge used by exported symbols.
func ensureRuntime() {
	runtimeOnce.Do(func() {
		runtimeLog = newLogger()
		alloc := cAllocator{}
		runtimeEngine = core.New(core.Options{
			Allocator:   alloc,
			Logger:      runtimeLog,
			UAPIDir:     uapiDir,
			AutoConnect: autoconnect.DefaultOptions(),
		})
		runtimeBridge = api.New(runtimeEngine, alloc)
		watchStackDumps()
	})
}

// getEngine returns the singleton engine.
func getEngine() *core.Engine {
	ensureRuntime()
	return runtimeEngine
}

// getBridge returns the singleton JNI bridge.
func getBridge() *api.Bridge {
	ensureRuntime()
	return runtimeBridge
}

func main() {}
