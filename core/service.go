package core

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/conn"
	"golang.zx2c4.com/wireguard/tun"

	"wireguard_android_wrapper/contract"
	"wireguard_android_wrapper/core/autoconnect"
	"wireguard_android_wrapper/marshal"
)

type Options struct {
	// Allocator backs every Buffer the engine returns.
	Allocator marshal.Allocator
	Logger    logrus.FieldLogger
	// OpenTUN adopts a TUN file descriptor handed over by the host.
	OpenTUN func(fd int) (tun.Device, string, error)
	NewBind func() conn.Bind
	// UAPIDir holds the per-interface UAPI control sockets. Empty disables them.
	UAPIDir     string
	AutoConnect autoconnect.Options
}

// Engine runs wireguard-go devices addressed by integer handles.
type Engine struct {
	alloc   marshal.Allocator
	log     logrus.FieldLogger
	openTUN func(fd int) (tun.Device, string, error)
	newBind func() conn.Bind
	uapiDir string
	ac      *autoconnect.Client

	mu      sync.Mutex
	tunnels map[contract.Handle]*tunnel
}

var _ contract.Engine = (*Engine)(nil)

// New creates an Engine. Allocator is required; other fields have defaults.
func New(opts Options) *Engine {
	if opts.Allocator == nil {
		panic("core: Options.Allocator is required")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.OpenTUN == nil {
		opts.OpenTUN = openTUNFromFD
	}
	if opts.NewBind == nil {
		opts.NewBind = conn.NewStdNetBind
	}
	return &Engine{
		alloc:   opts.Allocator,
		log:     log,
		openTUN: opts.OpenTUN,
		newBind: opts.NewBind,
		uapiDir: opts.UAPIDir,
		ac:      autoconnect.NewClient(opts.AutoConnect, log),
		tunnels: make(map[contract.Handle]*tunnel),
	}
}

// Shutdown closes every live tunnel.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	tunnels := e.tunnels
	e.tunnels = make(map[contract.Handle]*tunnel)
	e.mu.Unlock()

	for _, t := range tunnels {
		t.close()
	}
}

// Len returns the number of live tunnels.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tunnels)
}
