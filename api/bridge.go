package api

import (
	"wireguard_android_wrapper/contract"
	"wireguard_android_wrapper/marshal"
)

// Bridge translates host calls into engine calls. It keeps no state of its own: handles
// pass through untouched and every result comes back verbatim.
type Bridge struct {
	Engine    contract.Engine
	Allocator marshal.Allocator
}

// New creates a Bridge over engine. alloc must be the allocator engine buffers come from.
func New(engine contract.Engine, alloc marshal.Allocator) *Bridge {
	return &Bridge{Engine: engine, Allocator: alloc}
}

func (b *Bridge) marshaller(host marshal.Host) marshal.Marshaller {
	return marshal.New(host, b.Allocator)
}

// TurnOn creates a tunnel on tunFd named ifname and configured by settings.
func (b *Bridge) TurnOn(host marshal.Host, ifname marshal.Ref, tunFd contract.FD, settings marshal.Ref) contract.Handle {
	handle := contract.InvalidHandle
	b.marshaller(host).Borrow([]marshal.Ref{ifname, settings}, func(v []marshal.View) {
		handle = b.Engine.TurnOn(v[0], tunFd, v[1])
	})
	return handle
}

// TurnOff destroys the tunnel behind handle. Repeated calls are up to the engine.
func (b *Bridge) TurnOff(handle contract.Handle) {
	b.Engine.TurnOff(handle)
}

// SocketV4 returns the tunnel's IPv4 UDP socket.
func (b *Bridge) SocketV4(handle contract.Handle) contract.FD {
	return b.Engine.SocketV4(handle)
}

// SocketV6 returns the tunnel's IPv6 UDP socket.
func (b *Bridge) SocketV6(handle contract.Handle) contract.FD {
	return b.Engine.SocketV6(handle)
}

// Config returns the tunnel's UAPI configuration, or nil.
func (b *Bridge) Config(host marshal.Host, handle contract.Handle) marshal.Ref {
	return b.marshaller(host).Own(b.Engine.Config(handle))
}

// Version returns the engine version, or nil.
func (b *Bridge) Version(host marshal.Host) marshal.Ref {
	return b.marshaller(host).Own(b.Engine.Version())
}

// AutoConnectUp provisions a tunnel from serverIP:port and returns its configuration,
// or nil on failure.
func (b *Bridge) AutoConnectUp(host marshal.Host, serverIP, port, privateKey, publicKey marshal.Ref) marshal.Ref {
	m := b.marshaller(host)
	var out marshal.Buffer
	m.Borrow([]marshal.Ref{serverIP, port, privateKey, publicKey}, func(v []marshal.View) {
		out = b.Engine.AutoConnectUp(v[0], v[1], v[2], v[3])
	})
	return m.Own(out)
}

// AutoConnectDown tells serverIP:port to forget publicKey.
func (b *Bridge) AutoConnectDown(host marshal.Host, serverIP, port, publicKey marshal.Ref) contract.Code {
	code := contract.CodeFailed
	b.marshaller(host).Borrow([]marshal.Ref{serverIP, port, publicKey}, func(v []marshal.View) {
		code = b.Engine.AutoConnectDown(v[0], v[1], v[2])
	})
	return code
}
