// Package marshaltest provides allocation-tracking doubles for the marshal package.
package marshaltest

import (
	"sync"
	"unsafe"

	"wireguard_android_wrapper/marshal"
)

// Heap is a marshal.Allocator backed by Go memory that records every allocation and free.
type Heap struct {
	mu          sync.Mutex
	live        map[unsafe.Pointer][]byte
	dead        map[unsafe.Pointer][]byte
	allocs      int
	frees       map[unsafe.Pointer]int
	doubleFrees int
	strayFrees  int
}

// NewHeap returns an empty Heap.
func NewHeap() *Heap {
	return &Heap{
		live:  make(map[unsafe.Pointer][]byte),
		dead:  make(map[unsafe.Pointer][]byte),
		frees: make(map[unsafe.Pointer]int),
	}
}

// CString copies s into a fresh NUL-terminated allocation.
func (h *Heap) CString(s string) marshal.Buffer {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	ptr := unsafe.Pointer(&buf[0])

	h.mu.Lock()
	h.live[ptr] = buf
	h.allocs++
	h.mu.Unlock()
	return marshal.BufferAt(ptr)
}

// Free releases buf. Freeing twice or freeing memory the heap never handed out is
// recorded rather than panicking, so tests can assert on it.
func (h *Heap) Free(buf marshal.Buffer) {
	ptr := buf.Pointer()
	h.mu.Lock()
	defer h.mu.Unlock()

	if ptr == nil {
		h.strayFrees++
		return
	}
	h.frees[ptr]++
	stored, ok := h.live[ptr]
	if !ok {
		if h.frees[ptr] > 1 {
			h.doubleFrees++
		} else {
			h.strayFrees++
		}
		return
	}
	// Poison so reads after free are visible in assertions.
	for i := range stored[:len(stored)-1] {
		stored[i] = 0xff
	}
	// Freed memory stays referenced so its address is never handed out again.
	delete(h.live, ptr)
	h.dead[ptr] = stored
}

// Allocs returns the number of allocations made.
func (h *Heap) Allocs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocs
}

// Frees returns the total number of Free calls that hit a live or freed allocation.
func (h *Heap) Frees() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.frees {
		n += c
	}
	return n
}

// FreesOf returns how many times buf was freed.
func (h *Heap) FreesOf(buf marshal.Buffer) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frees[buf.Pointer()]
}

// Live returns the number of allocations not yet freed.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// DoubleFrees returns the number of frees of already freed memory.
func (h *Heap) DoubleFrees() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doubleFrees
}

// StrayFrees returns the number of frees of nil or foreign pointers.
func (h *Heap) StrayFrees() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.strayFrees
}

type object struct {
	data []byte
}

type pin struct {
	ref  marshal.Ref
	copy []byte
}

// Host is a marshal.Host that hands out a private copy on every Pin, the way a JVM may,
// and poisons it on Unpin.
type Host struct {
	// FailPin makes every Pin expose no storage, as when the runtime is out of memory.
	FailPin bool

	mu         sync.Mutex
	objects    []*object
	pins       map[unsafe.Pointer]*pin
	pinCount   int
	unpinCount int
	badUnpins  int
	created    int
}

// NewHost returns an empty Host.
func NewHost() *Host {
	return &Host{pins: make(map[unsafe.Pointer]*pin)}
}

// Text creates a host text object holding s.
func (h *Host) Text(s string) marshal.Ref {
	obj := &object{data: []byte(s)}
	h.mu.Lock()
	h.objects = append(h.objects, obj)
	h.mu.Unlock()
	return marshal.Ref(unsafe.Pointer(obj))
}

// Value returns the content of ref.
func (h *Host) Value(ref marshal.Ref) string {
	return string((*object)(unsafe.Pointer(ref)).data)
}

// Pin exposes a copy of the object's bytes, NUL-terminated like modified UTF-8 chars.
func (h *Host) Pin(ref marshal.Ref) marshal.View {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailPin {
		return marshal.View{}
	}
	obj := (*object)(unsafe.Pointer(ref))
	cp := make([]byte, len(obj.data)+1)
	copy(cp, obj.data)
	ptr := unsafe.Pointer(&cp[0])
	h.pins[ptr] = &pin{ref: ref, copy: cp}
	h.pinCount++
	return marshal.NewView(ptr, len(obj.data))
}

// Unpin releases a pinned copy and overwrites it.
func (h *Host) Unpin(ref marshal.Ref, view marshal.View) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pins[view.Pointer()]
	if !ok || p.ref != ref {
		h.badUnpins++
		return
	}
	for i := range p.copy {
		p.copy[i] = 0xff
	}
	delete(h.pins, view.Pointer())
	h.unpinCount++
}

// NewString copies buf into a new host object.
func (h *Host) NewString(buf marshal.Buffer) marshal.Ref {
	obj := &object{data: append([]byte(nil), buf.Bytes()...)}
	h.mu.Lock()
	h.objects = append(h.objects, obj)
	h.created++
	h.mu.Unlock()
	return marshal.Ref(unsafe.Pointer(obj))
}

// Pins returns the number of successful Pin calls.
func (h *Host) Pins() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pinCount
}

// Unpins returns the number of matched Unpin calls.
func (h *Host) Unpins() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unpinCount
}

// Outstanding returns the number of pins not yet released.
func (h *Host) Outstanding() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pins)
}

// BadUnpins returns the number of Unpin calls that matched no outstanding pin.
func (h *Host) BadUnpins() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.badUnpins
}

// Created returns the number of host objects made by NewString.
func (h *Host) Created() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created
}
