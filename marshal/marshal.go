// Package marshal moves text across the host/engine boundary.
//
// Inbound text is borrowed: the host pins its storage, the engine sees a View for the
// duration of one call, and the storage is unpinned when that call returns. Outbound text
// is owned: the engine allocates a NUL-terminated Buffer, the host copies it, and the
// Buffer is freed exactly once.
package marshal

import "unsafe"

// Ref is an opaque reference to a host text object. nil is the host's "no value".
type Ref unsafe.Pointer

// View is a non-owning (pointer, length) view of host text.
// It is valid only inside the Borrow callback that produced it.
type View struct {
	ptr unsafe.Pointer
	n   int
}

// NewView wraps n bytes at ptr. A nil ptr yields the zero view; a non-nil ptr with no
// bytes is still a pinned, empty view.
func NewView(ptr unsafe.Pointer, n int) View {
	if ptr == nil {
		return View{}
	}
	if n < 0 {
		n = 0
	}
	return View{ptr: ptr, n: n}
}

// ViewOf wraps a string that is already borrowed from the caller, such as a Go string
// handed in through an exported C function.
func ViewOf(s string) View {
	if len(s) == 0 {
		return View{}
	}
	return View{ptr: unsafe.Pointer(unsafe.StringData(s)), n: len(s)}
}

// Len returns the byte length of the view.
func (v View) Len() int { return v.n }

// Pointer returns the start of the viewed bytes, or nil for the zero view.
func (v View) Pointer() unsafe.Pointer { return v.ptr }

// IsZero reports whether the view references no storage at all.
func (v View) IsZero() bool { return v.ptr == nil }

// String aliases the viewed bytes without copying. Callers that keep the value past the
// borrow must clone it.
func (v View) String() string {
	if v.n == 0 {
		return ""
	}
	return unsafe.String((*byte)(v.ptr), v.n)
}

// Buffer is a NUL-terminated allocation produced by the engine.
// Ownership passes to whoever receives it.
type Buffer struct {
	ptr unsafe.Pointer
}

// BufferAt adopts the NUL-terminated allocation at ptr.
func BufferAt(ptr unsafe.Pointer) Buffer { return Buffer{ptr: ptr} }

// IsNil reports whether the buffer carries no value.
func (b Buffer) IsNil() bool { return b.ptr == nil }

// Pointer returns the start of the allocation.
func (b Buffer) Pointer() unsafe.Pointer { return b.ptr }

// Len returns the number of bytes before the terminating NUL.
func (b Buffer) Len() int {
	if b.ptr == nil {
		return 0
	}
	n := 0
	for *(*byte)(unsafe.Add(b.ptr, n)) != 0 {
		n++
	}
	return n
}

// Bytes aliases the content up to, not including, the terminating NUL.
func (b Buffer) Bytes() []byte {
	n := b.Len()
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(b.ptr), n)
}

// Host is the managed runtime that owns text objects.
type Host interface {
	// Pin exposes the storage behind ref until Unpin. A zero View means nothing was pinned.
	Pin(ref Ref) View
	// Unpin releases a view previously returned by Pin.
	Unpin(ref Ref, view View)
	// NewString copies buf into a new host text object.
	NewString(buf Buffer) Ref
}

// Allocator is the heap Buffers are allocated from.
type Allocator interface {
	CString(s string) Buffer
	Free(buf Buffer)
}
