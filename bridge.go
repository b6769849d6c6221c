//go:build android && cgo

package main

//#cgo LDFLAGS: -llog
//#include "jni_bridge.h"
import "C"
import (
	"unsafe"

	"wireguard_android_wrapper/marshal"
)

// jniHost exposes java.lang.String objects through the JNIEnv of the current call.
// A JNIEnv is only valid on the thread that received it, so a jniHost never outlives
// the entry point that built it.
type jniHost struct {
	env *C.JNIEnv
}

// Pin pins the modified UTF-8 chars of a jstring.
func (h jniHost) Pin(ref marshal.Ref) marshal.View {
	var n C.jsize
	chars := C.wg_pin_string(h.env, C.jstring(ref), &n)
	return marshal.NewView(unsafe.Pointer(chars), int(n))
}

// Unpin releases chars obtained from Pin.
func (h jniHost) Unpin(ref marshal.Ref, view marshal.View) {
	C.wg_unpin_string(h.env, C.jstring(ref), (*C.char)(view.Pointer()))
}

// NewString copies buf into a new jstring.
func (h jniHost) NewString(buf marshal.Buffer) marshal.Ref {
	return marshal.Ref(C.wg_new_string(h.env, (*C.char)(buf.Pointer())))
}

// cAllocator hands out malloc'd buffers, releasable with free() on either side.
type cAllocator struct{}

func (cAllocator) CString(s string) marshal.Buffer {
	return marshal.BufferAt(unsafe.Pointer(C.CString(s)))
}

func (cAllocator) Free(buf marshal.Buffer) {
	C.free(buf.Pointer())
}

// logcat writes msg under tag.
func logcat(level int, tag, msg string) {
	ctag := C.CString(tag)
	defer C.free(unsafe.Pointer(ctag))
	cmsg := C.CString(msg)
	defer C.free(unsafe.Pointer(cmsg))
	C.wg_log(C.int(level), ctag, cmsg)
}
