package gssapi

import (
	"runtime"
	"sync/atomic"

	"github.com/marmos91/gsscred/internal/logger"
	"github.com/marmos91/gsscred/pkg/gssapi/native"
)

// Name owns one native principal-name handle. The zero-handle state is
// the released state; every operation against it fails gracefully.
// Names are not copyable: pass the *Name around, never the struct.
type Name struct {
	lib native.Lib
	h   atomic.Uintptr
}

// ImportName converts a contiguous string name (for example
// "user@REALM" or "service/host@REALM") into an owned Name.
func ImportName(lib native.Lib, name string, nameType native.Oid) (*Name, error) {
	var h native.NameHandle
	if major, minor := lib.ImportName(name, nameType, &h); major != native.Complete {
		return nil, &Error{Major: major, Minor: minor}
	}
	return adoptName(lib, h), nil
}

// AdoptName takes unconditional ownership of a name handle produced
// elsewhere (for example by a context-negotiation step). The raw handle
// must not be retained or released by the caller afterward. Adopting
// the zero handle yields a Name already in the released state.
func AdoptName(lib native.Lib, h native.NameHandle) *Name {
	return adoptName(lib, h)
}

func adoptName(lib native.Lib, h native.NameHandle) *Name {
	n := &Name{lib: lib}
	n.h.Store(uintptr(h))
	if h != 0 {
		runtime.SetFinalizer(n, finalizeName)
	}
	return n
}

func finalizeName(n *Name) {
	if n.h.Load() == 0 {
		return
	}
	logger.Warn("gssapi: name handle leaked, releasing in finalizer")
	n.Release()
}

// Handle exposes the underlying handle for passing into native calls.
// Ownership is not transferred: the handle must never be released or
// invalidated through this accessor. Returns the zero handle after
// Release.
func (n *Name) Handle() native.NameHandle {
	if n == nil {
		return 0
	}
	return native.NameHandle(n.h.Load())
}

// Display renders the name as a printable string.
func (n *Name) Display() (string, error) {
	h := n.Handle()
	if h == 0 {
		return "", &Error{Major: native.BadName}
	}
	var s string
	if major, minor := n.lib.DisplayName(h, &s, nil); major.IsError() {
		return "", &Error{Major: major, Minor: minor}
	}
	return s, nil
}

// Release frees the native handle. It is idempotent and safe on nil:
// the handle is released at most once no matter how many teardown
// triggers fire. A failure from the native release is observed but not
// surfaced; there is no meaningful recovery during teardown.
func (n *Name) Release() {
	if n == nil {
		return
	}
	old := native.NameHandle(n.h.Swap(0))
	if old == 0 {
		return
	}
	runtime.SetFinalizer(n, nil)
	if major, minor := n.lib.ReleaseName(&old); major.IsError() {
		logger.Warn("gssapi: name release failed",
			"major", major.Name(), "minor", minor)
	}
}
