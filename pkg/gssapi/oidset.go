package gssapi

import (
	"runtime"
	"sync/atomic"

	"github.com/marmos91/gsscred/internal/logger"
	"github.com/marmos91/gsscred/pkg/gssapi/native"
)

// OidSet owns one native mechanism-OID-set handle. The zero-handle
// state is the released state. Not copyable; pass the *OidSet around.
type OidSet struct {
	lib native.Lib
	h   atomic.Uintptr
}

// NewOidSet builds an owned OID set containing the given members.
// On any failure the partially-built set is released before the error
// is returned.
func NewOidSet(lib native.Lib, oids []native.Oid) (*OidSet, error) {
	var h native.OidSetHandle
	if major, minor := lib.CreateEmptyOidSet(&h); major != native.Complete {
		return nil, &Error{Major: major, Minor: minor}
	}
	for _, oid := range oids {
		if major, minor := lib.AddOidSetMember(oid, &h); major != native.Complete {
			if relMajor, relMinor := lib.ReleaseOidSet(&h); relMajor.IsError() {
				logger.Warn("gssapi: oid set release failed",
					"major", relMajor.Name(), "minor", relMinor)
			}
			return nil, &Error{Major: major, Minor: minor}
		}
	}
	return adoptOidSet(lib, h), nil
}

// AdoptOidSet takes unconditional ownership of an OID-set handle
// produced elsewhere. The raw handle must not be retained or released
// by the caller afterward. Adopting the zero handle yields a set
// already in the released state.
func AdoptOidSet(lib native.Lib, h native.OidSetHandle) *OidSet {
	return adoptOidSet(lib, h)
}

func adoptOidSet(lib native.Lib, h native.OidSetHandle) *OidSet {
	s := &OidSet{lib: lib}
	s.h.Store(uintptr(h))
	if h != 0 {
		runtime.SetFinalizer(s, finalizeOidSet)
	}
	return s
}

func finalizeOidSet(s *OidSet) {
	if s.h.Load() == 0 {
		return
	}
	logger.Warn("gssapi: oid set handle leaked, releasing in finalizer")
	s.Release()
}

// Handle exposes the underlying handle for passing into native calls
// without transferring ownership. Returns the zero handle after
// Release.
func (s *OidSet) Handle() native.OidSetHandle {
	if s == nil {
		return 0
	}
	return native.OidSetHandle(s.h.Load())
}

// Oids reports the members of the set. A released (or null-adopted)
// set reports no members.
func (s *OidSet) Oids() ([]native.Oid, error) {
	h := s.Handle()
	if h == 0 {
		return nil, nil
	}
	var oids []native.Oid
	if major, minor := s.lib.OidSetElements(h, &oids); major.IsError() {
		return nil, &Error{Major: major, Minor: minor}
	}
	return oids, nil
}

// Contains reports whether the set includes the given OID.
func (s *OidSet) Contains(oid native.Oid) (bool, error) {
	oids, err := s.Oids()
	if err != nil {
		return false, err
	}
	for _, o := range oids {
		if o.Equal(oid) {
			return true, nil
		}
	}
	return false, nil
}

// Release frees the native handle, at most once, swallowing release
// failures. Safe on nil and on an already-released set.
func (s *OidSet) Release() {
	if s == nil {
		return
	}
	old := native.OidSetHandle(s.h.Swap(0))
	if old == 0 {
		return
	}
	runtime.SetFinalizer(s, nil)
	if major, minor := s.lib.ReleaseOidSet(&old); major.IsError() {
		logger.Warn("gssapi: oid set release failed",
			"major", major.Name(), "minor", minor)
	}
}
