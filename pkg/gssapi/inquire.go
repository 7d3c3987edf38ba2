package gssapi

import (
	"github.com/marmos91/gsscred/internal/logger"
	"github.com/marmos91/gsscred/pkg/gssapi/native"
)

// credInfoSlots is the request/response builder for the multi-field
// inquire call. Each of the four optional outputs has a want flag; a
// slot that is not wanted is passed to the provider as a nil pointer
// so no output (and no ownership obligation) is produced for it.
//
// The provider fills requested slots in program order and may fail
// after a prefix was populated. After a failure, drain must run before
// the builder is discarded: every owned-handle slot that the partial
// fill touched is released, so nothing leaks and nothing escapes in an
// error result. The lifetime and usage slots are plain values and own
// nothing.
type credInfoSlots struct {
	wantName     bool
	wantLifetime bool
	wantUsage    bool
	wantMechs    bool

	name     native.NameHandle
	lifetime uint32
	usage    int32
	mechs    native.OidSetHandle
}

// inquire runs the native introspection call for the requested slots.
//
// On success every requested slot is populated. On failure the owned
// slots are drained and a *Error carrying the raw status pair is
// returned; the caller holds zero outstanding resource obligations
// either way.
func (c *Credential) inquire(s *credInfoSlots) error {
	h := c.Handle()
	if h == 0 {
		metrics.RecordInquiry(resultFailure)
		return errNoCred()
	}

	var (
		namePtr     *native.NameHandle
		lifetimePtr *uint32
		usagePtr    *int32
		mechsPtr    *native.OidSetHandle
	)
	if s.wantName {
		namePtr = &s.name
	}
	if s.wantLifetime {
		lifetimePtr = &s.lifetime
	}
	if s.wantUsage {
		usagePtr = &s.usage
	}
	if s.wantMechs {
		mechsPtr = &s.mechs
	}

	major, minor := c.lib.InquireCred(h, namePtr, lifetimePtr, usagePtr, mechsPtr)
	if major.IsError() {
		s.drain(c.lib)
		metrics.RecordInquiry(resultFailure)
		return &Error{Major: major, Minor: minor}
	}
	return nil
}

// drain releases whatever owned handles a fill produced and zeroes the
// slots. Unconditional over the owned-handle slots: it does not matter
// which field caused the failure, only which fields are live.
func (s *credInfoSlots) drain(lib native.Lib) {
	if s.name != 0 {
		h := s.name
		s.name = 0
		if major, minor := lib.ReleaseName(&h); major.IsError() {
			logger.Warn("gssapi: name release during inquire cleanup failed",
				"major", major.Name(), "minor", minor)
		}
		metrics.RecordCleanupRelease("name")
	}
	if s.mechs != 0 {
		h := s.mechs
		s.mechs = 0
		if major, minor := lib.ReleaseOidSet(&h); major.IsError() {
			logger.Warn("gssapi: oid set release during inquire cleanup failed",
				"major", major.Name(), "minor", minor)
		}
		metrics.RecordCleanupRelease("mechanisms")
	}
}
