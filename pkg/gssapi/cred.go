package gssapi

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/marmos91/gsscred/internal/logger"
	"github.com/marmos91/gsscred/pkg/gssapi/native"
)

// Credential owns one native credential handle. The zero-handle state
// is the released state, reached after Release (or by adopting the
// null handle); every operation against it fails gracefully with a
// GSS_S_NO_CRED status error instead of touching the provider.
//
// A Credential may be shared across goroutines for Info, Name,
// Lifetime, Usage and Mechanisms: those calls do not mutate the
// handle's observable state. Release is a single-owner operation and
// must not race with an in-flight call against the same value.
type Credential struct {
	lib native.Lib
	h   atomic.Uintptr
}

// CredInfo bundles everything a credential reports about itself. It is
// only constructed atomically: either all four fields are valid, or
// the aggregate does not exist. The caller owns Name and Mechanisms
// and releases them when done (or calls Release on the aggregate).
type CredInfo struct {
	Name       *Name
	Lifetime   time.Duration
	Usage      CredUsage
	Mechanisms *OidSet
}

// Release releases the owned handles inside the aggregate. Safe on nil
// and idempotent, like the underlying Release operations.
func (i *CredInfo) Release() {
	if i == nil {
		return
	}
	i.Name.Release()
	i.Mechanisms.Release()
}

// AcquireOptions describes a credential acquisition.
type AcquireOptions struct {
	// Lib is the provider to acquire from. Nil selects the process
	// default (native.Default).
	Lib native.Lib

	// Name is the desired principal. Nil requests the provider's
	// default principal. The name is borrowed, not consumed: the
	// caller keeps ownership.
	Name *Name

	// Lifetime is the requested credential lifetime. Zero requests
	// "as long as possible" and encodes to the provider's indefinite
	// sentinel, never to zero seconds.
	Lifetime time.Duration

	// Usage says what the credential will be used for.
	Usage CredUsage

	// Mechs is the desired mechanism set. Nil requests the provider's
	// default set and encodes to the null OID set, never to an
	// empty-but-allocated set. Borrowed, not consumed.
	Mechs *OidSet
}

// Acquire obtains a credential from the provider.
//
// On success the returned Credential owns the fresh handle. On failure
// the raw major/minor status pair is carried in the *Error; no partial
// resource is created, per the provider contract that the credential
// output is only populated on the success path.
//
// A Lifetime whose whole-seconds value exceeds the provider's 32-bit
// lifetime field is rejected with ErrLifetimeRange before any native
// call is made.
func Acquire(opts AcquireOptions) (*Credential, error) {
	lib := opts.Lib
	if lib == nil {
		var err error
		if lib, err = native.Default(); err != nil {
			return nil, err
		}
	}

	timeReq := native.Indefinite
	if opts.Lifetime > 0 {
		secs := uint64(opts.Lifetime / time.Second)
		if secs >= uint64(native.Indefinite) {
			return nil, ErrLifetimeRange
		}
		timeReq = uint32(secs)
	}

	// The actual-mechs and time-rec diagnostic outputs are not
	// requested; skipping the slots avoids the ownership obligation.
	var h native.CredHandle
	major, minor := lib.AcquireCred(
		opts.Name.Handle(),
		timeReq,
		opts.Mechs.Handle(),
		opts.Usage.code(),
		&h,
		nil,
		nil,
	)
	if major != native.Complete {
		metrics.RecordAcquisition(false)
		return nil, &Error{Major: major, Minor: minor}
	}

	metrics.RecordAcquisition(true)
	return adoptCred(lib, h), nil
}

// Adopt takes unconditional ownership of a credential handle produced
// elsewhere, for example one returned by a context-negotiation step.
// The raw handle must not be retained or released by the caller
// afterward; ownership is exclusive. Adopting the zero handle yields a
// Credential already in the released state.
func Adopt(lib native.Lib, h native.CredHandle) *Credential {
	return adoptCred(lib, h)
}

func adoptCred(lib native.Lib, h native.CredHandle) *Credential {
	c := &Credential{lib: lib}
	c.h.Store(uintptr(h))
	if h != 0 {
		runtime.SetFinalizer(c, finalizeCred)
		metrics.RecordAdoption()
	}
	return c
}

func finalizeCred(c *Credential) {
	if c.h.Load() == 0 {
		return
	}
	logger.Warn("gssapi: credential handle leaked, releasing in finalizer")
	c.Release()
}

// Handle exposes the underlying handle for passing into native calls
// without transferring ownership. It must never be used to release or
// invalidate the handle. Returns the zero handle after Release.
func (c *Credential) Handle() native.CredHandle {
	if c == nil {
		return 0
	}
	return native.CredHandle(c.h.Load())
}

// Release frees the native handle. Idempotent, safe on nil, and
// guaranteed to release the handle at most once no matter how many
// teardown triggers fire. The native release's own failure status is
// observed but never surfaced: destruction must not fail outward.
func (c *Credential) Release() {
	if c == nil {
		return
	}
	old := native.CredHandle(c.h.Swap(0))
	if old == 0 {
		return
	}
	runtime.SetFinalizer(c, nil)
	if major, minor := c.lib.ReleaseCred(&old); major.IsError() {
		logger.Warn("gssapi: credential release failed",
			"major", major.Name(), "minor", minor)
	}
	metrics.RecordRelease()
}

// Info returns everything the credential reports about itself: name,
// remaining lifetime, usage and mechanism set. The caller owns the
// returned aggregate's handles.
func (c *Credential) Info() (*CredInfo, error) {
	s := credInfoSlots{
		wantName:     true,
		wantLifetime: true,
		wantUsage:    true,
		wantMechs:    true,
	}
	if err := c.inquire(&s); err != nil {
		return nil, err
	}

	usage, err := credUsageFromCode(s.usage)
	if err != nil {
		// The overall call succeeded, so the name and mechanism
		// handles are live and owned by us. A decode failure must not
		// leak them.
		s.drain(c.lib)
		metrics.RecordInquiry(resultDecodeFailure)
		return nil, err
	}

	metrics.RecordInquiry(resultSuccess)
	return &CredInfo{
		Name:       adoptName(c.lib, s.name),
		Lifetime:   time.Duration(s.lifetime) * time.Second,
		Usage:      usage,
		Mechanisms: adoptOidSet(c.lib, s.mechs),
	}, nil
}

// Name returns the principal name the credential was acquired for.
// The caller owns the returned Name.
func (c *Credential) Name() (*Name, error) {
	s := credInfoSlots{wantName: true}
	if err := c.inquire(&s); err != nil {
		return nil, err
	}
	metrics.RecordInquiry(resultSuccess)
	return adoptName(c.lib, s.name), nil
}

// Lifetime returns the credential's remaining lifetime.
func (c *Credential) Lifetime() (time.Duration, error) {
	s := credInfoSlots{wantLifetime: true}
	if err := c.inquire(&s); err != nil {
		return 0, err
	}
	metrics.RecordInquiry(resultSuccess)
	return time.Duration(s.lifetime) * time.Second, nil
}

// Usage returns the credential's allowed usage.
func (c *Credential) Usage() (CredUsage, error) {
	s := credInfoSlots{wantUsage: true}
	if err := c.inquire(&s); err != nil {
		return 0, err
	}
	usage, err := credUsageFromCode(s.usage)
	if err != nil {
		// No owned-handle slots were requested, so there is nothing
		// to drain; the decode failure alone is the outcome.
		metrics.RecordInquiry(resultDecodeFailure)
		return 0, err
	}
	metrics.RecordInquiry(resultSuccess)
	return usage, nil
}

// Mechanisms returns the mechanism set the credential may be used
// with. The caller owns the returned OidSet.
func (c *Credential) Mechanisms() (*OidSet, error) {
	s := credInfoSlots{wantMechs: true}
	if err := c.inquire(&s); err != nil {
		return nil, err
	}
	metrics.RecordInquiry(resultSuccess)
	return adoptOidSet(c.lib, s.mechs), nil
}
