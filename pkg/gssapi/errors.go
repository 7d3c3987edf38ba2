package gssapi

import (
	"errors"
	"fmt"

	"github.com/marmos91/gsscred/pkg/gssapi/native"
)

// Error is a failure reported by the native provider. It preserves the
// provider's raw two-part status: the major-status bit word and the
// mechanism-specific minor code. Callers needing finer diagnosis
// inspect Major's routine-error portion (for example native.NoCred or
// native.CredentialsExpired).
type Error struct {
	Major native.Status
	Minor uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("gssapi: %s (minor %d)", e.Major.Name(), e.Minor)
}

// UsageError reports that the provider returned a credential-usage code
// outside the three recognized values. It is a decode-time integrity
// failure, distinct from an operation failure: the call itself
// succeeded but produced a value this layer does not understand.
type UsageError struct {
	Code int32
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("gssapi: unrecognized credential usage code %d", e.Code)
}

// ErrLifetimeRange is returned by Acquire when the requested lifetime's
// whole-seconds value does not fit the provider's 32-bit lifetime
// field. The request is rejected before any native call is made;
// nothing is silently truncated.
var ErrLifetimeRange = errors.New("gssapi: requested lifetime exceeds the representable range")

func errNoCred() *Error {
	return &Error{Major: native.NoCred}
}
