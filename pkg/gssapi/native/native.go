// Package native defines the calling contract of a GSS-API credential
// provider.
//
// The package mirrors the C calling convention of RFC 2744: data outputs
// are written through pointers supplied by the caller, a nil pointer
// marks a slot as "not requested", and every call reports a two-part
// status (a major-status bit word plus a mechanism-specific minor code).
// Multi-output calls fill their requested slots in program order and may
// fail after a prefix of the slots has already been populated; callers
// own whatever a call produced, on the success path and on the failure
// path alike.
//
// Implementations of Lib register themselves by name (a pure-Go krb5
// backend lives in pkg/krb5; a cgo binding to MIT or Heimdal can be
// provided out of tree). The higher-level pkg/gssapi package wraps this
// contract in ownership-tracked types so that the release obligations
// cannot be violated.
//
// References:
//   - RFC 2743: GSS-API Version 2
//   - RFC 2744: GSS-API Version 2: C-bindings
package native

import (
	"fmt"
	"sync"
)

// CredHandle is an opaque credential handle issued by a Lib.
// The zero value is the library's null credential (GSS_C_NO_CREDENTIAL).
type CredHandle uintptr

// NameHandle is an opaque principal-name handle issued by a Lib.
// The zero value is GSS_C_NO_NAME.
type NameHandle uintptr

// OidSetHandle is an opaque mechanism-OID-set handle issued by a Lib.
// The zero value is GSS_C_NO_OID_SET.
type OidSetHandle uintptr

// Oid is the DER encoding of an object identifier, excluding the ASN.1
// tag and length octets, matching the gss_OID_desc element layout.
type Oid []byte

// Well-known mechanism and name-type OIDs.
var (
	// MechKrb5 is the Kerberos 5 mechanism OID: 1.2.840.113554.1.2.2.
	MechKrb5 = Oid{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x12, 0x01, 0x02, 0x02}

	// NTKrb5Principal is the Kerberos 5 principal name type:
	// 1.2.840.113554.1.2.2.1.
	NTKrb5Principal = Oid{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x12, 0x01, 0x02, 0x02, 0x01}

	// NTUserName is GSS_C_NT_USER_NAME: 1.2.840.113554.1.2.1.1.
	NTUserName = Oid{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x12, 0x01, 0x02, 0x01, 0x01}

	// NTHostbasedService is GSS_C_NT_HOSTBASED_SERVICE:
	// 1.2.840.113554.1.2.1.4.
	NTHostbasedService = Oid{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x12, 0x01, 0x02, 0x01, 0x04}
)

// Equal reports whether two OIDs have identical encodings.
func (o Oid) Equal(other Oid) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the OID in dotted-decimal form, e.g. "1.2.840.113554.1.2.2".
// A malformed encoding renders as a hex string rather than failing.
func (o Oid) String() string {
	if len(o) == 0 {
		return ""
	}
	out := fmt.Sprintf("%d.%d", o[0]/40, o[0]%40)
	var arc uint64
	for _, b := range o[1:] {
		arc = arc<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			out += fmt.Sprintf(".%d", arc)
			arc = 0
		}
	}
	if arc != 0 {
		// truncated base-128 arc
		return fmt.Sprintf("%x", []byte(o))
	}
	return out
}

// Credential usage codes per RFC 2744 Section 5.2 (gss_cred_usage_t).
const (
	UsageBoth     int32 = 0 // GSS_C_BOTH
	UsageInitiate int32 = 1 // GSS_C_INITIATE
	UsageAccept   int32 = 2 // GSS_C_ACCEPT
)

// Indefinite is GSS_C_INDEFINITE: the lifetime sentinel meaning
// "no expiry requested" (on input) or "does not expire" (on output).
const Indefinite uint32 = 0xffffffff

// Lib is the credential subsystem of one GSS-API provider.
//
// Every method returns the provider's raw (major, minor) status pair.
// Data outputs are written through the supplied pointers; a nil pointer
// means the slot is not requested and the provider must not produce
// that output. Any handle written to an output slot is owned by the
// caller, even when the overall call subsequently failed: InquireCred
// fills its slots in program order (name, lifetime, usage, mechanisms)
// and a failure after a partial fill leaves the already-filled handles
// live.
//
// Release calls zero the handle they are given so a stale copy cannot
// be released twice by accident. Releasing a zero handle is a no-op
// reporting Complete.
//
// Providers must allow independent handles to be used from concurrent
// goroutines; a single handle must not be released while another call
// against it is in flight.
type Lib interface {
	// AcquireCred acquires a credential handle per RFC 2744 Section 5.2.
	// name may be zero (default principal), desiredMechs may be zero
	// (default mechanism set), timeReq of Indefinite requests the
	// longest possible lifetime. cred is mandatory; actualMechs and
	// timeRec are optional diagnostic outputs. The credential output is
	// only populated on the Complete path.
	AcquireCred(name NameHandle, timeReq uint32, desiredMechs OidSetHandle, usage int32,
		cred *CredHandle, actualMechs *OidSetHandle, timeRec *uint32) (Status, uint32)

	// InquireCred reports credential properties per RFC 2744 Section 5.21.
	// Requested slots are filled in program order; the call may fail
	// after a prefix was populated, in which case the caller owns the
	// populated name/mechanism handles and must release them.
	InquireCred(cred CredHandle, name *NameHandle, lifetime *uint32, usage *int32,
		mechs *OidSetHandle) (Status, uint32)

	// ReleaseCred frees a credential handle and zeroes *cred.
	ReleaseCred(cred *CredHandle) (Status, uint32)

	// ImportName converts a contiguous string name to a name handle.
	ImportName(name string, nameType Oid, out *NameHandle) (Status, uint32)

	// DisplayName renders a name handle as a printable string and
	// reports its name type.
	DisplayName(name NameHandle, out *string, outType *Oid) (Status, uint32)

	// ReleaseName frees a name handle and zeroes *name.
	ReleaseName(name *NameHandle) (Status, uint32)

	// CreateEmptyOidSet allocates a new, empty OID set.
	CreateEmptyOidSet(out *OidSetHandle) (Status, uint32)

	// AddOidSetMember appends an OID to a set created by
	// CreateEmptyOidSet.
	AddOidSetMember(oid Oid, set *OidSetHandle) (Status, uint32)

	// OidSetElements reports the members of an OID set. The C bindings
	// read the set struct directly; a Go provider surfaces the contents
	// through this call instead.
	OidSetElements(set OidSetHandle, out *[]Oid) (Status, uint32)

	// ReleaseOidSet frees an OID set handle and zeroes *set.
	ReleaseOidSet(set *OidSetHandle) (Status, uint32)
}

var registry struct {
	sync.Mutex
	libs map[string]func() Lib
	def  Lib
}

func init() {
	registry.libs = make(map[string]func() Lib)
}

// Register makes a provider available under the given name. Providers
// call Register from their package init. Registering the same name
// twice is a programmer error and panics.
func Register(name string, factory func() Lib) {
	registry.Lock()
	defer registry.Unlock()

	if _, dup := registry.libs[name]; dup {
		panic("gssapi provider already registered: " + name)
	}
	registry.libs[name] = factory
}

// Open instantiates the provider registered under name.
func Open(name string) (Lib, error) {
	registry.Lock()
	defer registry.Unlock()

	f, ok := registry.libs[name]
	if !ok {
		return nil, fmt.Errorf("gssapi provider not registered: %q", name)
	}
	return f(), nil
}

// SetDefault installs the process-wide default provider returned by
// Default. Intended to be called once during program initialization.
func SetDefault(lib Lib) {
	registry.Lock()
	defer registry.Unlock()
	registry.def = lib
}

// Default returns the process-wide default provider, if one was set.
func Default() (Lib, error) {
	registry.Lock()
	defer registry.Unlock()

	if registry.def == nil {
		return nil, fmt.Errorf("no default gssapi provider configured")
	}
	return registry.def, nil
}
