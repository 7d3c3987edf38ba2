// Package krb5 is a pure-Go GSS-API credential provider backed by
// jcmturner/gokrb5.
//
// The provider implements native.Lib without cgo. Initiator credentials
// resolve from a Kerberos credential cache (kinit's ccache); acceptor
// credentials resolve from a keytab. Handles issued by this provider
// are entries in a process-local table: they are only meaningful
// against the *Lib that issued them, and the zero handle is never
// issued.
//
// Minor-status codes returned by this provider are mechanism-specific
// per the GSS-API contract; see the Minor* constants.
package krb5

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/keytab"

	"github.com/marmos91/gsscred/pkg/gssapi/native"
)

// LibName is the registry name of this provider.
const LibName = "krb5"

// Mechanism-specific minor-status codes.
const (
	// MinorNoCredCache: the credential cache could not be read.
	MinorNoCredCache uint32 = 1
	// MinorNoKeytab: the keytab could not be read.
	MinorNoKeytab uint32 = 2
	// MinorEmptyCredSource: the cache or keytab held no entries.
	MinorEmptyCredSource uint32 = 3
	// MinorPrincipalMismatch: the desired name does not match the
	// principal the credential source resolves to.
	MinorPrincipalMismatch uint32 = 4
	// MinorStaleHandle: the handle does not belong to this provider or
	// was already released.
	MinorStaleHandle uint32 = 5
)

func init() {
	native.Register(LibName, func() native.Lib { return New(Config{}) })
}

// Config selects the local credential material.
type Config struct {
	// CCachePath is the credential cache for initiator credentials.
	// Empty defaults to $KRB5CCNAME (FILE: prefix stripped), then
	// /tmp/krb5cc_<uid>.
	CCachePath string

	// KeytabPath is the keytab for acceptor credentials. Empty
	// defaults to $KRB5_KTNAME (FILE: prefix stripped), then
	// /etc/krb5.keytab.
	KeytabPath string
}

// credSource resolves local credential material into a table entry.
type credSource interface {
	resolve() (*credEntry, uint32, error)
}

// credEntry is the provider-side state behind one credential handle.
type credEntry struct {
	principal string
	expiry    time.Time // zero means the credential does not expire
	usage     int32
	mechs     []native.Oid
}

// lifetimeSeconds reports the remaining lifetime in the GSS 32-bit
// seconds vocabulary: Indefinite for non-expiring credentials, zero
// once expired.
func (e *credEntry) lifetimeSeconds(now time.Time) uint32 {
	if e.expiry.IsZero() {
		return native.Indefinite
	}
	rem := e.expiry.Sub(now)
	if rem <= 0 {
		return 0
	}
	secs := uint64(rem / time.Second)
	if secs >= uint64(native.Indefinite) {
		return native.Indefinite - 1
	}
	return uint32(secs)
}

type nameEntry struct {
	value    string
	nameType native.Oid
}

// Lib implements native.Lib on gokrb5.
type Lib struct {
	initiator credSource
	acceptor  credSource

	mu      sync.Mutex
	next    uintptr
	creds   map[native.CredHandle]*credEntry
	names   map[native.NameHandle]*nameEntry
	oidSets map[native.OidSetHandle][]native.Oid
}

// New builds a provider over the given credential material.
func New(cfg Config) *Lib {
	return &Lib{
		initiator: &ccacheSource{path: ccachePath(cfg.CCachePath)},
		acceptor:  &keytabSource{path: keytabPath(cfg.KeytabPath)},
		creds:     make(map[native.CredHandle]*credEntry),
		names:     make(map[native.NameHandle]*nameEntry),
		oidSets:   make(map[native.OidSetHandle][]native.Oid),
	}
}

func ccachePath(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv("KRB5CCNAME"); env != "" {
		return strings.TrimPrefix(env, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

func keytabPath(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv("KRB5_KTNAME"); env != "" {
		return strings.TrimPrefix(env, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// ccacheSource resolves initiator credentials from a credential cache.
// The cache is re-read on every acquisition so a refreshed kinit is
// picked up without restarting the process.
type ccacheSource struct {
	path string
}

func (s *ccacheSource) resolve() (*credEntry, uint32, error) {
	cc, err := credentials.LoadCCache(s.path)
	if err != nil {
		return nil, MinorNoCredCache, fmt.Errorf("load ccache %q: %w", s.path, err)
	}

	principal := cc.GetClientPrincipalName().PrincipalNameString() + "@" + cc.GetClientRealm()

	// The TGT entry carries the credential lifetime. Fall back to the
	// first entry when the cache holds only service tickets.
	var expiry time.Time
	for _, cred := range cc.Credentials {
		if len(cred.Server.PrincipalName.NameString) > 0 &&
			cred.Server.PrincipalName.NameString[0] == "krbtgt" {
			expiry = cred.EndTime
			break
		}
	}
	if expiry.IsZero() {
		if len(cc.Credentials) == 0 {
			return nil, MinorEmptyCredSource, fmt.Errorf("ccache %q holds no credentials", s.path)
		}
		expiry = cc.Credentials[0].EndTime
	}

	return &credEntry{principal: principal, expiry: expiry}, 0, nil
}

// keytabSource resolves acceptor credentials from a keytab. Keytab
// keys do not expire, so the entry reports an indefinite lifetime.
type keytabSource struct {
	path string
}

func (s *keytabSource) resolve() (*credEntry, uint32, error) {
	kt, err := keytab.Load(s.path)
	if err != nil {
		return nil, MinorNoKeytab, fmt.Errorf("load keytab %q: %w", s.path, err)
	}
	if len(kt.Entries) == 0 {
		return nil, MinorEmptyCredSource, fmt.Errorf("keytab %q holds no entries", s.path)
	}

	p := kt.Entries[0].Principal
	principal := strings.Join(p.Components, "/") + "@" + p.Realm
	return &credEntry{principal: principal}, 0, nil
}

// AcquireCred implements native.Lib.
//
// Initiate and Both resolve from the credential cache; Accept resolves
// from the keytab. The desired mechanism set, when given, must include
// the krb5 mechanism OID. A desired name, when given, must match the
// principal the source resolves to. timeReq below the source lifetime
// caps the reported lifetime.
func (l *Lib) AcquireCred(name native.NameHandle, timeReq uint32, desiredMechs native.OidSetHandle,
	usage int32, cred *native.CredHandle, actualMechs *native.OidSetHandle, timeRec *uint32) (native.Status, uint32) {

	if cred == nil {
		return native.CallInaccessibleWrite, 0
	}

	if desiredMechs != 0 {
		oids, ok := l.lookupOidSet(desiredMechs)
		if !ok {
			return native.CallInaccessibleRead, MinorStaleHandle
		}
		if !containsOid(oids, native.MechKrb5) {
			return native.BadMech, 0
		}
	}

	var desired string
	if name != 0 {
		ne, ok := l.lookupName(name)
		if !ok {
			return native.CallInaccessibleRead, MinorStaleHandle
		}
		desired = ne.value
	}

	var source credSource
	switch usage {
	case native.UsageInitiate, native.UsageBoth:
		source = l.initiator
	case native.UsageAccept:
		source = l.acceptor
	default:
		return native.Failure, 0
	}

	entry, minor, err := source.resolve()
	if err != nil {
		return native.NoCred, minor
	}
	if desired != "" && desired != entry.principal {
		return native.NoCred, MinorPrincipalMismatch
	}

	now := time.Now()
	if !entry.expiry.IsZero() && !entry.expiry.After(now) {
		return native.CredentialsExpired, 0
	}

	entry.usage = usage
	entry.mechs = []native.Oid{native.MechKrb5}

	if timeReq != native.Indefinite {
		requested := now.Add(time.Duration(timeReq) * time.Second)
		if entry.expiry.IsZero() || requested.Before(entry.expiry) {
			entry.expiry = requested
		}
	}

	l.mu.Lock()
	*cred = native.CredHandle(l.nextHandleLocked())
	l.creds[*cred] = entry
	if actualMechs != nil {
		*actualMechs = l.newOidSetLocked(entry.mechs)
	}
	l.mu.Unlock()

	if timeRec != nil {
		*timeRec = entry.lifetimeSeconds(now)
	}
	return native.Complete, 0
}

// InquireCred implements native.Lib. Requested slots are filled in
// program order: name, lifetime, usage, mechanisms. An invalid
// credential handle fails before any slot is touched.
func (l *Lib) InquireCred(cred native.CredHandle, name *native.NameHandle, lifetime *uint32,
	usage *int32, mechs *native.OidSetHandle) (native.Status, uint32) {

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.creds[cred]
	if !ok {
		return native.NoCred, MinorStaleHandle
	}

	if name != nil {
		h := native.NameHandle(l.nextHandleLocked())
		l.names[h] = &nameEntry{value: e.principal, nameType: native.NTKrb5Principal}
		*name = h
	}
	if lifetime != nil {
		*lifetime = e.lifetimeSeconds(time.Now())
	}
	if usage != nil {
		*usage = e.usage
	}
	if mechs != nil {
		*mechs = l.newOidSetLocked(e.mechs)
	}
	return native.Complete, 0
}

// ReleaseCred implements native.Lib.
func (l *Lib) ReleaseCred(cred *native.CredHandle) (native.Status, uint32) {
	if cred == nil {
		return native.CallInaccessibleWrite, 0
	}
	h := *cred
	*cred = 0
	if h == 0 {
		return native.Complete, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.creds[h]; !ok {
		return native.Failure, MinorStaleHandle
	}
	delete(l.creds, h)
	return native.Complete, 0
}

// ImportName implements native.Lib. A nil nameType defaults to the
// krb5 principal name type.
func (l *Lib) ImportName(name string, nameType native.Oid, out *native.NameHandle) (native.Status, uint32) {
	if out == nil {
		return native.CallInaccessibleWrite, 0
	}
	if name == "" {
		return native.BadName, 0
	}
	if nameType == nil {
		nameType = native.NTKrb5Principal
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	h := native.NameHandle(l.nextHandleLocked())
	l.names[h] = &nameEntry{value: name, nameType: nameType}
	*out = h
	return native.Complete, 0
}

// DisplayName implements native.Lib.
func (l *Lib) DisplayName(name native.NameHandle, out *string, outType *native.Oid) (native.Status, uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ne, ok := l.names[name]
	if !ok {
		return native.BadName, MinorStaleHandle
	}
	if out != nil {
		*out = ne.value
	}
	if outType != nil {
		*outType = append(native.Oid(nil), ne.nameType...)
	}
	return native.Complete, 0
}

// ReleaseName implements native.Lib.
func (l *Lib) ReleaseName(name *native.NameHandle) (native.Status, uint32) {
	if name == nil {
		return native.CallInaccessibleWrite, 0
	}
	h := *name
	*name = 0
	if h == 0 {
		return native.Complete, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.names[h]; !ok {
		return native.Failure, MinorStaleHandle
	}
	delete(l.names, h)
	return native.Complete, 0
}

// CreateEmptyOidSet implements native.Lib.
func (l *Lib) CreateEmptyOidSet(out *native.OidSetHandle) (native.Status, uint32) {
	if out == nil {
		return native.CallInaccessibleWrite, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	h := native.OidSetHandle(l.nextHandleLocked())
	l.oidSets[h] = nil
	*out = h
	return native.Complete, 0
}

// AddOidSetMember implements native.Lib.
func (l *Lib) AddOidSetMember(oid native.Oid, set *native.OidSetHandle) (native.Status, uint32) {
	if set == nil {
		return native.CallInaccessibleWrite, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	oids, ok := l.oidSets[*set]
	if !ok {
		return native.CallInaccessibleRead, MinorStaleHandle
	}
	l.oidSets[*set] = append(oids, append(native.Oid(nil), oid...))
	return native.Complete, 0
}

// OidSetElements implements native.Lib. The zero handle is the null
// set and reports no members.
func (l *Lib) OidSetElements(set native.OidSetHandle, out *[]native.Oid) (native.Status, uint32) {
	if out == nil {
		return native.CallInaccessibleWrite, 0
	}
	if set == 0 {
		*out = nil
		return native.Complete, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	oids, ok := l.oidSets[set]
	if !ok {
		return native.CallInaccessibleRead, MinorStaleHandle
	}
	cp := make([]native.Oid, len(oids))
	for i, o := range oids {
		cp[i] = append(native.Oid(nil), o...)
	}
	*out = cp
	return native.Complete, 0
}

// ReleaseOidSet implements native.Lib.
func (l *Lib) ReleaseOidSet(set *native.OidSetHandle) (native.Status, uint32) {
	if set == nil {
		return native.CallInaccessibleWrite, 0
	}
	h := *set
	*set = 0
	if h == 0 {
		return native.Complete, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.oidSets[h]; !ok {
		return native.Failure, MinorStaleHandle
	}
	delete(l.oidSets, h)
	return native.Complete, 0
}

// nextHandleLocked issues a fresh handle value. Zero is never issued;
// the caller must hold l.mu.
func (l *Lib) nextHandleLocked() uintptr {
	l.next++
	return l.next
}

func (l *Lib) newOidSetLocked(oids []native.Oid) native.OidSetHandle {
	h := native.OidSetHandle(l.nextHandleLocked())
	cp := make([]native.Oid, len(oids))
	for i, o := range oids {
		cp[i] = append(native.Oid(nil), o...)
	}
	l.oidSets[h] = cp
	return h
}

func (l *Lib) lookupName(h native.NameHandle) (*nameEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ne, ok := l.names[h]
	return ne, ok
}

func (l *Lib) lookupOidSet(h native.OidSetHandle) ([]native.Oid, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	oids, ok := l.oidSets[h]
	return oids, ok
}

func containsOid(oids []native.Oid, want native.Oid) bool {
	for _, o := range oids {
		if o.Equal(want) {
			return true
		}
	}
	return false
}
