package krb5

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/gsscred/pkg/gssapi"
	"github.com/marmos91/gsscred/pkg/gssapi/native"
)

// fakeSource resolves scripted credential material without touching
// ccache or keytab files.
type fakeSource struct {
	principal string
	expiry    time.Time
	minor     uint32
	err       error
}

func (s *fakeSource) resolve() (*credEntry, uint32, error) {
	if s.err != nil {
		return nil, s.minor, s.err
	}
	return &credEntry{principal: s.principal, expiry: s.expiry}, 0, nil
}

func newTestLib(initiator, acceptor credSource) *Lib {
	l := New(Config{})
	if initiator != nil {
		l.initiator = initiator
	}
	if acceptor != nil {
		l.acceptor = acceptor
	}
	return l
}

func acquire(t *testing.T, l *Lib, usage int32) native.CredHandle {
	t.Helper()
	var h native.CredHandle
	major, minor := l.AcquireCred(0, native.Indefinite, 0, usage, &h, nil, nil)
	require.Equal(t, native.Complete, major, "minor %d", minor)
	require.NotEqual(t, native.CredHandle(0), h)
	return h
}

func TestAcquireInitiate(t *testing.T) {
	expiry := time.Now().Add(8 * time.Hour)
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM", expiry: expiry}, nil)

	h := acquire(t, l, native.UsageInitiate)

	var (
		name     native.NameHandle
		lifetime uint32
		usage    int32
		mechs    native.OidSetHandle
	)
	major, _ := l.InquireCred(h, &name, &lifetime, &usage, &mechs)
	require.Equal(t, native.Complete, major)

	var display string
	major, _ = l.DisplayName(name, &display, nil)
	require.Equal(t, native.Complete, major)
	assert.Equal(t, "alice@EXAMPLE.COM", display)

	assert.Equal(t, native.UsageInitiate, usage)
	assert.InDelta(t, 8*3600, lifetime, 5)

	var oids []native.Oid
	major, _ = l.OidSetElements(mechs, &oids)
	require.Equal(t, native.Complete, major)
	require.Len(t, oids, 1)
	assert.True(t, oids[0].Equal(native.MechKrb5))
}

func TestAcquireAcceptIsIndefinite(t *testing.T) {
	l := newTestLib(nil, &fakeSource{principal: "nfs/files.example.com@EXAMPLE.COM"})

	h := acquire(t, l, native.UsageAccept)

	var lifetime uint32
	major, _ := l.InquireCred(h, nil, &lifetime, nil, nil)
	require.Equal(t, native.Complete, major)
	assert.Equal(t, native.Indefinite, lifetime)
}

func TestAcquireDesiredMechs(t *testing.T) {
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM", expiry: time.Now().Add(time.Hour)}, nil)

	var set native.OidSetHandle
	major, _ := l.CreateEmptyOidSet(&set)
	require.Equal(t, native.Complete, major)
	major, _ = l.AddOidSetMember(native.NTHostbasedService, &set) // not a krb5 mech
	require.Equal(t, native.Complete, major)

	var h native.CredHandle
	major, _ = l.AcquireCred(0, native.Indefinite, set, native.UsageInitiate, &h, nil, nil)
	assert.Equal(t, native.BadMech, major)
	assert.Equal(t, native.CredHandle(0), h, "no credential may be produced on failure")

	major, _ = l.AddOidSetMember(native.MechKrb5, &set)
	require.Equal(t, native.Complete, major)
	major, minor := l.AcquireCred(0, native.Indefinite, set, native.UsageInitiate, &h, nil, nil)
	assert.Equal(t, native.Complete, major, "minor %d", minor)
}

func TestAcquireDesiredName(t *testing.T) {
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM", expiry: time.Now().Add(time.Hour)}, nil)

	var bob native.NameHandle
	major, _ := l.ImportName("bob@EXAMPLE.COM", nil, &bob)
	require.Equal(t, native.Complete, major)

	var h native.CredHandle
	major, minor := l.AcquireCred(bob, native.Indefinite, 0, native.UsageInitiate, &h, nil, nil)
	assert.Equal(t, native.NoCred, major)
	assert.Equal(t, MinorPrincipalMismatch, minor)

	var alice native.NameHandle
	major, _ = l.ImportName("alice@EXAMPLE.COM", nil, &alice)
	require.Equal(t, native.Complete, major)

	major, minor = l.AcquireCred(alice, native.Indefinite, 0, native.UsageInitiate, &h, nil, nil)
	assert.Equal(t, native.Complete, major, "minor %d", minor)
}

func TestAcquireExpiredCredentials(t *testing.T) {
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM", expiry: time.Now().Add(-time.Minute)}, nil)

	var h native.CredHandle
	major, _ := l.AcquireCred(0, native.Indefinite, 0, native.UsageInitiate, &h, nil, nil)
	assert.Equal(t, native.CredentialsExpired, major)
}

func TestAcquireSourceFailure(t *testing.T) {
	l := newTestLib(&fakeSource{minor: MinorNoCredCache, err: errors.New("no ccache")}, nil)

	var h native.CredHandle
	major, minor := l.AcquireCred(0, native.Indefinite, 0, native.UsageInitiate, &h, nil, nil)
	assert.Equal(t, native.NoCred, major)
	assert.Equal(t, MinorNoCredCache, minor)
}

func TestAcquireUnknownUsageCode(t *testing.T) {
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM"}, nil)

	var h native.CredHandle
	major, _ := l.AcquireCred(0, native.Indefinite, 0, 7, &h, nil, nil)
	assert.Equal(t, native.Failure, major)
}

func TestAcquireTimeReqCapsLifetime(t *testing.T) {
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM", expiry: time.Now().Add(10 * time.Hour)}, nil)

	var h native.CredHandle
	var rec uint32
	major, _ := l.AcquireCred(0, 3600, 0, native.UsageInitiate, &h, nil, &rec)
	require.Equal(t, native.Complete, major)
	assert.LessOrEqual(t, rec, uint32(3600))
	assert.Greater(t, rec, uint32(3590))
}

func TestInquireStaleHandle(t *testing.T) {
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM", expiry: time.Now().Add(time.Hour)}, nil)

	var name native.NameHandle
	var lifetime uint32
	major, minor := l.InquireCred(native.CredHandle(12345), &name, &lifetime, nil, nil)
	assert.Equal(t, native.NoCred, major)
	assert.Equal(t, MinorStaleHandle, minor)
	assert.Equal(t, native.NameHandle(0), name, "no slot may be touched on failure")
	assert.Zero(t, lifetime)
}

func TestInquireFillsOnlyRequestedSlots(t *testing.T) {
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM", expiry: time.Now().Add(time.Hour)}, nil)
	h := acquire(t, l, native.UsageInitiate)

	var lifetime uint32
	var usage int32
	major, _ := l.InquireCred(h, nil, &lifetime, &usage, nil)
	require.Equal(t, native.Complete, major)

	assert.Empty(t, l.names, "an unrequested name slot must not allocate a handle")
	assert.Empty(t, l.oidSets, "an unrequested mech slot must not allocate a handle")
}

func TestReleaseCredExactlyOnce(t *testing.T) {
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM", expiry: time.Now().Add(time.Hour)}, nil)
	h := acquire(t, l, native.UsageInitiate)

	stale := h
	major, _ := l.ReleaseCred(&h)
	assert.Equal(t, native.Complete, major)
	assert.Equal(t, native.CredHandle(0), h, "release must zero the handle")

	major, minor := l.ReleaseCred(&stale)
	assert.Equal(t, native.Failure, major)
	assert.Equal(t, MinorStaleHandle, minor)

	var zero native.CredHandle
	major, _ = l.ReleaseCred(&zero)
	assert.Equal(t, native.Complete, major, "releasing the null handle is a no-op")
}

func TestImportDisplayName(t *testing.T) {
	l := New(Config{})

	var h native.NameHandle
	major, _ := l.ImportName("", native.NTKrb5Principal, &h)
	assert.Equal(t, native.BadName, major)

	major, _ = l.ImportName("alice@EXAMPLE.COM", nil, &h)
	require.Equal(t, native.Complete, major)

	var display string
	var nt native.Oid
	major, _ = l.DisplayName(h, &display, &nt)
	require.Equal(t, native.Complete, major)
	assert.Equal(t, "alice@EXAMPLE.COM", display)
	assert.True(t, nt.Equal(native.NTKrb5Principal), "nil name type defaults to krb5 principal")

	major, _ = l.ReleaseName(&h)
	require.Equal(t, native.Complete, major)
	major, _ = l.DisplayName(native.NameHandle(1), &display, nil)
	assert.Equal(t, native.BadName, major)
}

func TestOidSetLifecycle(t *testing.T) {
	l := New(Config{})

	var set native.OidSetHandle
	major, _ := l.CreateEmptyOidSet(&set)
	require.Equal(t, native.Complete, major)

	var oids []native.Oid
	major, _ = l.OidSetElements(set, &oids)
	require.Equal(t, native.Complete, major)
	assert.Empty(t, oids)

	major, _ = l.AddOidSetMember(native.MechKrb5, &set)
	require.Equal(t, native.Complete, major)
	major, _ = l.OidSetElements(set, &oids)
	require.Equal(t, native.Complete, major)
	require.Len(t, oids, 1)

	stale := set
	major, _ = l.ReleaseOidSet(&set)
	require.Equal(t, native.Complete, major)
	major, minor := l.OidSetElements(stale, &oids)
	assert.Equal(t, native.CallInaccessibleRead, major)
	assert.Equal(t, MinorStaleHandle, minor)

	// The zero handle is the null set: no members, not an error.
	major, _ = l.OidSetElements(0, &oids)
	assert.Equal(t, native.Complete, major)
	assert.Empty(t, oids)
}

// TestDefaultMechSetReportsKrb5 pins the provider's behavior when a
// credential is acquired with the default mechanism set: the inquire
// output is the concrete set the provider resolved, which for this
// backend is exactly the krb5 mechanism.
func TestDefaultMechSetReportsKrb5(t *testing.T) {
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM", expiry: time.Now().Add(time.Hour)}, nil)
	h := acquire(t, l, native.UsageInitiate)

	var mechs native.OidSetHandle
	major, _ := l.InquireCred(h, nil, nil, nil, &mechs)
	require.Equal(t, native.Complete, major)

	var oids []native.Oid
	major, _ = l.OidSetElements(mechs, &oids)
	require.Equal(t, native.Complete, major)
	require.Len(t, oids, 1)
	assert.True(t, oids[0].Equal(native.MechKrb5))
}

func TestRegisteredProvider(t *testing.T) {
	lib, err := native.Open(LibName)
	require.NoError(t, err)
	assert.IsType(t, &Lib{}, lib)
}

func TestSourcePathDefaults(t *testing.T) {
	t.Setenv("KRB5CCNAME", "FILE:/tmp/krb5cc_test")
	assert.Equal(t, "/tmp/krb5cc_test", ccachePath(""))
	assert.Equal(t, "/explicit", ccachePath("/explicit"))

	t.Setenv("KRB5_KTNAME", "FILE:/etc/alt.keytab")
	assert.Equal(t, "/etc/alt.keytab", keytabPath(""))
	assert.Equal(t, "/explicit.keytab", keytabPath("/explicit.keytab"))
}

// TestEndToEndInfo drives the full wrapper stack over this provider.
func TestEndToEndInfo(t *testing.T) {
	l := newTestLib(&fakeSource{principal: "alice@EXAMPLE.COM", expiry: time.Now().Add(2 * time.Hour)}, nil)

	cred, err := gssapi.Acquire(gssapi.AcquireOptions{
		Lib:      l,
		Usage:    gssapi.UsageInitiate,
		Lifetime: time.Hour,
	})
	require.NoError(t, err)
	defer cred.Release()

	info, err := cred.Info()
	require.NoError(t, err)
	defer info.Release()

	display, err := info.Name.Display()
	require.NoError(t, err)
	assert.Equal(t, "alice@EXAMPLE.COM", display)
	assert.Equal(t, gssapi.UsageInitiate, info.Usage)
	assert.InDelta(t, time.Hour.Seconds(), info.Lifetime.Seconds(), 5,
		"the requested lifetime caps the ticket lifetime")

	hasKrb5, err := info.Mechanisms.Contains(native.MechKrb5)
	require.NoError(t, err)
	assert.True(t, hasKrb5)

	info.Release()
	cred.Release()
	assert.Empty(t, l.creds, "all provider-side state must be torn down")
	assert.Empty(t, l.oidSets)
}
