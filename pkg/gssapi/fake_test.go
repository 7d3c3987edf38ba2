package gssapi

import (
	"sync"

	"github.com/marmos91/gsscred/pkg/gssapi/native"
)

// fakeLib is a scriptable native.Lib for testing the wrapper's
// ownership discipline without a real provider. Release calls are
// counted per handle so tests can assert exactly-once teardown.
type fakeLib struct {
	mu   sync.Mutex
	next uintptr

	// scripted results
	acquireMajor   native.Status
	acquireMinor   uint32
	inquireMajor   native.Status
	inquireMinor   uint32
	addMemberMajor native.Status

	// which inquire slots the fake populates before reporting its
	// status; emulates the "filled in program order, failed partway"
	// provider behavior.
	fillName     bool
	fillLifetime bool
	fillUsage    bool
	fillMechs    bool

	usageCode    int32
	lifetimeSecs uint32

	acquireCalls []acquireCall
	inquireCalls []inquireCall

	names   map[native.NameHandle]string
	oidSets map[native.OidSetHandle][]native.Oid

	nameReleases   map[native.NameHandle]int
	oidSetReleases map[native.OidSetHandle]int
	credReleases   map[native.CredHandle]int

	namesIssued   []native.NameHandle
	oidSetsIssued []native.OidSetHandle
}

type acquireCall struct {
	name    native.NameHandle
	timeReq uint32
	mechs   native.OidSetHandle
	usage   int32
}

type inquireCall struct {
	cred         native.CredHandle
	wantName     bool
	wantLifetime bool
	wantUsage    bool
	wantMechs    bool
}

func newFakeLib() *fakeLib {
	return &fakeLib{
		fillName:     true,
		fillLifetime: true,
		fillUsage:    true,
		fillMechs:    true,
		usageCode:    native.UsageInitiate,
		lifetimeSecs: 3600,

		names:          make(map[native.NameHandle]string),
		oidSets:        make(map[native.OidSetHandle][]native.Oid),
		nameReleases:   make(map[native.NameHandle]int),
		oidSetReleases: make(map[native.OidSetHandle]int),
		credReleases:   make(map[native.CredHandle]int),
	}
}

func (f *fakeLib) nextHandle() uintptr {
	f.next++
	return f.next
}

func (f *fakeLib) issueName(value string) native.NameHandle {
	h := native.NameHandle(f.nextHandle())
	f.names[h] = value
	f.namesIssued = append(f.namesIssued, h)
	return h
}

func (f *fakeLib) issueOidSet(oids []native.Oid) native.OidSetHandle {
	h := native.OidSetHandle(f.nextHandle())
	f.oidSets[h] = oids
	f.oidSetsIssued = append(f.oidSetsIssued, h)
	return h
}

func (f *fakeLib) AcquireCred(name native.NameHandle, timeReq uint32, desiredMechs native.OidSetHandle,
	usage int32, cred *native.CredHandle, actualMechs *native.OidSetHandle, timeRec *uint32) (native.Status, uint32) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.acquireCalls = append(f.acquireCalls, acquireCall{
		name:    name,
		timeReq: timeReq,
		mechs:   desiredMechs,
		usage:   usage,
	})

	if f.acquireMajor != native.Complete {
		return f.acquireMajor, f.acquireMinor
	}
	*cred = native.CredHandle(f.nextHandle())
	if actualMechs != nil {
		*actualMechs = f.issueOidSet([]native.Oid{native.MechKrb5})
	}
	if timeRec != nil {
		*timeRec = f.lifetimeSecs
	}
	return native.Complete, 0
}

func (f *fakeLib) InquireCred(cred native.CredHandle, name *native.NameHandle, lifetime *uint32,
	usage *int32, mechs *native.OidSetHandle) (native.Status, uint32) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.inquireCalls = append(f.inquireCalls, inquireCall{
		cred:         cred,
		wantName:     name != nil,
		wantLifetime: lifetime != nil,
		wantUsage:    usage != nil,
		wantMechs:    mechs != nil,
	})

	if name != nil && f.fillName {
		*name = f.issueName("alice@EXAMPLE.COM")
	}
	if lifetime != nil && f.fillLifetime {
		*lifetime = f.lifetimeSecs
	}
	if usage != nil && f.fillUsage {
		*usage = f.usageCode
	}
	if mechs != nil && f.fillMechs {
		*mechs = f.issueOidSet([]native.Oid{native.MechKrb5})
	}
	return f.inquireMajor, f.inquireMinor
}

func (f *fakeLib) ReleaseCred(cred *native.CredHandle) (native.Status, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := *cred
	*cred = 0
	if h == 0 {
		return native.Complete, 0
	}
	f.credReleases[h]++
	return native.Complete, 0
}

func (f *fakeLib) ImportName(name string, nameType native.Oid, out *native.NameHandle) (native.Status, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "" {
		return native.BadName, 0
	}
	*out = f.issueName(name)
	return native.Complete, 0
}

func (f *fakeLib) DisplayName(name native.NameHandle, out *string, outType *native.Oid) (native.Status, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.names[name]
	if !ok {
		return native.BadName, 0
	}
	if out != nil {
		*out = v
	}
	if outType != nil {
		*outType = native.NTKrb5Principal
	}
	return native.Complete, 0
}

func (f *fakeLib) ReleaseName(name *native.NameHandle) (native.Status, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := *name
	*name = 0
	if h == 0 {
		return native.Complete, 0
	}
	f.nameReleases[h]++
	delete(f.names, h)
	return native.Complete, 0
}

func (f *fakeLib) CreateEmptyOidSet(out *native.OidSetHandle) (native.Status, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*out = f.issueOidSet(nil)
	return native.Complete, 0
}

func (f *fakeLib) AddOidSetMember(oid native.Oid, set *native.OidSetHandle) (native.Status, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addMemberMajor != native.Complete {
		return f.addMemberMajor, 0
	}
	oids, ok := f.oidSets[*set]
	if !ok {
		return native.CallInaccessibleRead, 0
	}
	f.oidSets[*set] = append(oids, oid)
	return native.Complete, 0
}

func (f *fakeLib) OidSetElements(set native.OidSetHandle, out *[]native.Oid) (native.Status, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set == 0 {
		*out = nil
		return native.Complete, 0
	}
	oids, ok := f.oidSets[set]
	if !ok {
		return native.CallInaccessibleRead, 0
	}
	*out = oids
	return native.Complete, 0
}

func (f *fakeLib) ReleaseOidSet(set *native.OidSetHandle) (native.Status, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := *set
	*set = 0
	if h == 0 {
		return native.Complete, 0
	}
	f.oidSetReleases[h]++
	delete(f.oidSets, h)
	return native.Complete, 0
}

// helpers for assertions

func (f *fakeLib) lastAcquire() acquireCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquireCalls[len(f.acquireCalls)-1]
}

func (f *fakeLib) lastInquire() inquireCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inquireCalls[len(f.inquireCalls)-1]
}

func (f *fakeLib) totalNameReleases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.nameReleases {
		total += n
	}
	return total
}

func (f *fakeLib) totalOidSetReleases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.oidSetReleases {
		total += n
	}
	return total
}
