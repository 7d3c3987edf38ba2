package native

import "strings"

// Status is the GSS-API major-status word.
//
// Bit layout per RFC 2744 Section 3.9.1:
//
//	bits 24..31  calling errors
//	bits 16..23  routine errors
//	bits  0..15  supplementary info bits
//
// A call succeeded when no calling or routine error bits are set;
// supplementary bits (for example ContinueNeeded) may accompany
// success. The distinguished value Complete (all bits clear) is the
// unqualified success status.
type Status uint32

// Complete is GSS_S_COMPLETE: unqualified success.
const Complete Status = 0

const (
	callingShift = 24
	routineShift = 16

	callingMask       Status = 0xff000000
	routineMask       Status = 0x00ff0000
	supplementaryMask Status = 0x0000ffff
)

// Calling errors (GSS_S_CALL_*).
const (
	CallInaccessibleRead  Status = 1 << callingShift
	CallInaccessibleWrite Status = 2 << callingShift
	CallBadStructure      Status = 3 << callingShift
)

// Routine errors (GSS_S_*).
const (
	BadMech             Status = 1 << routineShift
	BadName             Status = 2 << routineShift
	BadNameType         Status = 3 << routineShift
	BadBindings         Status = 4 << routineShift
	BadStatus           Status = 5 << routineShift
	BadMIC              Status = 6 << routineShift
	NoCred              Status = 7 << routineShift
	NoContext           Status = 8 << routineShift
	DefectiveToken      Status = 9 << routineShift
	DefectiveCredential Status = 10 << routineShift
	CredentialsExpired  Status = 11 << routineShift
	ContextExpired      Status = 12 << routineShift
	Failure             Status = 13 << routineShift
	BadQOP              Status = 14 << routineShift
	Unauthorized        Status = 15 << routineShift
	Unavailable         Status = 16 << routineShift
	DuplicateElement    Status = 17 << routineShift
	NameNotMN           Status = 18 << routineShift
)

// Supplementary info bits (GSS_S_*).
const (
	ContinueNeeded Status = 1 << 0
	DuplicateToken Status = 1 << 1
	OldToken       Status = 1 << 2
	UnseqToken     Status = 1 << 3
	GapToken       Status = 1 << 4
)

// IsError reports whether the status carries a calling or routine
// error. This is the GSS_ERROR() predicate: supplementary bits alone
// do not make a status an error.
func (s Status) IsError() bool {
	return s&(callingMask|routineMask) != 0
}

// CallingError returns the calling-error portion of the status.
func (s Status) CallingError() Status { return s & callingMask }

// RoutineError returns the routine-error portion of the status.
func (s Status) RoutineError() Status { return s & routineMask }

// Supplementary returns the supplementary-info bits of the status.
func (s Status) Supplementary() Status { return s & supplementaryMask }

var callingNames = map[Status]string{
	CallInaccessibleRead:  "GSS_S_CALL_INACCESSIBLE_READ",
	CallInaccessibleWrite: "GSS_S_CALL_INACCESSIBLE_WRITE",
	CallBadStructure:      "GSS_S_CALL_BAD_STRUCTURE",
}

var routineNames = map[Status]string{
	BadMech:             "GSS_S_BAD_MECH",
	BadName:             "GSS_S_BAD_NAME",
	BadNameType:         "GSS_S_BAD_NAMETYPE",
	BadBindings:         "GSS_S_BAD_BINDINGS",
	BadStatus:           "GSS_S_BAD_STATUS",
	BadMIC:              "GSS_S_BAD_MIC",
	NoCred:              "GSS_S_NO_CRED",
	NoContext:           "GSS_S_NO_CONTEXT",
	DefectiveToken:      "GSS_S_DEFECTIVE_TOKEN",
	DefectiveCredential: "GSS_S_DEFECTIVE_CREDENTIAL",
	CredentialsExpired:  "GSS_S_CREDENTIALS_EXPIRED",
	ContextExpired:      "GSS_S_CONTEXT_EXPIRED",
	Failure:             "GSS_S_FAILURE",
	BadQOP:              "GSS_S_BAD_QOP",
	Unauthorized:        "GSS_S_UNAUTHORIZED",
	Unavailable:         "GSS_S_UNAVAILABLE",
	DuplicateElement:    "GSS_S_DUPLICATE_ELEMENT",
	NameNotMN:           "GSS_S_NAME_NOT_MN",
}

var supplementaryNames = []struct {
	bit  Status
	name string
}{
	{ContinueNeeded, "GSS_S_CONTINUE_NEEDED"},
	{DuplicateToken, "GSS_S_DUPLICATE_TOKEN"},
	{OldToken, "GSS_S_OLD_TOKEN"},
	{UnseqToken, "GSS_S_UNSEQ_TOKEN"},
	{GapToken, "GSS_S_GAP_TOKEN"},
}

// Name returns the symbolic GSS_S_* spelling of the status. Combined
// statuses join their components with "|"; unknown bits render as
// "GSS_S_UNKNOWN".
func (s Status) Name() string {
	if s == Complete {
		return "GSS_S_COMPLETE"
	}

	var parts []string
	appendKnown := func(v Status, names map[Status]string) {
		if v == 0 {
			return
		}
		if n, ok := names[v]; ok {
			parts = append(parts, n)
		} else {
			parts = append(parts, "GSS_S_UNKNOWN")
		}
	}
	appendKnown(s.CallingError(), callingNames)
	appendKnown(s.RoutineError(), routineNames)
	for _, sup := range supplementaryNames {
		if s&sup.bit != 0 {
			parts = append(parts, sup.name)
		}
	}
	if rest := s.Supplementary() &^ (ContinueNeeded | DuplicateToken | OldToken | UnseqToken | GapToken); rest != 0 {
		parts = append(parts, "GSS_S_UNKNOWN")
	}
	return strings.Join(parts, "|")
}

// String implements fmt.Stringer.
func (s Status) String() string { return s.Name() }
