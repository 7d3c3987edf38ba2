package gssapi

import "github.com/marmos91/gsscred/pkg/gssapi/native"

// CredUsage says whether a credential may initiate security contexts,
// accept them, or both.
type CredUsage int

const (
	// UsageBoth allows initiating and accepting contexts.
	UsageBoth CredUsage = iota

	// UsageInitiate allows initiating contexts only.
	UsageInitiate

	// UsageAccept allows accepting contexts only.
	UsageAccept
)

// credUsageFromCode decodes a provider usage code. Exactly three codes
// are recognized; anything else is a *UsageError, never a silent
// default.
func credUsageFromCode(code int32) (CredUsage, error) {
	switch code {
	case native.UsageBoth:
		return UsageBoth, nil
	case native.UsageInitiate:
		return UsageInitiate, nil
	case native.UsageAccept:
		return UsageAccept, nil
	default:
		return 0, &UsageError{Code: code}
	}
}

// code encodes the usage for the provider. Total over the three
// defined values; any other CredUsage is a programmer error.
func (u CredUsage) code() int32 {
	switch u {
	case UsageBoth:
		return native.UsageBoth
	case UsageInitiate:
		return native.UsageInitiate
	case UsageAccept:
		return native.UsageAccept
	default:
		panic("gssapi: invalid CredUsage value")
	}
}

func (u CredUsage) String() string {
	switch u {
	case UsageBoth:
		return "Both"
	case UsageInitiate:
		return "Initiate"
	case UsageAccept:
		return "Accept"
	default:
		return "Invalid"
	}
}
