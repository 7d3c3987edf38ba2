// Package gssapi wraps a GSS-API provider's credential subsystem in
// ownership-tracked types.
//
// The underlying provider (see pkg/gssapi/native) issues opaque handles
// through a C-style calling convention: the caller passes pointers to
// storage the provider fills in, and every successful acquisition
// obligates the caller to release the handle later through a matching
// teardown call. This package makes that obligation impossible to
// violate: every handle acquired is released exactly once, on every
// exit path, including paths where only some of several requested
// outputs were produced before a failure occurred partway through a
// multi-field inquiry.
//
// A Credential is obtained with Acquire and introspected with Info or
// the narrower Name, Lifetime, Usage and Mechanisms projections. Each
// projection either returns a fully owned result or an error with zero
// outstanding resource obligations. Credentials, names and mechanism
// sets are released explicitly with Release (idempotent, safe on nil);
// a finalizer backstop releases leaked handles and logs a warning.
//
// A Credential may be shared across goroutines for the read-only
// informational queries. Release must not race with an in-flight call
// against the same value: teardown is a single-owner operation.
package gssapi
