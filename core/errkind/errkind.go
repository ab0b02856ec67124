// Package errkind defines the sentinel error taxonomy shared by every
// layer of the core: the codec, the committee/signing helpers, the
// state transition and the pipeline all return (or wrap, via
// github.com/pkg/errors) one of these kinds so callers can dispatch on
// errors.Is rather than string matching.
package errkind

import "github.com/pkg/errors"

var (
	// ErrBadEncoding signals malformed SSZ bytes: bad offsets,
	// declared length over a list's N_max, vector length mismatch, or an
	// undecodable union tag.
	ErrBadEncoding = errors.New("bad encoding")

	// ErrInvalidBlock signals a state-transition precondition violated by
	// an incoming block (header, randao, eth1 vote, or any operation).
	ErrInvalidBlock = errors.New("invalid block")

	// ErrInvalidAttestation signals a bad committee reference, bitfield,
	// or signature on an attestation.
	ErrInvalidAttestation = errors.New("invalid attestation")

	// ErrUnknownParent signals a block whose parent root is not yet in
	// chain storage. Recoverable by syncing.
	ErrUnknownParent = errors.New("unknown parent")

	// ErrFutureSlot signals a block whose slot is ahead of the wall
	// clock. Recoverable by waiting.
	ErrFutureSlot = errors.New("future slot")

	// ErrInvariantViolation signals an internal bug: an assumption the
	// core relies on no longer holds. Fatal; the pipeline terminates.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrStorageFailure signals the backing key-value store returned an
	// error or inconsistent read. Fatal; the pipeline terminates.
	ErrStorageFailure = errors.New("storage failure")
)
