// Package bls is the opaque BLS12-381 signer/verifier collaborator: a
// minimal signing interface, backed by github.com/supranational/blst,
// gated by config/params.SpecOptions.BLSVerify so proof-of-possession
// checking can be switched off at runtime for tests, not behind a build
// tag.
package bls

import (
	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/config/params"
)

// SecretKey signs byte messages and exposes its paired PublicKey.
type SecretKey interface {
	PublicKey() PublicKey
	Sign(msg []byte) Signature
	Marshal() []byte
}

// PublicKey is a compressed G1 point, 48 bytes when marshaled.
type PublicKey interface {
	Marshal() []byte
	Copy() PublicKey
}

// Signature is a compressed G2 point, 96 bytes when marshaled.
type Signature interface {
	Marshal() []byte
	// Verify reports whether the signature is valid over msg under pub.
	// When params.ActiveSpecOptions().BLSVerify is false, this always
	// returns true.
	Verify(pub PublicKey, msg []byte) bool
}

// ErrInvalidLength is returned by the *FromBytes constructors when the
// input does not match the expected compressed-point width.
var ErrInvalidLength = errors.New("bls: input has wrong byte length")

// skipVerification reports whether signature verification should be
// bypassed for the current test mode.
func skipVerification() bool {
	return !params.ActiveSpecOptions().BLSVerify
}

// VerifyAggregate checks an aggregate signature where every signer in
// pubs signed the same msg, the common attestation-signature shape.
func VerifyAggregate(pubs []PublicKey, msg []byte, sig Signature) bool {
	if skipVerification() {
		return true
	}
	return fastAggregateVerify(pubs, msg, sig)
}

// VerifyMultiple checks an aggregate signature where pubs[i] signed
// msgs[i] over distinct messages, used for indexed-attestation
// double/surround-vote evidence.
func VerifyMultiple(pubs []PublicKey, msgs [][]byte, sig Signature) bool {
	if skipVerification() {
		return true
	}
	return aggregateVerify(pubs, msgs, sig)
}

// AggregatePublicKeys returns a single public key representing the sum
// of pubs, used to check a block's deposit-signature proof-of-possession
// batch or equally-weighted attester sets.
func AggregatePublicKeys(pubs []PublicKey) (PublicKey, error) {
	if len(pubs) == 0 {
		return nil, errors.New("bls: cannot aggregate zero public keys")
	}
	return aggregatePublicKeys(pubs)
}

// AggregateSignatures sums sigs into a single aggregate signature.
func AggregateSignatures(sigs []Signature) (Signature, error) {
	if len(sigs) == 0 {
		return nil, errors.New("bls: cannot aggregate zero signatures")
	}
	return aggregateSignatures(sigs)
}
