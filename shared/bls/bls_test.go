package bls

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigmaprotocol/beacon-core/config/params"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	params.OverrideSpecOptions(params.DefaultSpecOptions())
	defer params.OverrideSpecOptions(params.TestSpecOptions())

	sk, err := RandKey()
	require.NoError(t, err)
	msg := []byte("attestation payload")
	sig := sk.Sign(msg)
	require.True(t, sig.Verify(sk.PublicKey(), msg))
}

func TestVerifyFailsOnWrongMessage(t *testing.T) {
	params.OverrideSpecOptions(params.DefaultSpecOptions())
	defer params.OverrideSpecOptions(params.TestSpecOptions())

	sk, err := RandKey()
	require.NoError(t, err)
	sig := sk.Sign([]byte("a"))
	require.False(t, sig.Verify(sk.PublicKey(), []byte("b")))
}

func TestSkipVerificationWhenDisabled(t *testing.T) {
	params.OverrideSpecOptions(params.TestSpecOptions())
	sk, err := RandKey()
	require.NoError(t, err)
	sig := sk.Sign([]byte("a"))
	require.True(t, sig.Verify(sk.PublicKey(), []byte("totally different")))
}

func TestAggregateVerify(t *testing.T) {
	params.OverrideSpecOptions(params.DefaultSpecOptions())
	defer params.OverrideSpecOptions(params.TestSpecOptions())

	msg := []byte("same message")
	var pubs []PublicKey
	var sigs []Signature
	for i := 0; i < 3; i++ {
		sk, err := RandKey()
		require.NoError(t, err)
		pubs = append(pubs, sk.PublicKey())
		sigs = append(sigs, sk.Sign(msg))
	}
	agg, err := AggregateSignatures(sigs)
	require.NoError(t, err)
	require.True(t, VerifyAggregate(pubs, msg, agg))
}
