package bls

import (
	"github.com/pkg/errors"
	blst "github.com/supranational/blst/bindings/go"
)

// dst is the domain separation tag for the MinPk ciphersuite (public keys
// in G1, signatures in G2).
var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

type secretKey struct {
	p *blst.SecretKey
}

type publicKey struct {
	p *blst.P1Affine
}

type signature struct {
	s *blst.P2Affine
}

// RandKey generates a new private key from 32 bytes of crypto/rand
// entropy.
func RandKey() (SecretKey, error) {
	var ikm [32]byte
	if _, err := cryptoRandRead(ikm[:]); err != nil {
		return nil, errors.Wrap(err, "bls: could not read randomness")
	}
	sk := blst.KeyGen(ikm[:])
	if sk == nil {
		return nil, errors.New("bls: key generation failed")
	}
	return &secretKey{p: sk}, nil
}

// SecretKeyFromBytes deserializes a 32-byte scalar into a SecretKey.
func SecretKeyFromBytes(b []byte) (SecretKey, error) {
	if len(b) != 32 {
		return nil, ErrInvalidLength
	}
	sk := new(blst.SecretKey).Deserialize(b)
	if sk == nil {
		return nil, errors.New("bls: could not deserialize secret key")
	}
	return &secretKey{p: sk}, nil
}

// PublicKeyFromBytes decompresses a 48-byte G1 point.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != 48 {
		return nil, ErrInvalidLength
	}
	p := new(blst.P1Affine).Uncompress(b)
	if p == nil {
		return nil, errors.New("bls: could not decompress public key")
	}
	return &publicKey{p: p}, nil
}

// SignatureFromBytes decompresses a 96-byte G2 point.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != 96 {
		return nil, ErrInvalidLength
	}
	s := new(blst.P2Affine).Uncompress(b)
	if s == nil {
		return nil, errors.New("bls: could not decompress signature")
	}
	return &signature{s: s}, nil
}

func (s *secretKey) PublicKey() PublicKey {
	return &publicKey{p: new(blst.P1Affine).From(s.p)}
}

func (s *secretKey) Sign(msg []byte) Signature {
	sig := new(blst.P2Affine).Sign(s.p, msg, dst)
	return &signature{s: sig}
}

func (s *secretKey) Marshal() []byte {
	return s.p.Serialize()
}

func (p *publicKey) Marshal() []byte {
	return p.p.Compress()
}

func (p *publicKey) Copy() PublicKey {
	cpy := *p.p
	return &publicKey{p: &cpy}
}

func (s *signature) Marshal() []byte {
	return s.s.Compress()
}

func (s *signature) Verify(pub PublicKey, msg []byte) bool {
	if skipVerification() {
		return true
	}
	pk, ok := pub.(*publicKey)
	if !ok {
		return false
	}
	return s.s.Verify(true, pk.p, true, msg, dst)
}

func fastAggregateVerify(pubs []PublicKey, msg []byte, sig Signature) bool {
	s, ok := sig.(*signature)
	if !ok || len(pubs) == 0 {
		return false
	}
	pks := make([]*blst.P1Affine, len(pubs))
	for i, pk := range pubs {
		p, ok := pk.(*publicKey)
		if !ok {
			return false
		}
		pks[i] = p.p
	}
	return s.s.FastAggregateVerify(true, pks, msg, dst)
}

func aggregateVerify(pubs []PublicKey, msgs [][]byte, sig Signature) bool {
	s, ok := sig.(*signature)
	if !ok || len(pubs) == 0 || len(pubs) != len(msgs) {
		return false
	}
	pks := make([]*blst.P1Affine, len(pubs))
	for i, pk := range pubs {
		p, ok := pk.(*publicKey)
		if !ok {
			return false
		}
		pks[i] = p.p
	}
	blstMsgs := make([]blst.Message, len(msgs))
	for i, m := range msgs {
		blstMsgs[i] = m
	}
	return s.s.AggregateVerify(true, pks, true, blstMsgs, dst)
}

func aggregatePublicKeys(pubs []PublicKey) (PublicKey, error) {
	agg := new(blst.P1Aggregate)
	points := make([]*blst.P1Affine, len(pubs))
	for i, pk := range pubs {
		p, ok := pk.(*publicKey)
		if !ok {
			return nil, errors.New("bls: public key of wrong concrete type")
		}
		points[i] = p.p
	}
	if !agg.Aggregate(points, true) {
		return nil, errors.New("bls: public key aggregation failed")
	}
	return &publicKey{p: agg.ToAffine()}, nil
}

func aggregateSignatures(sigs []Signature) (Signature, error) {
	agg := new(blst.P2Aggregate)
	points := make([]*blst.P2Affine, len(sigs))
	for i, sg := range sigs {
		s, ok := sg.(*signature)
		if !ok {
			return nil, errors.New("bls: signature of wrong concrete type")
		}
		points[i] = s.s
	}
	if !agg.Aggregate(points, true) {
		return nil, errors.New("bls: signature aggregation failed")
	}
	return &signature{s: agg.ToAffine()}, nil
}
