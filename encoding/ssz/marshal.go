package ssz

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/sigmaprotocol/beacon-core/core/errkind"
)

// FieldPart is one container field's encoded form: exactly one of Fixed
// or Var is set, matching whether the schema marks the field fixed- or
// variable-size.
type FieldPart struct {
	Fixed []byte
	Var   []byte
}

// MarshalContainer writes the fixed-size prefix region (inline values or
// 4-byte little-endian offsets) followed by the heap region holding
// variable-size payloads in declaration order, per the SSZ container layout.
func MarshalContainer(parts []FieldPart) ([]byte, error) {
	fixedLen := 0
	for _, p := range parts {
		if p.Fixed != nil {
			fixedLen += len(p.Fixed)
		} else {
			fixedLen += 4
		}
	}
	buf := make([]byte, fixedLen)
	var heap []byte
	pos := 0
	for _, p := range parts {
		if p.Fixed != nil {
			copy(buf[pos:], p.Fixed)
			pos += len(p.Fixed)
			continue
		}
		offset := fixedLen + len(heap)
		if offset > math.MaxUint32 {
			return nil, errors.Wrap(errkind.ErrBadEncoding, "offset overflow")
		}
		binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(offset))
		pos += 4
		heap = append(heap, p.Var...)
	}
	return append(buf, heap...), nil
}

// UnmarshalContainer splits buf back into per-field raw byte slices.
// fixedSizes[i] >= 0 names a fixed-size field of that byte width;
// fixedSizes[i] == -1 names a variable-size field whose bounds are
// recovered from consecutive offsets (the last field's end is len(buf)).
func UnmarshalContainer(buf []byte, fixedSizes []int) ([][]byte, error) {
	result := make([][]byte, len(fixedSizes))
	var offsets []int
	var varFieldIdx []int
	pos := 0
	for i, sz := range fixedSizes {
		if sz >= 0 {
			if pos+sz > len(buf) {
				return nil, errors.Wrapf(errkind.ErrBadEncoding, "field %d: fixed region truncated", i)
			}
			result[i] = buf[pos : pos+sz]
			pos += sz
			continue
		}
		if pos+4 > len(buf) {
			return nil, errors.Wrapf(errkind.ErrBadEncoding, "field %d: offset truncated", i)
		}
		off := int(binary.LittleEndian.Uint32(buf[pos : pos+4]))
		offsets = append(offsets, off)
		varFieldIdx = append(varFieldIdx, i)
		pos += 4
	}
	fixedEnd := pos
	if len(offsets) > 0 && offsets[0] != fixedEnd {
		return nil, errors.Wrap(errkind.ErrBadEncoding, "first variable-field offset does not follow fixed region")
	}
	for j, off := range offsets {
		if off < fixedEnd || off > len(buf) {
			return nil, errors.Wrapf(errkind.ErrBadEncoding, "offset %d out of range", off)
		}
		end := len(buf)
		if j+1 < len(offsets) {
			end = offsets[j+1]
		}
		if end < off {
			return nil, errors.Wrap(errkind.ErrBadEncoding, "offsets not monotonically increasing")
		}
		result[varFieldIdx[j]] = buf[off:end]
	}
	return result, nil
}

// MarshalUint64 returns the 8-byte little-endian encoding of v.
func MarshalUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// UnmarshalUint64 decodes an 8-byte little-endian buffer.
func UnmarshalUint64(buf []byte) (uint64, error) {
	if len(buf) != 8 {
		return 0, errors.Wrap(errkind.ErrBadEncoding, "uint64 field must be 8 bytes")
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// MarshalUint32 returns the 4-byte little-endian encoding of v.
func MarshalUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

// UnmarshalUint32 decodes a 4-byte little-endian buffer.
func UnmarshalUint32(buf []byte) (uint32, error) {
	if len(buf) != 4 {
		return 0, errors.Wrap(errkind.ErrBadEncoding, "uint32 field must be 4 bytes")
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// MaxUnionAlternatives is the cap on distinguishable union arms: the
// selector is one byte with the top bit reserved.
const MaxUnionAlternatives = 128

// MarshalUnion prepends the one-byte selector to the active
// alternative's encoding. Tag 0 is the null arm and must carry no
// payload.
func MarshalUnion(tag byte, payload []byte) ([]byte, error) {
	if tag >= MaxUnionAlternatives {
		return nil, errors.Wrapf(errkind.ErrBadEncoding, "union tag %d exceeds maximum %d", tag, MaxUnionAlternatives-1)
	}
	if tag == 0 && len(payload) != 0 {
		return nil, errors.Wrap(errkind.ErrBadEncoding, "null union arm cannot carry a payload")
	}
	return append([]byte{tag}, payload...), nil
}

// UnmarshalUnion splits a union encoding back into its selector and
// payload, validating the tag against the schema's arm count.
func UnmarshalUnion(buf []byte, numAlternatives int) (byte, []byte, error) {
	if len(buf) == 0 {
		return 0, nil, errors.Wrap(errkind.ErrBadEncoding, "union encoding is empty")
	}
	tag := buf[0]
	if int(tag) >= numAlternatives || tag >= MaxUnionAlternatives {
		return 0, nil, errors.Wrapf(errkind.ErrBadEncoding, "undecodable union tag %d", tag)
	}
	payload := buf[1:]
	if tag == 0 && len(payload) != 0 {
		return 0, nil, errors.Wrap(errkind.ErrBadEncoding, "null union arm cannot carry a payload")
	}
	return tag, payload, nil
}

// ValidateFixedBytes checks that buf has the declared width, the
// vector-length-mismatch failure condition of fixed-width decoding.
func ValidateFixedBytes(buf []byte, width int) error {
	if len(buf) != width {
		return errors.Wrapf(errkind.ErrBadEncoding, "expected %d bytes, got %d", width, len(buf))
	}
	return nil
}

// ValidateListLength checks a decoded list/bitlist length against its
// declared maximum, the canonical over-length failure condition.
func ValidateListLength(length, max uint64) error {
	if length > max {
		return errors.Wrapf(errkind.ErrBadEncoding, "list length %d exceeds max %d", length, max)
	}
	return nil
}
