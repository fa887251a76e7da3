// Package calldata implements the GenVM calldata encoding: a compact,
// canonical serialization of null, booleans, integers, byte strings, UTF-8
// strings, arrays, maps and account addresses.
//
// Every value starts with a ULEB128 header whose low 3 bits select the atom
// kind and whose remaining bits carry the value (integers) or the element
// count (bytes, strings, arrays, maps). Map entries are sorted by key so a
// given value has exactly one encoding.
package calldata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

const (
	tagSpecial = 0
	tagPosInt  = 1
	tagNegInt  = 2
	tagBytes   = 3
	tagString  = 4
	tagArray   = 5
	tagMap     = 6
)

// Full header values of the special atoms. The address atom is followed by
// the 20 raw bytes.
const (
	specialNull    = 0<<3 | tagSpecial
	specialFalse   = 1<<3 | tagSpecial
	specialTrue    = 2<<3 | tagSpecial
	specialAddress = 3<<3 | tagSpecial
)

// Encode serializes v into its canonical calldata form. Supported kinds:
// nil, bool, int, int32, int64, uint, uint32, uint64, *big.Int, []byte,
// string, []any, map[string]any and common.Address. Other integer widths
// are rejected as unsupported types.
func Encode(v any) ([]byte, error) {
	return appendValue(nil, v)
}

func appendValue(dst []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return binary.AppendUvarint(dst, specialNull), nil
	case bool:
		if x {
			return binary.AppendUvarint(dst, specialTrue), nil
		}
		return binary.AppendUvarint(dst, specialFalse), nil
	case int:
		return appendInt(dst, int64(x)), nil
	case int32:
		return appendInt(dst, int64(x)), nil
	case int64:
		return appendInt(dst, x), nil
	case uint:
		return appendHeader(dst, tagPosInt, uint64(x)), nil
	case uint32:
		return appendHeader(dst, tagPosInt, uint64(x)), nil
	case uint64:
		return appendHeader(dst, tagPosInt, x), nil
	case *big.Int:
		return appendBig(dst, x), nil
	case []byte:
		dst = appendHeader(dst, tagBytes, uint64(len(x)))
		return append(dst, x...), nil
	case string:
		dst = appendHeader(dst, tagString, uint64(len(x)))
		return append(dst, x...), nil
	case common.Address:
		dst = binary.AppendUvarint(dst, specialAddress)
		return append(dst, x.Bytes()...), nil
	case []any:
		dst = appendHeader(dst, tagArray, uint64(len(x)))
		var err error
		for _, elem := range x {
			if dst, err = appendValue(dst, elem); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dst = appendHeader(dst, tagMap, uint64(len(x)))
		var err error
		for _, k := range keys {
			dst = binary.AppendUvarint(dst, uint64(len(k)))
			dst = append(dst, k...)
			if dst, err = appendValue(dst, x[k]); err != nil {
				return nil, err
			}
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("calldata: unsupported type %T", v)
	}
}

func appendInt(dst []byte, v int64) []byte {
	if v >= 0 {
		return appendHeader(dst, tagPosInt, uint64(v))
	}
	return appendHeader(dst, tagNegInt, uint64(-(v + 1)))
}

func appendBig(dst []byte, v *big.Int) []byte {
	tag := uint64(tagPosInt)
	abs := new(big.Int).Set(v)
	if v.Sign() < 0 {
		tag = tagNegInt
		abs.Neg(abs)
		abs.Sub(abs, big.NewInt(1))
	}
	hdr := new(big.Int).Lsh(abs, 3)
	hdr.Or(hdr, new(big.Int).SetUint64(tag))
	return appendUvarintBig(dst, hdr)
}

func appendHeader(dst []byte, tag int, value uint64) []byte {
	// Headers wider than 61 value bits take the big path so no bits shift
	// off the top.
	if value > 1<<61-1 {
		hdr := new(big.Int).Lsh(new(big.Int).SetUint64(value), 3)
		hdr.Or(hdr, big.NewInt(int64(tag)))
		return appendUvarintBig(dst, hdr)
	}
	return binary.AppendUvarint(dst, value<<3|uint64(tag))
}

func appendUvarintBig(dst []byte, v *big.Int) []byte {
	if v.IsUint64() {
		return binary.AppendUvarint(dst, v.Uint64())
	}
	n := new(big.Int).Set(v)
	low := new(big.Int)
	for {
		low.And(n, big.NewInt(0x7f))
		b := byte(low.Uint64())
		n.Rsh(n, 7)
		if n.Sign() == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// Decode parses a single calldata value and errors on trailing bytes.
// Integers decode to int64 when they fit and *big.Int otherwise.
func Decode(b []byte) (any, error) {
	r := &reader{buf: b}
	v, err := r.readValue()
	if err != nil {
		return nil, err
	}
	if len(r.buf) != 0 {
		return nil, fmt.Errorf("calldata: %d trailing bytes", len(r.buf))
	}
	return v, nil
}

type reader struct {
	buf []byte
}

func (r *reader) take(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, fmt.Errorf("calldata: truncated, need %d bytes, have %d", n, len(r.buf))
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out, nil
}

// readUvarint reads a ULEB128 of arbitrary width.
func (r *reader) readUvarint() (*big.Int, error) {
	out := new(big.Int)
	shift := uint(0)
	for {
		if len(r.buf) == 0 {
			return nil, fmt.Errorf("calldata: truncated varint")
		}
		b := r.buf[0]
		r.buf = r.buf[1:]
		part := new(big.Int).SetUint64(uint64(b & 0x7f))
		out.Or(out, part.Lsh(part, shift))
		if b&0x80 == 0 {
			return out, nil
		}
		shift += 7
	}
}

func (r *reader) readValue() (any, error) {
	hdr, err := r.readUvarint()
	if err != nil {
		return nil, err
	}
	tag := int(new(big.Int).And(hdr, big.NewInt(7)).Uint64())
	value := new(big.Int).Rsh(hdr, 3)

	switch tag {
	case tagSpecial:
		if !hdr.IsUint64() {
			return nil, fmt.Errorf("calldata: invalid special atom")
		}
		switch hdr.Uint64() {
		case specialNull:
			return nil, nil
		case specialFalse:
			return false, nil
		case specialTrue:
			return true, nil
		case specialAddress:
			raw, err := r.take(common.AddressLength)
			if err != nil {
				return nil, err
			}
			return common.BytesToAddress(raw), nil
		default:
			return nil, fmt.Errorf("calldata: unknown special atom %s", hdr)
		}

	case tagPosInt:
		if value.IsInt64() {
			return value.Int64(), nil
		}
		return value, nil

	case tagNegInt:
		neg := new(big.Int).Neg(value)
		neg.Sub(neg, big.NewInt(1))
		if neg.IsInt64() {
			return neg.Int64(), nil
		}
		return neg, nil

	case tagBytes, tagString:
		n, err := lengthOf(value)
		if err != nil {
			return nil, err
		}
		raw, err := r.take(n)
		if err != nil {
			return nil, err
		}
		if tag == tagBytes {
			out := make([]byte, n)
			copy(out, raw)
			return out, nil
		}
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("calldata: string atom is not valid UTF-8")
		}
		return string(raw), nil

	case tagArray:
		n, err := lengthOf(value)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			elem, err := r.readValue()
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil

	case tagMap:
		n, err := lengthOf(value)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, n)
		var prev []byte
		for i := 0; i < n; i++ {
			klen, err := r.readUvarint()
			if err != nil {
				return nil, err
			}
			kn, err := lengthOf(klen)
			if err != nil {
				return nil, err
			}
			key, err := r.take(kn)
			if err != nil {
				return nil, err
			}
			if prev != nil && bytes.Compare(prev, key) >= 0 {
				return nil, fmt.Errorf("calldata: map keys not in canonical order")
			}
			prev = append([]byte(nil), key...)
			if !utf8.Valid(key) {
				return nil, fmt.Errorf("calldata: map key is not valid UTF-8")
			}
			val, err := r.readValue()
			if err != nil {
				return nil, err
			}
			out[string(key)] = val
		}
		return out, nil

	default:
		return nil, fmt.Errorf("calldata: unknown atom tag %d", tag)
	}
}

func lengthOf(v *big.Int) (int, error) {
	if !v.IsInt64() || v.Int64() < 0 || v.Int64() > 1<<31 {
		return 0, fmt.Errorf("calldata: length %s out of range", v)
	}
	return int(v.Int64()), nil
}
