// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math"
	"unicode/utf8"

	"golang.org/x/exp/constraints"
)

// FieldMutator mutates values of scalar fields.
// DefaultFieldMutator implements very basic mutations: it flips bits of numbers
// and changes strings by one element at a time. Users that know better values
// for their protocol should embed DefaultFieldMutator, override the methods they
// care about and install the result with Mutator.SetFieldMutator.
// Implementations must draw all randomness from r.
type FieldMutator interface {
	MutateInt32(r *Rand, v int32) int32
	MutateInt64(r *Rand, v int64) int64
	MutateUint32(r *Rand, v uint32) uint32
	MutateUint64(r *Rand, v uint64) uint64
	MutateFloat(r *Rand, v float32) float32
	MutateDouble(r *Rand, v float64) float64
	MutateBool(r *Rand, v bool) bool
	// MutateEnum returns an index in [0, count). index is -1 if the current
	// value does not correspond to any declared value.
	MutateEnum(r *Rand, index, count int) int
	MutateBytes(r *Rand, v []byte, sizeIncreaseHint int) []byte
	// MutateString must return valid UTF-8.
	MutateString(r *Rand, v string, sizeIncreaseHint int) string
}

type DefaultFieldMutator struct{}

var _ FieldMutator = DefaultFieldMutator{}

const maxIntDelta = 8

func (DefaultFieldMutator) MutateInt32(r *Rand, v int32) int32 {
	return mutateInt(r, v, 32)
}

func (DefaultFieldMutator) MutateInt64(r *Rand, v int64) int64 {
	return mutateInt(r, v, 64)
}

func (DefaultFieldMutator) MutateUint32(r *Rand, v uint32) uint32 {
	return mutateInt(r, v, 32)
}

func (DefaultFieldMutator) MutateUint64(r *Rand, v uint64) uint64 {
	return mutateInt(r, v, 64)
}

// mutateInt flips a random bit or, less often, adds a small delta.
// Arithmetic wraps around in the width of T.
func mutateInt[T constraints.Integer](r *Rand, v T, bits int) T {
	if r.OneOf(4) {
		delta := T(r.Intn(maxIntDelta) + 1)
		if r.Bin() {
			return v + delta
		}
		return v - delta
	}
	return v ^ T(1)<<uint(r.Intn(bits))
}

var (
	specialFloat64s = []float64{
		0,
		math.Copysign(0, -1),
		1,
		-1,
		math.Inf(1),
		math.Inf(-1),
		math.NaN(),
		math.SmallestNonzeroFloat64,
		-math.SmallestNonzeroFloat64,
		math.MaxFloat64,
		-math.MaxFloat64,
	}
	specialFloat32s = []float32{
		0,
		float32(math.Copysign(0, -1)),
		1,
		-1,
		float32(math.Inf(1)),
		float32(math.Inf(-1)),
		float32(math.NaN()),
		math.SmallestNonzeroFloat32,
		-math.SmallestNonzeroFloat32,
		math.MaxFloat32,
		-math.MaxFloat32,
	}
)

func (DefaultFieldMutator) MutateFloat(r *Rand, v float32) float32 {
	if r.OneOf(10) {
		return specialFloat32s[r.Intn(len(specialFloat32s))]
	}
	return math.Float32frombits(math.Float32bits(v) ^ 1<<uint(r.Intn(32)))
}

func (DefaultFieldMutator) MutateDouble(r *Rand, v float64) float64 {
	if r.OneOf(10) {
		return specialFloat64s[r.Intn(len(specialFloat64s))]
	}
	return math.Float64frombits(math.Float64bits(v) ^ 1<<uint(r.Intn(64)))
}

func (DefaultFieldMutator) MutateBool(r *Rand, v bool) bool {
	return !v
}

func (DefaultFieldMutator) MutateEnum(r *Rand, index, count int) int {
	if count <= 1 {
		return 0
	}
	if index < 0 || index >= count {
		return r.Intn(count)
	}
	return (index + 1 + r.Intn(count-1)) % count
}

type editOp int

const (
	editInsert editOp = iota
	editDelete
	editFlip
)

// chooseEdit picks one of insert/delete/flip for a sequence of n elements.
// Insertions become rare as the budget runs out; deletions get more likely
// once the budget is exhausted or negative.
func chooseEdit(r *Rand, n, budget int) editOp {
	if n == 0 {
		return editInsert
	}
	budget = clampHint(budget)
	grow, shrink := 0, 2
	switch {
	case budget > 0:
		grow = 1 + 6*budget/(budget+16)
	case budget == 0:
		shrink += 2
	default:
		shrink += 6
	}
	return editOp(r.Choose(grow, shrink, 4))
}

func (DefaultFieldMutator) MutateBytes(r *Rand, v []byte, sizeIncreaseHint int) []byte {
	res := append([]byte{}, v...)
	switch chooseEdit(r, len(res), sizeIncreaseHint) {
	case editInsert:
		pos := r.Intn(len(res) + 1)
		res = append(res, 0)
		copy(res[pos+1:], res[pos:])
		res[pos] = byte(r.Intn(256))
	case editDelete:
		pos := r.Intn(len(res))
		res = append(res[:pos], res[pos+1:]...)
	case editFlip:
		res[r.Intn(len(res))] ^= 1 << uint(r.Intn(8))
	}
	return res
}

// MutateString edits the string on code point granularity.
// Invalid UTF-8 in the input is replaced with utf8.RuneError.
func (DefaultFieldMutator) MutateString(r *Rand, v string, sizeIncreaseHint int) string {
	runes := []rune(v)
	switch chooseEdit(r, len(runes), sizeIncreaseHint) {
	case editInsert:
		pos := r.Intn(len(runes) + 1)
		runes = append(runes, 0)
		copy(runes[pos+1:], runes[pos:])
		runes[pos] = randRune(r)
	case editDelete:
		pos := r.Intn(len(runes))
		runes = append(runes[:pos], runes[pos+1:]...)
	case editFlip:
		pos := r.Intn(len(runes))
		runes[pos] = fixRune(runes[pos] ^ 1<<uint(r.Intn(runeBits)))
	}
	return string(runes)
}

// Number of bits needed to represent utf8.MaxRune.
const runeBits = 21

func randRune(r *Rand) rune {
	switch {
	case r.NOutOf(6, 10):
		return rune(' ' + r.Intn(0x7f-' '))
	case r.NOutOf(2, 4):
		return rune(r.Intn(utf8.RuneSelf))
	default:
		return fixRune(rune(r.Intn(utf8.MaxRune + 1)))
	}
}

// fixRune maps c to a valid Unicode scalar value (no surrogates, <= utf8.MaxRune).
func fixRune(c rune) rune {
	if c < 0 || c > utf8.MaxRune {
		c &= 0xffff
	}
	if c >= surrogateMin && c <= surrogateMax {
		c -= surrogateMax - surrogateMin + 1
	}
	return c
}

const (
	surrogateMin = 0xd800
	surrogateMax = 0xdfff
)
