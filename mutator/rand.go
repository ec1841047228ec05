// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math/rand"
)

// Rand is the only source of randomness used by the mutator.
// All decisions go through it, so a seed together with the input message
// fully determines the result.
// None of the methods fail: degenerate arguments yield 0 or true
// without consuming any randomness.
type Rand struct {
	rnd *rand.Rand
}

func NewRand(seed uint32) *Rand {
	r := &Rand{}
	r.Seed(seed)
	return r
}

// Seed restarts the sequence.
func (r *Rand) Seed(seed uint32) {
	r.rnd = rand.New(rand.NewSource(int64(seed)))
}

// Intn returns a value in [0, n).
func (r *Rand) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return r.rnd.Intn(n)
}

func (r *Rand) Uint32() uint32 {
	return r.rnd.Uint32()
}

func (r *Rand) Uint64() uint64 {
	return r.rnd.Uint64()
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	return r.rnd.Float64()
}

func (r *Rand) Bin() bool {
	return r.rnd.Intn(2) == 0
}

// OneOf returns true with probability 1/n.
func (r *Rand) OneOf(n int) bool {
	if n <= 1 {
		return true
	}
	return r.rnd.Intn(n) == 0
}

// NOutOf returns true with probability n/outOf.
func (r *Rand) NOutOf(n, outOf int) bool {
	if n >= outOf {
		return true
	}
	if n <= 0 {
		return false
	}
	return r.rnd.Intn(outOf) < n
}

// Choose returns index i with probability weights[i]/sum(weights).
// Negative weights count as 0. If all weights are 0, it returns 0.
func (r *Rand) Choose(weights ...int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return 0
	}
	v := r.rnd.Intn(total)
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if v < w {
			return i
		}
		v -= w
	}
	panic("unreachable")
}
