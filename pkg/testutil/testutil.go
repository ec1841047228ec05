// Copyright 2022 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package testutil

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

func IterCount() int {
	iters := 1000
	if testing.Short() {
		iters /= 10
	}
	if RaceEnabled {
		iters /= 10
	}
	return iters
}

// RandSeed returns a seed for mutators under test.
// PROTOMUT_SEED env var fixes the seed to reproduce failures.
func RandSeed(t testing.TB) uint32 {
	seed := uint32(time.Now().UnixNano())
	if fixed := os.Getenv("PROTOMUT_SEED"); fixed != "" {
		v, _ := strconv.ParseUint(fixed, 0, 32)
		seed = uint32(v)
	}
	if os.Getenv("CI") != "" {
		seed = 0 // required for deterministic coverage reports
	}
	t.Logf("seed=%v", seed)
	return seed
}

// RandSource returns a source for test-local randomness seeded by RandSeed.
func RandSource(t testing.TB) rand.Source {
	return rand.NewSource(int64(RandSeed(t)))
}
