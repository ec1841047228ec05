// Copyright 2024 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"sync"
)

// Average is a running mean of samples, e.g. of time.Duration.
// It is used for values that are not worth a histogram.
type Average[T ~int64] struct {
	mu    sync.Mutex
	count int64
	mean  T
}

func (a *Average[T]) Save(val T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count++
	a.mean += (val - a.mean) / T(a.count)
}

func (a *Average[T]) Value() T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mean
}

func (a *Average[T]) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.count)
}
