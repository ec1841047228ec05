// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", String([]byte("abc")))
	assert.Equal(t, String([]byte("abc")), String([]byte("a"), []byte("bc")))
	assert.NotEqual(t, String([]byte("abc")), String([]byte("abd")))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d.pb", FileName([]byte("abc"), ".pb"))
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", FileName(nil, ""))
}
