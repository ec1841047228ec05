// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package hash names produced messages by their contents,
// so identical results end up in the same file.
package hash

import (
	"crypto/sha1"
	"encoding/hex"
)

type Sig [sha1.Size]byte

func Hash(pieces ...[]byte) Sig {
	h := sha1.New()
	for _, data := range pieces {
		h.Write(data)
	}
	return Sig(h.Sum(nil))
}

func String(pieces ...[]byte) string {
	return Hash(pieces...).String()
}

func (sig Sig) String() string {
	return hex.EncodeToString(sig[:])
}

// FileName returns the name for a file with the given contents and extension (including the dot).
func FileName(data []byte, ext string) string {
	return String(data) + ext
}
