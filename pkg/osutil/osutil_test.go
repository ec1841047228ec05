// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExist(t *testing.T) {
	if f := os.Args[0]; !IsExist(f) {
		t.Fatalf("executable %v does not exist", f)
	}
	if f := os.Args[0] + "-foo-bar-buz"; IsExist(f) {
		t.Fatalf("file %v exists", f)
	}
}

func TestWriteFileListDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(dir, "sub", "b"), []byte("b")))
	require.NoError(t, WriteFile(filepath.Join(dir, "sub", "a"), []byte("a")))
	require.NoError(t, MkdirAll(filepath.Join(dir, "sub", "dir")))
	files, err := ListDir(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, files)
	data, err := os.ReadFile(filepath.Join(dir, "sub", "a"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	// Overwrite leaves no temp files behind.
	require.NoError(t, WriteFile(filepath.Join(dir, "sub", "a"), []byte("aa")))
	files, err = ListDir(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, files)
	info, err := os.Stat(filepath.Join(dir, "sub", "a"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(DefaultFilePerm), info.Mode().Perm())
}
