// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log is a leveled logger shared by the mutator and tools:
//   - message verbosity is compared against the global -vv flag
//   - V allows to skip formatting of disabled messages on hot paths
//   - recent messages of levels 0 and 1 can be kept in memory (EnableLogCaching)
//     and dumped when a tool fails
package log

import (
	"flag"
	"fmt"
	golog "log"
	"strings"
	"sync"
	"time"
)

var (
	flagV       = flag.Int("vv", 0, "verbosity")
	mu          sync.Mutex
	cache       *ring
	prependTime = true // for testing
)

// Levels up to this one are cached even if they are not printed.
const cachedLevel = 1

// ring holds the last lines, evicting the oldest ones when maxMem is exceeded.
type ring struct {
	lines  []string
	pos    int
	mem    int
	maxMem int
}

func (r *ring) add(line string) {
	r.mem += len(line) - len(r.lines[r.pos])
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % len(r.lines)
	// The line just added is never evicted.
	for i := 0; i < len(r.lines)-1 && r.mem > r.maxMem; i++ {
		old := (r.pos + i) % len(r.lines)
		r.mem -= len(r.lines[old])
		r.lines[old] = ""
	}
	if r.mem < 0 {
		panic("log cache size underflow")
	}
}

func (r *ring) String() string {
	var buf strings.Builder
	for i := range r.lines {
		if line := r.lines[(r.pos+i)%len(r.lines)]; line != "" {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EnableLogCaching keeps up to maxLines recent messages, but no more than maxMem bytes.
// Cached output can later be queried with CachedLogOutput.
func EnableLogCaching(maxLines, maxMem int) {
	if maxLines < 1 || maxMem < 1 {
		panic("invalid maxLines/maxMem")
	}
	mu.Lock()
	defer mu.Unlock()
	if cache != nil {
		Fatalf("log caching is already enabled")
	}
	cache = &ring{
		lines:  make([]string, maxLines),
		maxMem: maxMem,
	}
}

func CachedLogOutput() string {
	mu.Lock()
	defer mu.Unlock()
	if cache == nil {
		return ""
	}
	return cache.String()
}

// SetVerbosity overrides the -vv flag value.
func SetVerbosity(v int) {
	mu.Lock()
	defer mu.Unlock()
	*flagV = v
}

// V reports whether messages of verbosity v are printed or cached.
func V(v int) bool {
	mu.Lock()
	defer mu.Unlock()
	return v <= *flagV || cache != nil && v <= cachedLevel
}

func Logf(v int, msg string, args ...any) {
	mu.Lock()
	doPrint := v <= *flagV
	if cache != nil && v <= cachedLevel {
		prefix := ""
		if prependTime {
			prefix = time.Now().Format("2006/01/02 15:04:05 ")
		}
		cache.add(prefix + fmt.Sprintf(msg, args...))
	}
	mu.Unlock()
	if doPrint {
		golog.Printf(msg, args...)
	}
}

func Fatalf(msg string, args ...any) {
	golog.Fatalf(msg, args...)
}
