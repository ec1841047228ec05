// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package tool contains various helper utilitites useful for implementation of command line tools.
package tool

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// Init parses command line flags in set and starts profiling if requested
// with -cpuprofile/-memprofile. The returned function must be called before exit.
func Init(set *flag.FlagSet, args []string) func() {
	prof := new(profiler)
	set.StringVar(&prof.cpu, "cpuprofile", "", "write CPU profile to this file")
	set.StringVar(&prof.mem, "memprofile", "", "write memory profile to this file")
	if err := set.Parse(args); err != nil {
		Fail(err)
	}
	prof.start()
	return prof.stop
}

type profiler struct {
	cpu     string
	mem     string
	cpuFile *os.File
}

func (p *profiler) start() {
	if p.cpu == "" {
		return
	}
	f, err := os.Create(p.cpu)
	if err != nil {
		Failf("failed to create cpuprofile file: %v", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		Failf("failed to start cpu profile: %v", err)
	}
	p.cpuFile = f
}

func (p *profiler) stop() {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
	}
	if p.mem == "" {
		return
	}
	f, err := os.Create(p.mem)
	if err != nil {
		Failf("failed to create memprofile file: %v", err)
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		Failf("failed to write mem profile: %v", err)
	}
}

func Failf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

func Fail(err error) {
	Failf("%v", err)
}
