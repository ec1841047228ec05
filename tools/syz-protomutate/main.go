// Copyright 2015 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// syz-protomutate mutates protobuf messages and saves the results.
// Inputs are files or directories with messages of the configured type;
// without inputs mutation starts from an empty message. For example:
//
//	syz-protomutate -descriptors=api.pb -message=api.Request -iters=1000 -output=out corpus/
//
// All parameters can also be given in a config file (see pkg/mutconfig), flags override it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/protomutator/pkg/config"
	"github.com/google/protomutator/pkg/log"
	"github.com/google/protomutator/pkg/mutconfig"
	"github.com/google/protomutator/pkg/osutil"
	"github.com/google/protomutator/pkg/tool"
)

var (
	flagConfig   = flag.String("config", "", "config file (JSON or YAML)")
	flagOverride = flag.String("override", "", `JSON merged on top of the config, e.g. '{"mutator": {"max_depth": 10}}'`)

	flagDescriptors tool.ListFlag
	_               = flag.String("message", "", "full name of the message type")
	_               = flag.String("input_format", "", "format of inputs: binary/text/json (detected by extension by default)")
	_               = flag.String("output_format", "", "format of outputs: binary/text/json")
	_               = flag.String("output", "", "output directory (print to stdout if empty)")
	_               = flag.Bool("compress", false, "compress outputs with xz")
	_               = flag.Uint("seed", 0, "prng seed (time-based if 0)")
	_               = flag.Int("procs", 1, "number of parallel workers")
	_               = flag.Int("iters", 1, "number of messages to produce")
	_               = flag.Int("size_hint", 1000, "approximate number of bytes a mutation may add")
	_               = flag.Int("max_size", 0, "discard results larger than this")
	_               = flag.Int("crossover_ratio", 0, "1 out of N results is produced by crossover (0 disables)")
	_               = flag.String("http", "", "address to serve Prometheus metrics on")
)

func init() {
	flag.Var(&flagDescriptors, "descriptors", "comma-separated list of FileDescriptorSet files")
}

func main() {
	defer tool.Init(flag.CommandLine, os.Args[1:])()
	cfg, err := loadConfig(flag.CommandLine)
	if err != nil {
		tool.Fail(err)
	}
	log.EnableLogCaching(1000, 1<<20)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdown := make(chan struct{})
	osutil.HandleInterrupts(shutdown)
	go func() {
		<-shutdown
		cancel()
	}()
	if err := run(ctx, cfg, flag.Args(), os.Stdout); err != nil {
		tool.Failf("%v\nrecent log:\n%s", err, log.CachedLogOutput())
	}
}

// loadConfig merges, in order of increasing priority: defaults, the config file,
// explicitly set flags and the -override JSON.
func loadConfig(set *flag.FlagSet) (*mutconfig.Config, error) {
	cfg := mutconfig.DefaultValues()
	if *flagConfig != "" {
		var err error
		if cfg, err = mutconfig.LoadPartialFile(*flagConfig); err != nil {
			return nil, err
		}
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	overrides := make(map[string]any)
	set.Visit(func(f *flag.Flag) {
		switch {
		case f.Name == "config", f.Name == "override", f.Name == "vv",
			f.Name == "cpuprofile", f.Name == "memprofile",
			strings.HasPrefix(f.Name, "test."):
			return
		}
		overrides[f.Name] = f.Value.(flag.Getter).Get()
	})
	if len(overrides) != 0 {
		flags, err := json.Marshal(overrides)
		if err != nil {
			return nil, err
		}
		if data, err = config.MergeJSONData(data, flags); err != nil {
			return nil, err
		}
	}
	if data, err = config.MergeJSONData(data, []byte(*flagOverride)); err != nil {
		return nil, fmt.Errorf("bad -override: %w", err)
	}
	return mutconfig.LoadData(data)
}
