// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutconfig

import (
	"fmt"

	"github.com/google/protomutator/mutator"
	"github.com/google/protomutator/pkg/config"
	"github.com/google/protomutator/pkg/protoio"
)

const maxProcs = 128

func LoadData(data []byte) (*Config, error) {
	cfg, err := LoadPartialData(data)
	if err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFile(filename string) (*Config, error) {
	cfg, err := LoadPartialFile(filename)
	if err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadPartialData(data []byte) (*Config, error) {
	cfg := DefaultValues()
	if err := config.LoadData(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadPartialFile(filename string) (*Config, error) {
	cfg := DefaultValues()
	if err := config.LoadFile(filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultValues() *Config {
	return &Config{
		OutputFormat: "binary",
		Procs:        1,
		Iters:        1,
		SizeHint:     1000,
		Mutator:      mutator.DefaultConfig(),
	}
}

// Complete checks the config and fills in the Derived part.
func Complete(cfg *Config) error {
	if len(cfg.Descriptors) == 0 {
		return fmt.Errorf("config param descriptors is empty")
	}
	if cfg.Message == "" {
		return fmt.Errorf("config param message is empty")
	}
	if cfg.Procs < 1 || cfg.Procs > maxProcs {
		return fmt.Errorf("bad config param procs: '%v', want [1, %v]", cfg.Procs, maxProcs)
	}
	if cfg.Iters < 1 {
		return fmt.Errorf("bad config param iters: '%v', want > 0", cfg.Iters)
	}
	if cfg.SizeHint < 0 {
		return fmt.Errorf("bad config param size_hint: '%v', want >= 0", cfg.SizeHint)
	}
	if cfg.MaxSize < 0 {
		return fmt.Errorf("bad config param max_size: '%v', want >= 0", cfg.MaxSize)
	}
	if cfg.CrossOverRatio < 0 {
		return fmt.Errorf("bad config param crossover_ratio: '%v', want >= 0", cfg.CrossOverRatio)
	}
	if cfg.Mutator.DefaultBiasRatio < 0 {
		return fmt.Errorf("bad config param mutator.default_bias_ratio: '%v'", cfg.Mutator.DefaultBiasRatio)
	}
	if cfg.Mutator.MaxDepth < 0 {
		return fmt.Errorf("bad config param mutator.max_depth: '%v'", cfg.Mutator.MaxDepth)
	}
	var err error
	if cfg.InFormat, err = protoio.ParseFormat(cfg.InputFormat); err != nil {
		return fmt.Errorf("bad config param input_format: %w", err)
	}
	if cfg.OutFormat, err = protoio.ParseFormat(cfg.OutputFormat); err != nil {
		return fmt.Errorf("bad config param output_format: %w", err)
	}
	if cfg.OutFormat == protoio.Auto {
		cfg.OutFormat = protoio.Binary
	}
	if cfg.Schema, err = protoio.LoadSchema(cfg.Descriptors...); err != nil {
		return err
	}
	if cfg.Type, err = protoio.FindMessage(cfg.Schema, cfg.Message); err != nil {
		return err
	}
	return nil
}
