// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package mutator makes small random changes to protobuf messages.
//
// Usage example:
//
//	m := mutator.New(1)
//	msg := &pb.MyMessage{}
//	proto.Unmarshal(data, msg)
//	m.Mutate(msg, 1000)
//
// Mutations are driven only by the schema available through protoreflect,
// so any message type works, including dynamicpb messages. For a fixed seed
// and input the output is reproducible. A Mutator is not safe for concurrent
// use; parallel fuzzers should create one per worker with distinct seeds.
package mutator

import (
	"fmt"

	"github.com/google/protomutator/pkg/stat"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Config holds tunables of a Mutator. Zero fields are replaced by defaults in New.
type Config struct {
	// KeepInitialized says that results must have all required fields set.
	KeepInitialized bool `json:"keep_initialized"`
	// DefaultBiasRatio is N in "1 out of N scalar mutations resets the field to its default".
	DefaultBiasRatio int `json:"default_bias_ratio"`
	// MaxDepth bounds the depth of nested messages the mutator descends into.
	// Deeper optional submessages are trimmed.
	MaxDepth int `json:"max_depth"`
}

const (
	DefaultBiasRatio = 100
	DefaultMaxDepth  = 100
)

func DefaultConfig() Config {
	return Config{
		KeepInitialized:  true,
		DefaultBiasRatio: DefaultBiasRatio,
		MaxDepth:         DefaultMaxDepth,
	}
}

func (cfg *Config) complete() {
	if cfg.DefaultBiasRatio == 0 {
		cfg.DefaultBiasRatio = DefaultBiasRatio
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.DefaultBiasRatio < 0 || cfg.MaxDepth < 0 {
		panic(fmt.Sprintf("bad mutator config %+v", *cfg))
	}
}

type Mutator struct {
	r              *Rand
	fields         FieldMutator
	cfg            Config
	postProcessors map[protoreflect.FullName][]PostProcessor
	stats          *stats
}

type Option func(*Mutator)

func WithConfig(cfg Config) Option {
	return func(m *Mutator) {
		cfg.complete()
		m.cfg = cfg
	}
}

func WithFieldMutator(fm FieldMutator) Option {
	return func(m *Mutator) {
		m.SetFieldMutator(fm)
	}
}

// WithStats makes the mutator account its work in set instead of a private one.
func WithStats(set *stat.Set) Option {
	return func(m *Mutator) {
		m.stats = newStats(set)
	}
}

func New(seed uint32, opts ...Option) *Mutator {
	m := &Mutator{
		r:              NewRand(seed),
		fields:         DefaultFieldMutator{},
		cfg:            DefaultConfig(),
		postProcessors: make(map[protoreflect.FullName][]PostProcessor),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.stats == nil {
		m.stats = newStats(stat.NewSet())
	}
	return m
}

// Seed restarts the random sequence used by all subsequent operations.
func (m *Mutator) Seed(seed uint32) {
	m.r.Seed(seed)
}

func (m *Mutator) SetFieldMutator(fm FieldMutator) {
	if fm == nil {
		panic("nil field mutator")
	}
	m.fields = fm
}

func (m *Mutator) KeepInitialized() bool {
	return m.cfg.KeepInitialized
}

func (m *Mutator) SetKeepInitialized(v bool) {
	m.cfg.KeepInitialized = v
}

func (m *Mutator) DefaultBiasRatio() int {
	return m.cfg.DefaultBiasRatio
}

func (m *Mutator) SetDefaultBiasRatio(n int) {
	if n <= 0 {
		panic(fmt.Sprintf("bad default bias ratio %v", n))
	}
	m.cfg.DefaultBiasRatio = n
}

func (m *Mutator) Config() Config {
	return m.cfg
}

// Stats returns the set the mutator accounts its work in.
func (m *Mutator) Stats() *stat.Set {
	return m.stats.set
}

// IsInitialized reports whether all required fields of msg are set, recursively.
func IsInitialized(msg proto.Message) bool {
	return proto.CheckInitialized(msg) == nil
}
