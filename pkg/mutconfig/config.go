// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutconfig

import (
	"github.com/google/protomutator/mutator"
	"github.com/google/protomutator/pkg/protoio"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

type Config struct {
	// Files with serialized FileDescriptorSets describing the message type
	// (protoc --include_imports --descriptor_set_out=FILE). Binary, text and JSON
	// encodings are accepted, optionally xz-compressed.
	Descriptors []string `json:"descriptors"`
	// Full name of the message type of all inputs and outputs (e.g. "foo.bar.Request").
	Message string `json:"message"`
	// Encoding of input files: "binary", "text", "json" or "auto" (by file extension, default).
	InputFormat string `json:"input_format,omitempty"`
	// Encoding of produced files: "binary" (default), "text" or "json".
	OutputFormat string `json:"output_format,omitempty"`
	// Directory for produced messages. Files are named by the hash of their contents.
	// If empty, messages are printed to stdout in text format.
	Output string `json:"output,omitempty"`
	// Compress produced files with xz.
	Compress bool `json:"compress,omitempty"`
	// Seed for random decisions; worker i uses seed+i. 0 means a time-based seed.
	Seed uint32 `json:"seed,omitempty"`
	// Number of parallel workers (1 by default).
	Procs int `json:"procs"`
	// Total number of messages to produce.
	Iters int `json:"iters"`
	// Approximate number of bytes a single mutation may add to a message.
	SizeHint int `json:"size_hint"`
	// Results larger than this are discarded and the mutation is retried (0 means no limit).
	MaxSize int `json:"max_size,omitempty"`
	// 1 out of CrossOverRatio results is produced by crossing over two inputs
	// instead of mutating one (0 disables crossover).
	CrossOverRatio int `json:"crossover_ratio,omitempty"`
	// Address to serve Prometheus metrics on (e.g. "localhost:9090"), optional.
	HTTP string `json:"http,omitempty"`

	Mutator mutator.Config `json:"mutator"`

	// Implementation details beyond this point. Filled after parsing.
	Derived `json:"-"`
}

type Derived struct {
	Schema    *protoregistry.Files
	Type      protoreflect.MessageDescriptor
	InFormat  protoio.Format
	OutFormat protoio.Format
}
