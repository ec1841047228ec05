// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"math"
	"testing"

	"github.com/google/protomutator/pkg/testutil"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

func initTest(t *testing.T) (*Mutator, int) {
	return New(testutil.RandSeed(t)), testutil.IterCount()
}

const sampleAllTypes = `
opt_int32: 1
opt_uint64: 18446744073709551615
opt_double: 1.5
opt_string: "hello, мир"
opt_bytes: "\x00\x01\xff"
opt_color: BLUE
req_id: 7
req_nested { a: 1 b: "x" child { a: 2 child { a: 3 } } }
rep_int32: [1, 2, 3]
rep_string: ["a", "bb"]
rep_nested { a: 4 }
rep_nested { a: 5 b: "five" }
rep_color: [RED, GREEN]
labels { key: "k1" value: 1 }
labels { key: "k2" value: 2 }
nested_by_id { key: 5 value { a: 5 } }
oneof_string: "one"
`

func sampleMessage(t *testing.T) *dynamicpb.Message {
	return testutil.ParseMessage(t, testutil.AllTypes, sampleAllTypes)
}

func clone(msg proto.Message) proto.Message {
	return proto.Clone(msg)
}

// treeDepth returns the nesting level of the deepest message in msg (0 for msg itself).
func treeDepth(msg proto.Message) int {
	depth := 0
	foreachMessage(msg.ProtoReflect(), 0, math.MaxInt32, func(_ protoreflect.Message, d int) {
		depth = max(depth, d)
	})
	return depth
}

// countMessages returns the number of messages of the given type in msg.
func countMessages(msg proto.Message, name string) int {
	n := 0
	foreachMessage(msg.ProtoReflect(), 0, math.MaxInt32, func(m protoreflect.Message, _ int) {
		if m.Descriptor().FullName() == protoreflect.FullName(name) {
			n++
		}
	})
	return n
}

func field(msg proto.Message, name string) protoreflect.FieldDescriptor {
	fd := msg.ProtoReflect().Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic("no field " + name)
	}
	return fd
}

// newMutation returns a mutation context for msg as Mutate sets it up for one step.
func newMutation(m *Mutator, msg proto.Message) *mutation {
	root := msg.ProtoReflect()
	return &mutation{
		m:     m,
		r:     m.r,
		root:  root,
		start: proto.Size(msg),
		slots: collectSlots(root, 0, m.cfg.MaxDepth),
	}
}

// topSlot returns the slot of the top-level field name.
func (ctx *mutation) topSlot(name string) slot {
	fd := field(ctx.root.Interface(), name)
	for _, s := range ctx.slots {
		if s.msg == ctx.root && s.fd == fd {
			return s
		}
	}
	panic("no slot " + name)
}
