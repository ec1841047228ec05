// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"testing"

	"github.com/google/protomutator/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func TestPostProcessorFanOut(t *testing.T) {
	m, iters := initTest(t)
	var calls1, calls2 int
	desc := testutil.MessageDescriptor(t, testutil.Person)
	m.RegisterPostProcessor(desc, func(msg proto.Message, seed uint32) { calls1++ })
	m.RegisterPostProcessor(desc, func(msg proto.Message, seed uint32) { calls2++ })
	for i := 0; i < iters; i++ {
		calls1, calls2 = 0, 0
		msg := testutil.ParseMessage(t, testutil.Person, `id: 1 name: "x"`)
		m.Mutate(msg, 10)
		require.Equal(t, 1, calls1)
		require.Equal(t, 1, calls2)

		calls1, calls2 = 0, 0
		m.CrossOver(msg, msg)
		require.Equal(t, 1, calls1)
		require.Equal(t, 1, calls2)
	}
	assert.Equal(t, 4*iters, m.Stats().Get("post-processor calls").Val())
}

func TestPostProcessorNested(t *testing.T) {
	m, iters := initTest(t)
	calls := 0
	m.RegisterPostProcessor(testutil.MessageDescriptor(t, testutil.Nested), func(msg proto.Message, seed uint32) {
		require.Equal(t, protoreflect.FullName(testutil.Nested), msg.ProtoReflect().Descriptor().FullName())
		calls++
	})
	msg := sampleMessage(t)
	for i := 0; i < iters; i++ {
		calls = 0
		m.Mutate(msg, 100)
		require.Equal(t, countMessages(msg, testutil.Nested), calls)
		if proto.Size(msg) > 10000 {
			msg = sampleMessage(t)
		}
	}
}

func TestPostProcessorModifies(t *testing.T) {
	m, iters := initTest(t)
	desc := testutil.MessageDescriptor(t, testutil.Person)
	name := desc.Fields().ByName("name")
	m.RegisterPostProcessor(desc, func(msg proto.Message, seed uint32) {
		msg.ProtoReflect().Set(name, protoreflect.ValueOfString("fixed"))
	})
	for i := 0; i < iters; i++ {
		msg := testutil.ParseMessage(t, testutil.Person, `id: 1 name: "x"`)
		m.Mutate(msg, 100)
		require.Equal(t, "fixed", msg.Get(name).String())
		res := m.CrossOver(msg, testutil.ParseMessage(t, testutil.Person, `id: 2`))
		require.Equal(t, "fixed", res.ProtoReflect().Get(name).String())
	}
}

func TestPostProcessorSeeds(t *testing.T) {
	seed := testutil.RandSeed(t)
	run := func() []uint32 {
		var seeds []uint32
		m := New(seed)
		m.RegisterPostProcessor(testutil.MessageDescriptor(t, testutil.Nested), func(msg proto.Message, seed uint32) {
			seeds = append(seeds, seed)
		})
		msg := sampleMessage(t)
		for i := 0; i < 20; i++ {
			m.Mutate(msg, 100)
		}
		return seeds
	}
	seeds := run()
	require.NotEmpty(t, seeds)
	assert.Equal(t, seeds, run())
}

func TestPostProcessorUnrelatedType(t *testing.T) {
	seed := testutil.RandSeed(t)
	m := New(seed)
	m.RegisterPostProcessor(testutil.MessageDescriptor(t, testutil.Loop), func(msg proto.Message, seed uint32) {
		t.Fatalf("called for %v", msg.ProtoReflect().Descriptor().FullName())
	})
	msg := sampleMessage(t)
	for i := 0; i < 100; i++ {
		m.Mutate(msg, 100)
	}
	assert.Panics(t, func() { m.RegisterPostProcessor(msg.Descriptor(), nil) })
}
