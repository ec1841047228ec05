// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// PostProcessor adjusts a message after mutation or crossover, e.g. to restore
// invariants the schema can't express or to mutate some fields in a fuzzer specific way.
// Implementations must take all randomness from seed to keep results reproducible.
type PostProcessor func(msg proto.Message, seed uint32)

// RegisterPostProcessor registers fn to be called for every message of type desc
// in results of Mutate and CrossOver, including nested messages.
// Several callbacks may be registered for the same type; all of them are called
// in registration order.
func (m *Mutator) RegisterPostProcessor(desc protoreflect.MessageDescriptor, fn PostProcessor) {
	if fn == nil {
		panic("nil post-processor")
	}
	name := desc.FullName()
	m.postProcessors[name] = append(m.postProcessors[name], fn)
}

// applyPostProcessing calls registered callbacks top-down: a message is processed
// before its submessages, so submessages added by a callback are processed too.
func (m *Mutator) applyPostProcessing(root protoreflect.Message) {
	if len(m.postProcessors) == 0 {
		return
	}
	foreachMessage(root, 0, m.cfg.MaxDepth, func(msg protoreflect.Message, depth int) {
		for _, fn := range m.postProcessors[msg.Descriptor().FullName()] {
			fn(msg.Interface(), m.r.Uint32())
			m.stats.postProcessed.Add(1)
		}
	})
}
