// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

// initializeAndTrim clears optional submessages nested deeper than depth levels
// and, if KeepInitialized is set, sets all unset required fields.
// Required scalars get a mutated default value, required submessages are created
// empty and initialized recursively. Required submessages at the depth limit are
// neither created nor descended into, so a type that requires itself stays
// uninitialized at the bottom level instead of growing forever.
func (m *Mutator) initializeAndTrim(msg protoreflect.Message, depth int) {
	fields := msg.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		required := isRequired(fd)
		if m.cfg.KeepInitialized && required && !msg.Has(fd) {
			switch {
			case fd.Message() == nil:
				msg.Set(fd, m.mutateValue(fd, scalarDefault(fd), 0))
			case depth > 0:
				msg.Set(fd, msg.NewField(fd))
			}
		}
		if !isMessage(fd) {
			continue
		}
		if depth <= 0 {
			if !required {
				msg.Clear(fd)
			}
			continue
		}
		if !msg.Has(fd) {
			continue
		}
		switch {
		case fd.IsMap():
			mp := msg.Mutable(fd).Map()
			for _, key := range sortedMapKeys(mp) {
				m.initializeAndTrim(mp.Mutable(key).Message(), depth-1)
			}
		case fd.IsList():
			list := msg.Mutable(fd).List()
			for j := 0; j < list.Len(); j++ {
				m.initializeAndTrim(list.Get(j).Message(), depth-1)
			}
		default:
			m.initializeAndTrim(msg.Mutable(fd).Message(), depth-1)
		}
	}
}
