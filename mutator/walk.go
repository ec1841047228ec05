// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"bytes"
	"sort"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// slot is a place in the message tree that can be mutated:
// either a non-oneof field or a whole oneof group of one message.
type slot struct {
	msg   protoreflect.Message
	fd    protoreflect.FieldDescriptor
	od    protoreflect.OneofDescriptor
	depth int
}

func (s *slot) String() string {
	if s.od != nil {
		return string(s.od.FullName())
	}
	return string(s.fd.FullName())
}

// collectSlots returns slots of msg and of all submessages up to maxDepth.
// msg itself is at depth.
func collectSlots(msg protoreflect.Message, depth, maxDepth int) []slot {
	var slots []slot
	foreachMessage(msg, depth, maxDepth, func(msg protoreflect.Message, depth int) {
		fields := msg.Descriptor().Fields()
		for i := 0; i < fields.Len(); i++ {
			fd := fields.Get(i)
			if od := realOneof(fd); od != nil {
				if od.Fields().Get(0) == fd {
					slots = append(slots, slot{msg: msg, od: od, depth: depth})
				}
				continue
			}
			slots = append(slots, slot{msg: msg, fd: fd, depth: depth})
		}
	})
	return slots
}

// foreachMessage calls fn for msg and all present submessages in a fixed order
// (fields in declaration order, list elements by index, map entries by sorted key).
// Messages deeper than maxDepth are not visited.
func foreachMessage(msg protoreflect.Message, depth, maxDepth int,
	fn func(msg protoreflect.Message, depth int)) {
	fn(msg, depth)
	if depth >= maxDepth {
		return
	}
	fields := msg.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if !isMessage(fd) || !msg.Has(fd) {
			continue
		}
		switch {
		case fd.IsMap():
			mp := msg.Mutable(fd).Map()
			for _, key := range sortedMapKeys(mp) {
				foreachMessage(mp.Mutable(key).Message(), depth+1, maxDepth, fn)
			}
		case fd.IsList():
			list := msg.Mutable(fd).List()
			for j := 0; j < list.Len(); j++ {
				foreachMessage(list.Get(j).Message(), depth+1, maxDepth, fn)
			}
		default:
			foreachMessage(msg.Mutable(fd).Message(), depth+1, maxDepth, fn)
		}
	}
}

// isMessage says if fd holds messages (for maps: if values are messages).
func isMessage(fd protoreflect.FieldDescriptor) bool {
	if fd.IsMap() {
		return fd.MapValue().Message() != nil
	}
	return fd.Message() != nil
}

// realOneof returns the oneof fd belongs to, ignoring synthetic oneofs of proto3 optional fields.
func realOneof(fd protoreflect.FieldDescriptor) protoreflect.OneofDescriptor {
	od := fd.ContainingOneof()
	if od == nil || od.IsSynthetic() {
		return nil
	}
	return od
}

func isRequired(fd protoreflect.FieldDescriptor) bool {
	return fd.Cardinality() == protoreflect.Required
}

// scalarDefault returns the default value for a scalar field or list/map element.
func scalarDefault(fd protoreflect.FieldDescriptor) protoreflect.Value {
	if !fd.IsList() {
		if v := fd.Default(); v.IsValid() {
			return cloneValue(fd, v)
		}
	}
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return protoreflect.ValueOfBool(false)
	case protoreflect.EnumKind:
		if values := fd.Enum().Values(); values.Len() != 0 {
			return protoreflect.ValueOfEnum(values.Get(0).Number())
		}
		return protoreflect.ValueOfEnum(0)
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return protoreflect.ValueOfInt32(0)
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return protoreflect.ValueOfInt64(0)
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return protoreflect.ValueOfUint32(0)
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return protoreflect.ValueOfUint64(0)
	case protoreflect.FloatKind:
		return protoreflect.ValueOfFloat32(0)
	case protoreflect.DoubleKind:
		return protoreflect.ValueOfFloat64(0)
	case protoreflect.StringKind:
		return protoreflect.ValueOfString("")
	case protoreflect.BytesKind:
		return protoreflect.ValueOfBytes(nil)
	}
	panic("scalarDefault for " + fd.Kind().String())
}

// cloneValue returns a deep copy of v that shares no memory with the original,
// so it can be stored in another place of a tree.
func cloneValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) protoreflect.Value {
	switch {
	case fd.Message() != nil:
		return protoreflect.ValueOfMessage(proto.Clone(v.Message().Interface()).ProtoReflect())
	case fd.Kind() == protoreflect.BytesKind:
		return protoreflect.ValueOfBytes(bytes.Clone(v.Bytes()))
	}
	return v
}

// sameElemType says if a value of a singular field or a list element of fd1
// can be stored as a value or a list element of fd2.
func sameElemType(fd1, fd2 protoreflect.FieldDescriptor) bool {
	if fd1.Kind() != fd2.Kind() || fd1.IsMap() || fd2.IsMap() {
		return false
	}
	switch fd1.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return fd1.Message().FullName() == fd2.Message().FullName()
	case protoreflect.EnumKind:
		return fd1.Enum().FullName() == fd2.Enum().FullName()
	}
	return true
}

// sortedMapKeys returns keys of mp in a deterministic order.
func sortedMapKeys(mp protoreflect.Map) []protoreflect.MapKey {
	keys := make([]protoreflect.MapKey, 0, mp.Len())
	mp.Range(func(key protoreflect.MapKey, _ protoreflect.Value) bool {
		keys = append(keys, key)
		return true
	})
	sortMapKeys(keys)
	return keys
}

func sortMapKeys(keys []protoreflect.MapKey) {
	sort.Slice(keys, func(i, j int) bool {
		return lessMapKey(keys[i], keys[j])
	})
}

func lessMapKey(a, b protoreflect.MapKey) bool {
	switch av := a.Interface().(type) {
	case bool:
		return !av && b.Bool()
	case int32, int64:
		return a.Int() < b.Int()
	case uint32, uint64:
		return a.Uint() < b.Uint()
	case string:
		return av < b.String()
	}
	panic("unexpected map key type")
}
