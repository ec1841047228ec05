// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"fmt"

	"github.com/google/protomutator/pkg/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// CrossOver returns a new message that combines fields of a and b.
// Both must be of the same message type; a and b are not modified.
// Every scalar of the result comes from one of the parents, submessages present
// in both parents are crossed over recursively, list elements are taken from
// either parent at the same index (sometimes in whole blocks), and oneofs take
// the active case of one parent.
// Unknown fields and extensions are not carried over.
func (m *Mutator) CrossOver(a, b proto.Message) proto.Message {
	ra, rb := a.ProtoReflect(), b.ProtoReflect()
	if ra.Descriptor().FullName() != rb.Descriptor().FullName() {
		panic(fmt.Sprintf("crossover of different message types %v and %v",
			ra.Descriptor().FullName(), rb.Descriptor().FullName()))
	}
	res := ra.New()
	m.crossOver(res, ra, rb, m.cfg.MaxDepth)
	m.initializeAndTrim(res, m.cfg.MaxDepth)
	m.applyPostProcessing(res)
	size := proto.Size(res.Interface())
	m.stats.crossOverCalls.Add(1)
	m.stats.resultSize.Add(size)
	if log.V(2) {
		log.Logf(2, "crossed over %v: size %v + %v -> %v", ra.Descriptor().FullName(),
			proto.Size(a), proto.Size(b), size)
	}
	return res.Interface()
}

// crossOver fills empty dst from a and b. Below depth levels whole subtrees
// are copied from one of the parents.
func (m *Mutator) crossOver(dst, a, b protoreflect.Message, depth int) {
	fields := dst.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if od := realOneof(fd); od != nil {
			if od.Fields().Get(0) == fd {
				m.crossOverOneof(dst, a, b, od)
			}
			continue
		}
		switch {
		case fd.IsList():
			m.crossOverList(dst, a, b, fd)
		case fd.IsMap():
			m.crossOverMap(dst, a, b, fd)
		default:
			m.crossOverField(dst, a, b, fd, depth)
		}
	}
}

func (m *Mutator) crossOverField(dst, a, b protoreflect.Message, fd protoreflect.FieldDescriptor, depth int) {
	hasA, hasB := a.Has(fd), b.Has(fd)
	switch {
	case hasA && hasB:
		if fd.Message() != nil && depth > 0 {
			m.crossOver(dst.Mutable(fd).Message(), a.Get(fd).Message(), b.Get(fd).Message(), depth-1)
			return
		}
		src := a
		if m.r.Bin() {
			src = b
		}
		dst.Set(fd, cloneValue(fd, src.Get(fd)))
	case hasA || hasB:
		src := a
		if hasB {
			src = b
		}
		if (m.cfg.KeepInitialized && isRequired(fd)) || m.r.Bin() {
			dst.Set(fd, cloneValue(fd, src.Get(fd)))
		}
	}
}

func (m *Mutator) crossOverOneof(dst, a, b protoreflect.Message, od protoreflect.OneofDescriptor) {
	src := a
	if m.r.Bin() {
		src = b
	}
	if fd := src.WhichOneof(od); fd != nil {
		dst.Set(fd, cloneValue(fd, src.Get(fd)))
	}
}

// crossOverList takes element i of the result from element i of either parent.
// Sometimes a whole block of elements is taken from the same parent.
// Elements missing in the chosen parent are skipped.
func (m *Mutator) crossOverList(dst, a, b protoreflect.Message, fd protoreflect.FieldDescriptor) {
	la, lb := a.Get(fd).List(), b.Get(fd).List()
	n := max(la.Len(), lb.Len())
	if n == 0 {
		return
	}
	out := dst.Mutable(fd).List()
	for i := 0; i < n; {
		width := 1
		if n-i > 1 && m.r.OneOf(4) {
			width = 1 + m.r.Intn(n-i)
		}
		src := la
		if m.r.Bin() {
			src = lb
		}
		for j := i; j < i+width && j < src.Len(); j++ {
			out.Append(cloneValue(fd, src.Get(j)))
		}
		i += width
	}
}

// crossOverMap takes entries present in both parents from a random parent,
// and entries present in one parent with probability 1/2.
func (m *Mutator) crossOverMap(dst, a, b protoreflect.Message, fd protoreflect.FieldDescriptor) {
	ma, mb := a.Get(fd).Map(), b.Get(fd).Map()
	seen := make(map[any]bool)
	var keys []protoreflect.MapKey
	for _, mp := range []protoreflect.Map{ma, mb} {
		mp.Range(func(key protoreflect.MapKey, _ protoreflect.Value) bool {
			if !seen[key.Interface()] {
				seen[key.Interface()] = true
				keys = append(keys, key)
			}
			return true
		})
	}
	if len(keys) == 0 {
		return
	}
	sortMapKeys(keys)
	valFd := fd.MapValue()
	out := dst.Mutable(fd).Map()
	for _, key := range keys {
		hasA, hasB := ma.Has(key), mb.Has(key)
		src := ma
		switch {
		case hasA && hasB:
			if m.r.Bin() {
				src = mb
			}
		case !m.r.Bin():
			continue
		case hasB:
			src = mb
		}
		out.Set(key, cloneValue(valFd, src.Get(key)))
	}
}
