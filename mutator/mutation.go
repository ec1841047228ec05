// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"github.com/google/protomutator/pkg/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	// Max number of attempts to find an applicable mutation in one Mutate call.
	maxMutateAttempts = 100
	// One out of N times an open enum gets an undeclared value.
	openEnumRatio = 20
	// Larger size hints are treated as this one, so budget arithmetic can't overflow.
	maxSizeHint = 1 << 40
)

func clampHint(hint int) int {
	return min(hint, maxSizeHint)
}

// Mutate makes a random incremental change in msg.
// sizeIncreaseHint is the approximate number of bytes which can be added to the message.
// It does not guarantee that the real size increase stays below the value,
// it only changes probabilities of mutations that cause growth.
// Callers that enforce a hard limit should check the result and repeat the mutation.
func (m *Mutator) Mutate(msg proto.Message, sizeIncreaseHint int) {
	root := msg.ProtoReflect()
	m.initializeAndTrim(root, m.cfg.MaxDepth)
	ctx := &mutation{
		m:     m,
		r:     m.r,
		root:  root,
		hint:  clampHint(sizeIncreaseHint),
		start: proto.Size(msg),
	}
	ctx.budget = ctx.hint
	applied := 0
	for stop, ok, attempt := false, false, 0; !stop && attempt < maxMutateAttempts; attempt++ {
		ok = ctx.mutateOnce()
		if ok {
			applied++
		}
		stop = ok && m.r.OneOf(3)
	}
	m.initializeAndTrim(root, m.cfg.MaxDepth)
	m.applyPostProcessing(root)
	size := proto.Size(msg)
	m.stats.mutateCalls.Add(1)
	m.stats.resultSize.Add(size)
	if log.V(2) {
		log.Logf(2, "mutated %v: %v mutations, size %v -> %v (hint %v)",
			root.Descriptor().FullName(), applied, ctx.start, size, sizeIncreaseHint)
	}
}

type mutation struct {
	m     *Mutator
	r     *Rand
	root  protoreflect.Message
	hint  int
	start int
	// budget is the hint minus growth of the message so far. Can be negative.
	budget int
	slots  []slot
}

// mutateOnce applies one mutation to a random slot of the tree.
// It returns false if the chosen slot had nothing applicable.
func (ctx *mutation) mutateOnce() bool {
	ctx.slots = collectSlots(ctx.root, 0, ctx.m.cfg.MaxDepth)
	if len(ctx.slots) == 0 {
		return false
	}
	s := ctx.slots[ctx.r.Intn(len(ctx.slots))]
	budget := slotBudget(ctx.budget, s.depth)
	var act action
	var ok bool
	switch {
	case s.od != nil:
		act, ok = ctx.mutateOneof(s, budget)
	case s.fd.IsMap():
		act, ok = ctx.mutateMap(s, budget)
	case s.fd.IsList():
		act, ok = ctx.mutateList(s, budget)
	case s.fd.Message() != nil:
		act, ok = ctx.mutateMessageField(s, budget)
	default:
		act, ok = ctx.mutateScalarField(s, budget)
	}
	if !ok {
		return false
	}
	ctx.budget = ctx.hint - (proto.Size(ctx.root.Interface()) - ctx.start)
	ctx.m.stats.actions[act].Add(1)
	if log.V(3) {
		log.Logf(3, "%v: %v", act, s.String())
	}
	return true
}

// slotBudget halves the size budget with every level of nesting.
func slotBudget(budget, depth int) int {
	return budget >> min(depth, 30)
}

// growWeight is the relative weight of actions that add elements to a container of size n.
// It is at least 1 (growth is discouraged, never forbidden) and shrinks as the budget
// runs out and as the container grows.
func growWeight(budget, n int) int {
	w := 1
	if budget > 0 {
		w += 16 * budget / (budget + 64)
	}
	return max(1, w/(1+n/4))
}

// shrinkWeight is the relative weight of actions that remove data.
func shrinkWeight(budget int) int {
	switch {
	case budget < 0:
		return 12
	case budget == 0:
		return 4
	default:
		return 2
	}
}

func (ctx *mutation) canClear(fd protoreflect.FieldDescriptor) bool {
	return !ctx.m.cfg.KeepInitialized || !isRequired(fd)
}

func (ctx *mutation) canCreate(s slot) bool {
	return s.depth < ctx.m.cfg.MaxDepth
}

func (ctx *mutation) mutateScalarField(s slot, budget int) (action, bool) {
	msg, fd := s.msg, s.fd
	if fd.HasPresence() && !msg.Has(fd) {
		if budget <= 0 && !ctx.r.OneOf(4) {
			return 0, false
		}
		msg.Set(fd, ctx.newScalar(fd, budget))
		return actSetField, true
	}
	clearWeight := 0
	if fd.HasPresence() && ctx.canClear(fd) {
		clearWeight = shrinkWeight(budget) / 2
	}
	switch ctx.r.Choose(clearWeight, 1, 10) {
	case 0:
		msg.Clear(fd)
		return actClearField, true
	case 1:
		if ctx.copyField(s) {
			return actCopyField, true
		}
		return 0, false
	default:
		v, act := ctx.mutateScalar(fd, msg.Get(fd), budget)
		msg.Set(fd, v)
		return act, true
	}
}

func (ctx *mutation) mutateMessageField(s slot, budget int) (action, bool) {
	msg, fd := s.msg, s.fd
	if !msg.Has(fd) {
		if !ctx.canCreate(s) || (budget <= 0 && !ctx.r.OneOf(8)) {
			return 0, false
		}
		msg.Set(fd, msg.NewField(fd))
		return actCreateMessage, true
	}
	// The contents of the submessage are mutated through its own slots.
	clearWeight := 0
	if ctx.canClear(fd) {
		clearWeight = shrinkWeight(budget)
	}
	switch ctx.r.Choose(clearWeight, 2, 1) {
	case 0:
		msg.Clear(fd)
		return actClearField, true
	case 1:
		if ctx.copyField(s) {
			return actCopyField, true
		}
		return 0, false
	default:
		msg.Set(fd, msg.NewField(fd))
		return actResetDefault, true
	}
}

// copyField replaces the value of s with a value of the same type
// found elsewhere in the tree.
func (ctx *mutation) copyField(dst slot) bool {
	src, ok := ctx.copySource(dst)
	if !ok {
		return false
	}
	dst.msg.Set(dst.fd, src)
	return true
}

// copySource picks a clone of a singular field or a list element of the same type as
// elements of dst.fd. Fields of dst itself are not considered.
func (ctx *mutation) copySource(dst slot) (protoreflect.Value, bool) {
	var candidates []protoreflect.Value
	for _, s := range ctx.slots {
		if s.fd == nil || s.msg == dst.msg && s.fd == dst.fd || !sameElemType(s.fd, dst.fd) {
			continue
		}
		// Submessages are copied only upwards, so copies never make the tree deeper.
		if dst.fd.Message() != nil && s.depth < dst.depth {
			continue
		}
		if s.fd.IsList() {
			list := s.msg.Get(s.fd).List()
			for i := 0; i < list.Len(); i++ {
				candidates = append(candidates, list.Get(i))
			}
		} else if s.msg.Has(s.fd) {
			candidates = append(candidates, s.msg.Get(s.fd))
		}
	}
	if len(candidates) == 0 {
		return protoreflect.Value{}, false
	}
	return cloneValue(dst.fd, candidates[ctx.r.Intn(len(candidates))]), true
}

func (ctx *mutation) mutateList(s slot, budget int) (action, bool) {
	msg, fd := s.msg, s.fd
	isMsg := fd.Message() != nil
	list := msg.Mutable(fd).List()
	n := list.Len()
	mutate, insert, remove, dup := 0, growWeight(budget, n), 0, 0
	if n != 0 {
		if !isMsg {
			mutate = 8
		}
		remove = shrinkWeight(budget)
		dup = 2
	}
	if isMsg && !ctx.canCreate(s) {
		insert = 0
	}
	switch ctx.r.Choose(mutate, insert, remove, dup) {
	case 0:
		if mutate == 0 {
			return 0, false
		}
		i := ctx.r.Intn(n)
		v, _ := ctx.mutateScalar(fd, list.Get(i), budget)
		list.Set(i, v)
		return actListMutate, true
	case 1:
		if insert == 0 {
			return 0, false
		}
		var v protoreflect.Value
		if isMsg {
			v = list.NewElement()
		} else {
			v = ctx.newScalar(fd, budget)
		}
		pos := ctx.r.Intn(n + 1)
		list.Append(v)
		for i := n; i > pos; i-- {
			list.Set(i, list.Get(i-1))
		}
		list.Set(pos, v)
		return actListInsert, true
	case 2:
		pos := ctx.r.Intn(n)
		for i := pos; i < n-1; i++ {
			list.Set(i, list.Get(i+1))
		}
		list.Truncate(n - 1)
		return actListRemove, true
	default:
		i := ctx.r.Intn(n)
		v, ok := ctx.copySource(s)
		if !ok {
			return 0, false
		}
		list.Set(i, v)
		return actCopyField, true
	}
}

func (ctx *mutation) mutateMap(s slot, budget int) (action, bool) {
	msg, fd := s.msg, s.fd
	valFd := fd.MapValue()
	isMsg := valFd.Message() != nil
	mp := msg.Mutable(fd).Map()
	keys := sortedMapKeys(mp)
	n := len(keys)
	mutate, insert, remove := 0, growWeight(budget, n), 0
	if n != 0 {
		if !isMsg {
			mutate = 8
		}
		remove = shrinkWeight(budget)
	}
	if isMsg && !ctx.canCreate(s) {
		insert = 0
	}
	switch ctx.r.Choose(mutate, insert, remove) {
	case 0:
		if mutate == 0 {
			return 0, false
		}
		key := keys[ctx.r.Intn(n)]
		v, _ := ctx.mutateScalar(valFd, mp.Get(key), budget)
		mp.Set(key, v)
		return actMapMutate, true
	case 1:
		if insert == 0 {
			return 0, false
		}
		key := ctx.newScalar(fd.MapKey(), budget).MapKey()
		if isMsg {
			mp.Set(key, mp.NewValue())
		} else {
			mp.Set(key, ctx.newScalar(valFd, budget))
		}
		return actMapInsert, true
	default:
		mp.Clear(keys[ctx.r.Intn(n)])
		return actMapRemove, true
	}
}

func (ctx *mutation) mutateOneof(s slot, budget int) (action, bool) {
	msg, od := s.msg, s.od
	fields := od.Fields()
	active := msg.WhichOneof(od)
	if active == nil || (fields.Len() > 1 && ctx.r.OneOf(3)) {
		if active != nil && ctx.r.OneOf(8) {
			msg.Clear(active)
			return actOneofClear, true
		}
		idx := ctx.r.Intn(fields.Len())
		if active != nil {
			idx = (oneofIndex(od, active) + 1 + ctx.r.Intn(fields.Len()-1)) % fields.Len()
		}
		fd := fields.Get(idx)
		var v protoreflect.Value
		if fd.Message() != nil {
			if !ctx.canCreate(s) {
				return 0, false
			}
			v = msg.NewField(fd)
		} else {
			v = ctx.newScalar(fd, budget)
		}
		if active != nil {
			msg.Clear(active)
		}
		msg.Set(fd, v)
		return actOneofSwitch, true
	}
	if active.Message() != nil {
		// Contents of the active submessage are mutated through its own slots.
		if !ctx.r.OneOf(ctx.m.cfg.DefaultBiasRatio) {
			return 0, false
		}
		msg.Set(active, msg.NewField(active))
		return actResetDefault, true
	}
	v, act := ctx.mutateScalar(active, msg.Get(active), budget)
	msg.Set(active, v)
	return act, true
}

func oneofIndex(od protoreflect.OneofDescriptor, fd protoreflect.FieldDescriptor) int {
	fields := od.Fields()
	for i := 0; i < fields.Len(); i++ {
		if fields.Get(i) == fd {
			return i
		}
	}
	panic("field " + string(fd.FullName()) + " is not in oneof " + string(od.FullName()))
}

// mutateScalar returns a mutated copy of v, or with 1/DefaultBiasRatio probability the default.
func (ctx *mutation) mutateScalar(fd protoreflect.FieldDescriptor, v protoreflect.Value,
	budget int) (protoreflect.Value, action) {
	if ctx.r.OneOf(ctx.m.cfg.DefaultBiasRatio) {
		return scalarDefault(fd), actResetDefault
	}
	return ctx.m.mutateValue(fd, v, budget), actMutateScalar
}

// newScalar returns a value for a field that was not set before.
func (ctx *mutation) newScalar(fd protoreflect.FieldDescriptor, budget int) protoreflect.Value {
	return ctx.m.mutateValue(fd, scalarDefault(fd), budget)
}

// mutateValue applies the field mutator matching the kind of fd to v.
func (m *Mutator) mutateValue(fd protoreflect.FieldDescriptor, v protoreflect.Value,
	budget int) protoreflect.Value {
	r, fm := m.r, m.fields
	switch fd.Kind() {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return protoreflect.ValueOfInt32(fm.MutateInt32(r, int32(v.Int())))
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return protoreflect.ValueOfInt64(fm.MutateInt64(r, v.Int()))
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return protoreflect.ValueOfUint32(fm.MutateUint32(r, uint32(v.Uint())))
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return protoreflect.ValueOfUint64(fm.MutateUint64(r, v.Uint()))
	case protoreflect.FloatKind:
		return protoreflect.ValueOfFloat32(fm.MutateFloat(r, float32(v.Float())))
	case protoreflect.DoubleKind:
		return protoreflect.ValueOfFloat64(fm.MutateDouble(r, v.Float()))
	case protoreflect.BoolKind:
		return protoreflect.ValueOfBool(fm.MutateBool(r, v.Bool()))
	case protoreflect.EnumKind:
		return protoreflect.ValueOfEnum(m.mutateEnum(fd.Enum(), v.Enum()))
	case protoreflect.StringKind:
		return protoreflect.ValueOfString(fm.MutateString(r, v.String(), budget))
	case protoreflect.BytesKind:
		return protoreflect.ValueOfBytes(fm.MutateBytes(r, v.Bytes(), budget))
	}
	panic("mutateValue for " + fd.Kind().String())
}

func (m *Mutator) mutateEnum(ed protoreflect.EnumDescriptor, v protoreflect.EnumNumber) protoreflect.EnumNumber {
	values := ed.Values()
	if values.Len() == 0 {
		return v
	}
	if !ed.IsClosed() && m.r.OneOf(openEnumRatio) {
		return protoreflect.EnumNumber(m.fields.MutateInt32(m.r, int32(v)))
	}
	idx := -1
	if ev := values.ByNumber(v); ev != nil {
		idx = ev.Index()
	}
	idx = m.fields.MutateEnum(m.r, idx, values.Len())
	if idx < 0 || idx >= values.Len() {
		// Misbehaving custom field mutator.
		idx = 0
	}
	return values.Get(idx).Number()
}
