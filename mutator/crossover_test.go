// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/protomutator/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/testing/protocmp"
)

func TestCrossOverNames(t *testing.T) {
	alice := testutil.ParseMessage(t, testutil.Person, `id: 1 name: "Alice"`)
	bob := testutil.ParseMessage(t, testutil.Person, `id: 1 name: "Bob"`)
	res := New(7).CrossOver(alice, bob)
	name := res.ProtoReflect().Get(field(res, "name")).String()
	assert.Contains(t, []string{"Alice", "Bob"}, name)

	m, iters := initTest(t)
	seen := make(map[string]bool)
	for i := 0; i < iters; i++ {
		res := m.CrossOver(alice, bob)
		name := res.ProtoReflect().Get(field(res, "name")).String()
		require.Contains(t, []string{"Alice", "Bob"}, name)
		seen[name] = true
	}
	if iters >= 100 {
		assert.Len(t, seen, 2)
	}
}

const (
	parentA = `
opt_int32: 1 opt_int64: 2 opt_uint32: 3 opt_uint64: 4 opt_sint32: -5 opt_sint64: -6
opt_fixed32: 7 opt_fixed64: 8 opt_sfixed32: -9 opt_sfixed64: -10 opt_float: 1.25 opt_double: 2.5
opt_bool: true opt_string: "a" opt_bytes: "aa" opt_color: RED req_id: 100 opt_int_default: 1
req_nested { a: 1 b: "nested a" }
`
	parentB = `
opt_int32: 11 opt_int64: 12 opt_uint32: 13 opt_uint64: 14 opt_sint32: -15 opt_sint64: -16
opt_fixed32: 17 opt_fixed64: 18 opt_sfixed32: -19 opt_sfixed64: -20 opt_float: 3.75 opt_double: 4.5
opt_bool: false opt_string: "b" opt_bytes: "bb" opt_color: BLUE req_id: 200 opt_int_default: 2
req_nested { a: 2 b: "nested b" }
`
)

func TestCrossOverValueOrigin(t *testing.T) {
	m, iters := initTest(t)
	a := testutil.ParseMessage(t, testutil.AllTypes, parentA)
	b := testutil.ParseMessage(t, testutil.AllTypes, parentB)
	var check func(res, a, b protoreflect.Message)
	check = func(res, a, b protoreflect.Message) {
		fields := res.Descriptor().Fields()
		for i := 0; i < fields.Len(); i++ {
			fd := fields.Get(i)
			if fd.IsList() || fd.IsMap() || realOneof(fd) != nil || !a.Has(fd) || !b.Has(fd) {
				continue
			}
			require.True(t, res.Has(fd), "field %v is lost", fd.Name())
			if fd.Message() != nil {
				check(res.Get(fd).Message(), a.Get(fd).Message(), b.Get(fd).Message())
				continue
			}
			v := res.Get(fd)
			if !v.Equal(a.Get(fd)) && !v.Equal(b.Get(fd)) {
				t.Fatalf("field %v = %v, parents have %v and %v", fd.Name(), v, a.Get(fd), b.Get(fd))
			}
		}
	}
	for i := 0; i < iters; i++ {
		res := m.CrossOver(a, b)
		check(res.ProtoReflect(), a.ProtoReflect(), b.ProtoReflect())
	}
}

func TestCrossOverPure(t *testing.T) {
	m, iters := initTest(t)
	a := sampleMessage(t)
	b := testutil.ParseMessage(t, testutil.AllTypes, parentB)
	dataA, dataB := testutil.Serialize(t, a), testutil.Serialize(t, b)
	for i := 0; i < iters; i++ {
		res := m.CrossOver(a, b)
		require.NoError(t, proto.CheckInitialized(res))
		// The result must not share memory with parents.
		m.Mutate(res, 100)
		require.Equal(t, dataA, testutil.Serialize(t, a))
		require.Equal(t, dataB, testutil.Serialize(t, b))
	}
}

func TestCrossOverSame(t *testing.T) {
	m, iters := initTest(t)
	a := sampleMessage(t)
	for i := 0; i < iters; i++ {
		res := m.CrossOver(a, clone(a))
		if diff := cmp.Diff(a, res, protocmp.Transform()); diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestCrossOverList(t *testing.T) {
	m, iters := initTest(t)
	a := testutil.ParseMessage(t, testutil.AllTypes, `req_id: 1 req_nested { a: 1 } rep_int32: [1, 2, 3, 4, 5]`)
	b := testutil.ParseMessage(t, testutil.AllTypes, `req_id: 1 req_nested { a: 1 } rep_int32: [10, 20, 30, 40, 50]`)
	fd := field(a, "rep_int32")
	fromA, fromB := false, false
	for i := 0; i < iters; i++ {
		res := m.CrossOver(a, b).ProtoReflect().Get(fd).List()
		require.Equal(t, 5, res.Len())
		for j := 0; j < res.Len(); j++ {
			v := res.Get(j).Int()
			require.Contains(t, []int64{int64(j + 1), int64(10 * (j + 1))}, v)
			fromA = fromA || v < 10
			fromB = fromB || v >= 10
		}
	}
	assert.True(t, fromA)
	assert.True(t, fromB)

	// Elements beyond the end of the shorter parent may be dropped, but never invented.
	short := testutil.ParseMessage(t, testutil.AllTypes, `req_id: 1 req_nested { a: 1 } rep_int32: [10]`)
	for i := 0; i < iters; i++ {
		res := m.CrossOver(a, short).ProtoReflect().Get(fd).List()
		require.True(t, res.Len() >= 1 && res.Len() <= 5, "len %v", res.Len())
		for j := 0; j < res.Len(); j++ {
			require.Contains(t, []int64{1, 2, 3, 4, 5, 10}, res.Get(j).Int())
		}
	}
}

func TestCrossOverMap(t *testing.T) {
	m, iters := initTest(t)
	a := testutil.ParseMessage(t, testutil.AllTypes, `req_id: 1 req_nested { a: 1 }
		labels { key: "both" value: 1 } labels { key: "a" value: 2 }`)
	b := testutil.ParseMessage(t, testutil.AllTypes, `req_id: 1 req_nested { a: 1 }
		labels { key: "both" value: 10 } labels { key: "b" value: 20 }`)
	fd := field(a, "labels")
	allowed := map[string][]int64{
		"both": {1, 10},
		"a":    {2},
		"b":    {20},
	}
	for i := 0; i < iters; i++ {
		res := m.CrossOver(a, b).ProtoReflect().Get(fd).Map()
		require.True(t, res.Has(protoreflect.ValueOfString("both").MapKey()))
		res.Range(func(key protoreflect.MapKey, v protoreflect.Value) bool {
			require.Contains(t, allowed[key.String()], v.Int(), "key %v", key)
			return true
		})
	}
}

func TestCrossOverOneof(t *testing.T) {
	m, iters := initTest(t)
	a := testutil.ParseMessage(t, testutil.AllTypes, `req_id: 1 req_nested { a: 1 } oneof_int32: 42`)
	b := testutil.ParseMessage(t, testutil.AllTypes, `req_id: 1 req_nested { a: 1 } oneof_nested { a: 7 }`)
	od := a.Descriptor().Oneofs().ByName("choice")
	for i := 0; i < iters; i++ {
		res := m.CrossOver(a, b).ProtoReflect()
		fd := res.WhichOneof(od)
		require.NotNil(t, fd)
		switch fd.Name() {
		case "oneof_int32":
			require.Equal(t, int64(42), res.Get(fd).Int())
		case "oneof_nested":
			require.Equal(t, int64(7), res.Get(fd).Message().Get(fd.Message().Fields().ByName("a")).Int())
		default:
			t.Fatalf("unexpected oneof case %v", fd.Name())
		}
	}
}

func TestCrossOverKeepsInitialized(t *testing.T) {
	m, iters := initTest(t)
	withID := testutil.ParseMessage(t, testutil.Person, `id: 5 name: "x"`)
	withoutID := testutil.ParseMessage(t, testutil.Person, `name: "y"`)
	for i := 0; i < iters; i++ {
		res := m.CrossOver(withoutID, withID)
		require.True(t, IsInitialized(res))
		require.Equal(t, int64(5), res.ProtoReflect().Get(field(res, "id")).Int())
	}
	m.SetKeepInitialized(false)
	empty := testutil.NewMessage(t, testutil.Person)
	uninitialized := false
	for i := 0; i < iters; i++ {
		uninitialized = uninitialized || !IsInitialized(m.CrossOver(empty, withID))
	}
	if iters >= 100 {
		assert.True(t, uninitialized)
	}
}

func TestCrossOverDeterminism(t *testing.T) {
	seed := testutil.RandSeed(t)
	a := sampleMessage(t)
	b := testutil.ParseMessage(t, testutil.AllTypes, parentB)
	m1, m2 := New(seed), New(seed)
	for i := 0; i < 100; i++ {
		res1, res2 := m1.CrossOver(a, b), m2.CrossOver(a, b)
		require.Equal(t, testutil.Serialize(t, res1), testutil.Serialize(t, res2))
	}
}

func TestCrossOverMutated(t *testing.T) {
	m, iters := initTest(t)
	corpus := []proto.Message{sampleMessage(t), testutil.ParseMessage(t, testutil.AllTypes, parentA)}
	for i := 0; i < iters; i++ {
		a := corpus[m.r.Intn(len(corpus))]
		b := corpus[m.r.Intn(len(corpus))]
		res := m.CrossOver(a, b)
		m.Mutate(res, 100)
		require.NoError(t, proto.CheckInitialized(res))
		if proto.Size(res) < 10000 {
			corpus = append(corpus, res)
		}
	}
	assert.Equal(t, iters, m.Stats().Get("crossover calls").Val())
}

func TestCrossOverTypeMismatch(t *testing.T) {
	m := New(0)
	assert.Panics(t, func() {
		m.CrossOver(testutil.NewMessage(t, testutil.Person), testutil.NewMessage(t, testutil.Nested))
	})
}
