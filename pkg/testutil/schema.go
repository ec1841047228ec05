// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package testutil

import (
	"fmt"
	"sync"
	"testing"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Names of message types in the test schema.
const (
	AllTypes = "protomut.test.AllTypes"
	Nested   = "protomut.test.Nested"
	Person   = "protomut.test.Person"
	Loop     = "protomut.test.Loop"
	Tree     = "protomut.test.Tree"
	Empty    = "protomut.test.Empty"
	Scalars3 = "protomut.test3.Scalars3"
)

// The test schema is kept as text-format FileDescriptorProtos,
// so no generated code is needed to get messages with every kind of field.
var schemaTexts = []string{`
name: "protomut/test.proto"
package: "protomut.test"
syntax: "proto2"
enum_type {
  name: "Color"
  value { name: "RED" number: 0 }
  value { name: "GREEN" number: 1 }
  value { name: "BLUE" number: 2 }
}
message_type {
  name: "Nested"
  field { name: "a" number: 1 label: LABEL_REQUIRED type: TYPE_INT32 }
  field { name: "b" number: 2 label: LABEL_OPTIONAL type: TYPE_STRING }
  field { name: "child" number: 3 label: LABEL_OPTIONAL type: TYPE_MESSAGE type_name: ".protomut.test.Nested" }
}
message_type {
  name: "AllTypes"
  field { name: "opt_int32" number: 1 label: LABEL_OPTIONAL type: TYPE_INT32 }
  field { name: "opt_int64" number: 2 label: LABEL_OPTIONAL type: TYPE_INT64 }
  field { name: "opt_uint32" number: 3 label: LABEL_OPTIONAL type: TYPE_UINT32 }
  field { name: "opt_uint64" number: 4 label: LABEL_OPTIONAL type: TYPE_UINT64 }
  field { name: "opt_sint32" number: 5 label: LABEL_OPTIONAL type: TYPE_SINT32 }
  field { name: "opt_sint64" number: 6 label: LABEL_OPTIONAL type: TYPE_SINT64 }
  field { name: "opt_fixed32" number: 7 label: LABEL_OPTIONAL type: TYPE_FIXED32 }
  field { name: "opt_fixed64" number: 8 label: LABEL_OPTIONAL type: TYPE_FIXED64 }
  field { name: "opt_sfixed32" number: 9 label: LABEL_OPTIONAL type: TYPE_SFIXED32 }
  field { name: "opt_sfixed64" number: 10 label: LABEL_OPTIONAL type: TYPE_SFIXED64 }
  field { name: "opt_float" number: 11 label: LABEL_OPTIONAL type: TYPE_FLOAT }
  field { name: "opt_double" number: 12 label: LABEL_OPTIONAL type: TYPE_DOUBLE }
  field { name: "opt_bool" number: 13 label: LABEL_OPTIONAL type: TYPE_BOOL }
  field { name: "opt_string" number: 14 label: LABEL_OPTIONAL type: TYPE_STRING }
  field { name: "opt_bytes" number: 15 label: LABEL_OPTIONAL type: TYPE_BYTES }
  field { name: "opt_color" number: 16 label: LABEL_OPTIONAL type: TYPE_ENUM type_name: ".protomut.test.Color" default_value: "GREEN" }
  field { name: "opt_nested" number: 17 label: LABEL_OPTIONAL type: TYPE_MESSAGE type_name: ".protomut.test.Nested" }
  field { name: "req_id" number: 18 label: LABEL_REQUIRED type: TYPE_INT32 }
  field { name: "req_nested" number: 19 label: LABEL_REQUIRED type: TYPE_MESSAGE type_name: ".protomut.test.Nested" }
  field { name: "rep_int32" number: 20 label: LABEL_REPEATED type: TYPE_INT32 }
  field { name: "rep_string" number: 21 label: LABEL_REPEATED type: TYPE_STRING }
  field { name: "rep_nested" number: 22 label: LABEL_REPEATED type: TYPE_MESSAGE type_name: ".protomut.test.Nested" }
  field { name: "rep_color" number: 23 label: LABEL_REPEATED type: TYPE_ENUM type_name: ".protomut.test.Color" }
  field { name: "labels" number: 24 label: LABEL_REPEATED type: TYPE_MESSAGE type_name: ".protomut.test.AllTypes.LabelsEntry" }
  field { name: "nested_by_id" number: 25 label: LABEL_REPEATED type: TYPE_MESSAGE type_name: ".protomut.test.AllTypes.NestedByIdEntry" }
  field { name: "oneof_int32" number: 26 label: LABEL_OPTIONAL type: TYPE_INT32 oneof_index: 0 }
  field { name: "oneof_string" number: 27 label: LABEL_OPTIONAL type: TYPE_STRING oneof_index: 0 }
  field { name: "oneof_nested" number: 28 label: LABEL_OPTIONAL type: TYPE_MESSAGE type_name: ".protomut.test.Nested" oneof_index: 0 }
  field { name: "opt_int_default" number: 29 label: LABEL_OPTIONAL type: TYPE_INT32 default_value: "42" }
  nested_type {
    name: "LabelsEntry"
    field { name: "key" number: 1 label: LABEL_OPTIONAL type: TYPE_STRING }
    field { name: "value" number: 2 label: LABEL_OPTIONAL type: TYPE_INT32 }
    options { map_entry: true }
  }
  nested_type {
    name: "NestedByIdEntry"
    field { name: "key" number: 1 label: LABEL_OPTIONAL type: TYPE_INT64 }
    field { name: "value" number: 2 label: LABEL_OPTIONAL type: TYPE_MESSAGE type_name: ".protomut.test.Nested" }
    options { map_entry: true }
  }
  oneof_decl { name: "choice" }
}
message_type {
  name: "Person"
  field { name: "id" number: 1 label: LABEL_REQUIRED type: TYPE_INT32 }
  field { name: "name" number: 2 label: LABEL_OPTIONAL type: TYPE_STRING }
  field { name: "tags" number: 3 label: LABEL_REPEATED type: TYPE_STRING }
}
message_type {
  name: "Loop"
  field { name: "self" number: 1 label: LABEL_REQUIRED type: TYPE_MESSAGE type_name: ".protomut.test.Loop" }
  field { name: "v" number: 2 label: LABEL_OPTIONAL type: TYPE_INT32 }
}
message_type {
  name: "Tree"
  field { name: "value" number: 1 label: LABEL_OPTIONAL type: TYPE_INT32 }
  field { name: "children" number: 2 label: LABEL_REPEATED type: TYPE_MESSAGE type_name: ".protomut.test.Tree" }
}
message_type {
  name: "Empty"
}
`, `
name: "protomut/test3.proto"
package: "protomut.test3"
syntax: "proto3"
enum_type {
  name: "Status"
  value { name: "STATUS_UNKNOWN" number: 0 }
  value { name: "STATUS_OK" number: 1 }
  value { name: "STATUS_FAILED" number: 2 }
}
message_type {
  name: "Scalars3"
  field { name: "i" number: 1 label: LABEL_OPTIONAL type: TYPE_INT32 json_name: "i" }
  field { name: "s" number: 2 label: LABEL_OPTIONAL type: TYPE_STRING json_name: "s" }
  field { name: "status" number: 3 label: LABEL_OPTIONAL type: TYPE_ENUM type_name: ".protomut.test3.Status" json_name: "status" }
  field { name: "data" number: 4 label: LABEL_OPTIONAL type: TYPE_BYTES json_name: "data" }
  field { name: "ids" number: 5 label: LABEL_REPEATED type: TYPE_UINT64 json_name: "ids" }
  field { name: "next" number: 6 label: LABEL_OPTIONAL type: TYPE_MESSAGE type_name: ".protomut.test3.Scalars3" json_name: "next" }
}
`}

var (
	schemaOnce     sync.Once
	schemaSet      *descriptorpb.FileDescriptorSet
	schemaRegistry *protoregistry.Files
)

func buildSchema() {
	set := new(descriptorpb.FileDescriptorSet)
	for _, text := range schemaTexts {
		file := new(descriptorpb.FileDescriptorProto)
		if err := prototext.Unmarshal([]byte(text), file); err != nil {
			panic(fmt.Sprintf("failed to parse test schema: %v", err))
		}
		set.File = append(set.File, file)
	}
	files, err := protodesc.NewFiles(set)
	if err != nil {
		panic(fmt.Sprintf("invalid test schema: %v", err))
	}
	schemaSet, schemaRegistry = set, files
}

// Schema returns the registry with all test message types.
func Schema() *protoregistry.Files {
	schemaOnce.Do(buildSchema)
	return schemaRegistry
}

// DescriptorSet returns the test schema in the form protoc --descriptor_set_out produces.
func DescriptorSet() *descriptorpb.FileDescriptorSet {
	schemaOnce.Do(buildSchema)
	return proto.Clone(schemaSet).(*descriptorpb.FileDescriptorSet)
}

func MessageDescriptor(t testing.TB, name string) protoreflect.MessageDescriptor {
	desc, err := Schema().FindDescriptorByName(protoreflect.FullName(name))
	if err != nil {
		t.Fatalf("no message %v in test schema: %v", name, err)
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		t.Fatalf("%v is not a message", name)
	}
	return md
}

// NewMessage returns an empty message of the named test type.
func NewMessage(t testing.TB, name string) *dynamicpb.Message {
	return dynamicpb.NewMessage(MessageDescriptor(t, name))
}

// ParseMessage returns a message of the named test type parsed from text format.
func ParseMessage(t testing.TB, name, text string) *dynamicpb.Message {
	msg := NewMessage(t, name)
	if err := (prototext.UnmarshalOptions{AllowPartial: true}).Unmarshal([]byte(text), msg); err != nil {
		t.Fatalf("failed to parse %v: %v\n%s", name, err, text)
	}
	return msg
}

// Serialize returns deterministic binary encoding of msg for comparisons.
func Serialize(t testing.TB, msg proto.Message) []byte {
	data, err := proto.MarshalOptions{Deterministic: true, AllowPartial: true}.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}
	return data
}
