// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package protoio

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// LoadSchema builds a registry from files with FileDescriptorSets, as produced by
// protoc --descriptor_set_out --include_imports. The sets may be stored in any format.
// A file present in several sets must be identical in all of them.
func LoadSchema(files ...string) (*protoregistry.Files, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no descriptor files specified")
	}
	merged := new(descriptorpb.FileDescriptorSet)
	seen := make(map[string]*descriptorpb.FileDescriptorProto)
	for _, name := range files {
		set := new(descriptorpb.FileDescriptorSet)
		data, err := ReadFile(name)
		if err != nil {
			return nil, err
		}
		if err := FormatForFile(name).Unmarshal(data, set); err != nil {
			return nil, fmt.Errorf("%v: %w", name, err)
		}
		for _, file := range set.File {
			if prev := seen[file.GetName()]; prev != nil {
				if !proto.Equal(prev, file) {
					return nil, fmt.Errorf("%v: conflicting definitions of %v", name, file.GetName())
				}
				continue
			}
			seen[file.GetName()] = file
			merged.File = append(merged.File, file)
		}
	}
	return NewSchema(merged)
}

func NewSchema(set *descriptorpb.FileDescriptorSet) (*protoregistry.Files, error) {
	reg, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, fmt.Errorf("bad descriptors: %w", err)
	}
	return reg, nil
}

// FindMessage returns the message type with the given full name.
func FindMessage(schema *protoregistry.Files, name string) (protoreflect.MessageDescriptor, error) {
	desc, err := schema.FindDescriptorByName(protoreflect.FullName(name))
	if err != nil {
		return nil, fmt.Errorf("message %v: %w", name, err)
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("%v is not a message but %T", name, desc)
	}
	return md, nil
}

// Messages returns full names of all message types in the schema, except map entries.
func Messages(schema *protoregistry.Files) []string {
	var res []string
	var walk func(protoreflect.MessageDescriptors)
	walk = func(mds protoreflect.MessageDescriptors) {
		for i := 0; i < mds.Len(); i++ {
			md := mds.Get(i)
			if md.IsMapEntry() {
				continue
			}
			res = append(res, string(md.FullName()))
			walk(md.Messages())
		}
	}
	schema.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		walk(fd.Messages())
		return true
	})
	sort.Strings(res)
	return res
}
