// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package protoio reads and writes protobuf messages and schemas from files.
package protoio

import (
	"fmt"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

// Format is an encoding of serialized messages.
type Format int

const (
	// Auto means that the format is chosen by the file extension.
	Auto Format = iota
	Binary
	Text
	JSON
)

var formatNames = map[string]Format{
	"":       Auto,
	"auto":   Auto,
	"binary": Binary,
	"bin":    Binary,
	"pb":     Binary,
	"text":   Text,
	"txt":    Text,
	"txtpb":  Text,
	"json":   JSON,
}

func ParseFormat(name string) (Format, error) {
	f, ok := formatNames[strings.ToLower(name)]
	if !ok {
		return Auto, fmt.Errorf("unknown message format %q, want one of binary/text/json", name)
	}
	return f, nil
}

func (f Format) String() string {
	switch f {
	case Auto:
		return "auto"
	case Binary:
		return "binary"
	case Text:
		return "text"
	case JSON:
		return "json"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	switch f {
	case Text:
		return ".txtpb"
	case JSON:
		return ".json"
	}
	return ".pb"
}

// FormatForFile returns the format of the file judging by its extension (ignoring .xz).
// Unknown extensions mean binary.
func FormatForFile(name string) Format {
	name = strings.TrimSuffix(name, xzExt)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txtpb", ".textproto", ".txt", ".prototxt", ".pbtxt":
		return Text
	case ".json":
		return JSON
	}
	return Binary
}

// Marshal encodes msg. Messages with missing required fields are encoded as is.
// Binary encoding is deterministic, so equal messages produce equal bytes.
func (f Format) Marshal(msg proto.Message) ([]byte, error) {
	switch f {
	case Text:
		return prototext.MarshalOptions{Multiline: true, AllowPartial: true}.Marshal(msg)
	case JSON:
		return protojson.MarshalOptions{Multiline: true, AllowPartial: true}.Marshal(msg)
	case Binary:
		return proto.MarshalOptions{Deterministic: true, AllowPartial: true}.Marshal(msg)
	}
	return nil, fmt.Errorf("can't marshal in %v format", f)
}

// Unmarshal decodes data into msg, which is reset first.
func (f Format) Unmarshal(data []byte, msg proto.Message) error {
	var err error
	switch f {
	case Text:
		err = prototext.UnmarshalOptions{AllowPartial: true}.Unmarshal(data, msg)
	case JSON:
		err = protojson.UnmarshalOptions{AllowPartial: true}.Unmarshal(data, msg)
	case Binary:
		err = proto.UnmarshalOptions{AllowPartial: true}.Unmarshal(data, msg)
	default:
		return fmt.Errorf("can't unmarshal %v format", f)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %v %v: %w", f, msg.ProtoReflect().Descriptor().FullName(), err)
	}
	return nil
}
