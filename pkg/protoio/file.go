// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package protoio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/protomutator/pkg/osutil"
	"github.com/ulikunitz/xz"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const xzExt = ".xz"

// ReadFile returns contents of the file, decompressed if the name ends with .xz.
func ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(name, xzExt) {
		return data, nil
	}
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%v: xz reader failed: %w", name, err)
	}
	data, err = io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%v: xz decompression failed: %w", name, err)
	}
	return data, nil
}

// WriteFile writes data to the file, compressed if the name ends with .xz.
func WriteFile(name string, data []byte) error {
	if strings.HasSuffix(name, xzExt) {
		buf := new(bytes.Buffer)
		w, err := xz.NewWriter(buf)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	return osutil.WriteFile(name, data)
}

// ReadMessage reads a message of type md from the file.
func ReadMessage(name string, md protoreflect.MessageDescriptor, format Format) (*dynamicpb.Message, error) {
	data, err := ReadFile(name)
	if err != nil {
		return nil, err
	}
	if format == Auto {
		format = FormatForFile(name)
	}
	msg := dynamicpb.NewMessage(md)
	if err := format.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%v: %w", name, err)
	}
	return msg, nil
}

// WriteMessage writes msg to the file.
func WriteMessage(name string, msg proto.Message, format Format) error {
	if format == Auto {
		format = FormatForFile(name)
	}
	data, err := format.Marshal(msg)
	if err != nil {
		return err
	}
	return WriteFile(name, data)
}
