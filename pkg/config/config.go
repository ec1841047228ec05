// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config loads JSON and YAML configs into Go structs.
// JSON configs may contain comment lines starting with #, as well as JSONC
// comments and trailing commas.
// Unknown fields are reported with their full path, e.g. "mutator.max_dept".
package config

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/google/protomutator/pkg/osutil"
	"github.com/tailscale/hujson"
	"sigs.k8s.io/yaml"
)

func LoadFile(filename string, cfg any) error {
	if filename == "" {
		return fmt.Errorf("no config file specified")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if isYAML(filename) {
		if data, err = yaml.YAMLToJSON(data); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	return LoadData(data, cfg)
}

func LoadData(data []byte, cfg any) error {
	typ := reflect.TypeOf(cfg)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config type is not pointer to struct")
	}
	// Remove comment lines starting with #.
	data = regexp.MustCompile(`(^|\n)\s*#[^\n]*`).ReplaceAll(data, nil)
	// Also accept JSONC: // and /* */ comments and trailing commas.
	data, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := checkUnknownFields(data, "", typ.Elem()); err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func SaveFile(filename string, cfg any) error {
	data, err := json.MarshalIndent(cfg, "", "\t")
	if err != nil {
		return err
	}
	if isYAML(filename) {
		if data, err = yaml.JSONToYAML(data); err != nil {
			return err
		}
	}
	return osutil.WriteFile(filename, data)
}

func isYAML(filename string) bool {
	ext := filepath.Ext(filename)
	return ext == ".yaml" || ext == ".yml"
}

var (
	jsonUnmarshaler = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	textUnmarshaler = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// checkUnknownFields returns an error for the first field in data that has no
// counterpart in typ. encoding/json can do the same with DisallowUnknownFields,
// but does not say where the field is.
func checkUnknownFields(data []byte, path string, typ reflect.Type) error {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	switch {
	case reflect.PointerTo(typ).Implements(jsonUnmarshaler), reflect.PointerTo(typ).Implements(textUnmarshaler):
		return nil
	case typ.Kind() == reflect.Slice || typ.Kind() == reflect.Array:
		var elems []json.RawMessage
		if json.Unmarshal(data, &elems) != nil {
			// Type errors are reported by the real decoding.
			return nil
		}
		for i, elem := range elems {
			if err := checkUnknownFields(elem, fmt.Sprintf("%v[%v]", path, i), typ.Elem()); err != nil {
				return err
			}
		}
		return nil
	case typ.Kind() != reflect.Struct:
		return nil
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) != nil {
		return nil
	}
	known := make(map[string]reflect.Type)
	structFields(typ, known)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		val := fields[name]
		fieldPath := name
		if path != "" {
			fieldPath = path + "." + name
		}
		ftyp, ok := known[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("unknown field '%v' in config", fieldPath)
		}
		if bytes.Equal(val, []byte("null")) {
			continue
		}
		if err := checkUnknownFields(val, fieldPath, ftyp); err != nil {
			return err
		}
	}
	return nil
}

func structFields(typ reflect.Type, known map[string]reflect.Type) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := strings.Split(field.Tag.Get("json"), ",")[0]
		switch {
		case tag == "-" || !field.IsExported() && !field.Anonymous:
			continue
		case field.Anonymous && tag == "" && field.Type.Kind() == reflect.Struct:
			structFields(field.Type, known)
			continue
		}
		name := field.Name
		if tag != "" {
			name = tag
		}
		known[strings.ToLower(name)] = field.Type
	}
}
