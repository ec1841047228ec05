// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tool

import (
	"errors"
	"fmt"
	"strings"
)

// ListFlag allows passing a comma-separated list of values (e.g. files) to the same flag.
type ListFlag []string

// String correctly converts the flag values into a string which is required to
// parse them afterwards.
func (list *ListFlag) String() string {
	return fmt.Sprint(*list)
}

// Set is used by flag.Parse to correctly parse the command line arguments.
func (list *ListFlag) Set(value string) error {
	if len(*list) > 0 {
		return errors.New("list flag was already set")
	}
	for _, elem := range strings.Split(value, ",") {
		elem = strings.TrimSpace(elem)
		if elem == "" {
			continue
		}
		*list = append(*list, elem)
	}
	return nil
}

// Get makes ListFlag a flag.Getter.
func (list *ListFlag) Get() any {
	return []string(*list)
}
