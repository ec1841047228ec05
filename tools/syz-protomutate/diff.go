// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"strings"

	dmp "github.com/sergi/go-diff/diffmatchpatch"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

// messageDiff returns changed lines between text formats of two messages,
// prefixed with - and +.
func messageDiff(before, after proto.Message) string {
	opts := prototext.MarshalOptions{Multiline: true, AllowPartial: true}
	return textDiff(opts.Format(before), opts.Format(after))
}

func textDiff(before, after string) string {
	differ := dmp.New()
	chars1, chars2, lines := differ.DiffLinesToChars(before, after)
	diffs := differ.DiffCharsToLines(differ.DiffMain(chars1, chars2, false), lines)
	var res strings.Builder
	for _, diff := range diffs {
		prefix := ""
		switch diff.Type {
		case dmp.DiffDelete:
			prefix = "-"
		case dmp.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(diff.Text, "\n"), "\n") {
			res.WriteString(prefix + line + "\n")
		}
	}
	return res.String()
}
