// Copyright 2025 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package mutator

import (
	"github.com/google/protomutator/pkg/stat"
)

// action is a single structural change applied to a message.
type action int

const (
	actMutateScalar action = iota
	actResetDefault
	actSetField
	actClearField
	actCreateMessage
	actCopyField
	actListMutate
	actListInsert
	actListRemove
	actMapMutate
	actMapInsert
	actMapRemove
	actOneofSwitch
	actOneofClear
	actionCount
)

var actionNames = [actionCount]string{
	actMutateScalar:  "mutate scalar",
	actResetDefault:  "reset to default",
	actSetField:      "set field",
	actClearField:    "clear field",
	actCreateMessage: "create message",
	actCopyField:     "copy field",
	actListMutate:    "mutate element",
	actListInsert:    "insert element",
	actListRemove:    "remove element",
	actMapMutate:     "mutate map value",
	actMapInsert:     "insert map entry",
	actMapRemove:     "remove map entry",
	actOneofSwitch:   "switch oneof",
	actOneofClear:    "clear oneof",
}

func (a action) String() string {
	return actionNames[a]
}

type stats struct {
	set            *stat.Set
	mutateCalls    *stat.Val
	crossOverCalls *stat.Val
	postProcessed  *stat.Val
	resultSize     *stat.Val
	actions        [actionCount]*stat.Val
}

func newStats(set *stat.Set) *stats {
	s := &stats{
		set: set,
		mutateCalls: set.New("mutate calls", "Number of Mutate calls",
			stat.Console, stat.Prometheus("protomut_mutate_calls")),
		crossOverCalls: set.New("crossover calls", "Number of CrossOver calls",
			stat.Console, stat.Prometheus("protomut_crossover_calls")),
		postProcessed: set.New("post-processor calls", "Number of invoked post-processing callbacks",
			stat.Simple, stat.Prometheus("protomut_postprocessor_calls")),
		resultSize: set.New("result size", "Encoded size of produced messages",
			stat.Distribution{}, stat.Simple, stat.Prometheus("protomut_result_size")),
	}
	for a := action(0); a < actionCount; a++ {
		s.actions[a] = set.New("action: "+a.String(), "Number of applied "+a.String()+" mutations")
	}
	return s
}
