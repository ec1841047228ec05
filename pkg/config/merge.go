// Copyright 2021 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"encoding/json"
	"fmt"
)

// MergeJSONData overlays right on top of left: objects are merged recursively,
// all other values in right replace values in left.
func MergeJSONData(left, right []byte) ([]byte, error) {
	if len(right) == 0 {
		return left, nil
	}
	var vLeft, vRight map[string]any
	if err := json.Unmarshal(left, &vLeft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal left: %w", err)
	}
	if err := json.Unmarshal(right, &vRight); err != nil {
		return nil, fmt.Errorf("failed to unmarshal right: %w", err)
	}
	return json.Marshal(mergeRecursive(vLeft, vRight))
}

func mergeRecursive(left, right any) any {
	leftMap, leftOK := left.(map[string]any)
	rightMap, rightOK := right.(map[string]any)
	if !leftOK || !rightOK {
		return right
	}
	if leftMap == nil {
		leftMap = make(map[string]any)
	}
	for key, val := range rightMap {
		if prev, ok := leftMap[key]; ok {
			val = mergeRecursive(prev, val)
		}
		leftMap[key] = val
	}
	return leftMap
}
