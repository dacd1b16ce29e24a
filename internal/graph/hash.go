/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package graph

import (
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// PayloadHash computes the changelog's payload_hash field for a node or
// edge: a content hash over the record's mutable fields, used by peers to
// detect whether a replayed payload has actually changed anything.
func PayloadHash(kind TargetKind, targetID string, props PropertySet, tombstone bool) string {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%s|%s|%v|", kind, targetID, tombstone)
	keys := props.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := props.Get(k)
		fmt.Fprintf(h, "%s=%v;", k, v.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
