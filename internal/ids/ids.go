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

/*
Package ids generates the identifiers used across the mesh/sync core:
instance ids (IID), message ids, and sync session ids.
*/
package ids

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
)

var sequence uint64

// NewIID returns a new instance identifier in the suggested
// "{hostname}-{uuid}" format from spec.md §3. It is stable for the life
// of the process once generated.
func NewIID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "instance"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString())
}

// NewMessageID returns a new message_id for a bus envelope.
func NewMessageID() string {
	return fmt.Sprintf("msg-%s", uuid.NewString())
}

// NewSessionID returns a new sync session id.
func NewSessionID() string {
	return fmt.Sprintf("sess-%s", uuid.NewString())
}

// NextSequence returns a process-local monotonically increasing counter,
// used as a tie-break for ordering events generated within the same
// wall-clock tick.
func NextSequence() uint64 {
	return atomic.AddUint64(&sequence, 1)
}
