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
Package graph defines the property-graph data model shared by the store,
resolver, and sync engine: nodes, edges, typed property values, changelog
entries, and per-session sync statistics.
*/
package graph

import (
	"encoding/json"
	"time"

	"meshgraph/internal/vectorclock"
)

// PropertyType tags the primitive kind carried by a PropertyValue.
type PropertyType int

const (
	TypeNull PropertyType = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTimestamp
)

// PropertyValue is a typed primitive-or-string property value, modeled on
// the teacher's SDK Value/DataType pattern but trimmed to what a graph
// property actually needs.
type PropertyValue struct {
	Type PropertyType
	Data any
}

func NewNullValue() PropertyValue           { return PropertyValue{Type: TypeNull} }
func NewStringValue(v string) PropertyValue { return PropertyValue{Type: TypeString, Data: v} }
func NewIntValue(v int64) PropertyValue     { return PropertyValue{Type: TypeInt, Data: v} }
func NewFloatValue(v float64) PropertyValue { return PropertyValue{Type: TypeFloat, Data: v} }
func NewBoolValue(v bool) PropertyValue     { return PropertyValue{Type: TypeBool, Data: v} }
func NewTimestampValue(v time.Time) PropertyValue {
	return PropertyValue{Type: TypeTimestamp, Data: v}
}

func (v PropertyValue) AsString() (string, bool) {
	s, ok := v.Data.(string)
	return s, ok
}

func (v PropertyValue) AsInt64() (int64, bool) {
	i, ok := v.Data.(int64)
	return i, ok
}

func (v PropertyValue) AsFloat64() (float64, bool) {
	f, ok := v.Data.(float64)
	return f, ok
}

func (v PropertyValue) AsBool() (bool, bool) {
	b, ok := v.Data.(bool)
	return b, ok
}

type propertyValueWire struct {
	Type PropertyType `json:"type"`
	Data any          `json:"data,omitempty"`
}

// MarshalJSON tags the value with its PropertyType so UnmarshalJSON can
// restore the correct Go type for Data (encoding/json otherwise decodes
// all numbers as float64 and loses the int/float/timestamp distinction).
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	data := v.Data
	if v.Type == TypeTimestamp {
		if t, ok := v.Data.(time.Time); ok {
			data = t.Format(time.RFC3339Nano)
		}
	}
	return json.Marshal(propertyValueWire{Type: v.Type, Data: data})
}

// UnmarshalJSON restores a PropertyValue from its tagged wire form.
func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var wire propertyValueWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	v.Type = wire.Type
	switch wire.Type {
	case TypeInt:
		if f, ok := wire.Data.(float64); ok {
			v.Data = int64(f)
			return nil
		}
	case TypeFloat:
		if f, ok := wire.Data.(float64); ok {
			v.Data = f
			return nil
		}
	case TypeBool:
		if b, ok := wire.Data.(bool); ok {
			v.Data = b
			return nil
		}
	case TypeString:
		if s, ok := wire.Data.(string); ok {
			v.Data = s
			return nil
		}
	case TypeTimestamp:
		if s, ok := wire.Data.(string); ok {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return err
			}
			v.Data = t
			return nil
		}
	case TypeNull:
		v.Data = nil
		return nil
	}
	v.Data = wire.Data
	return nil
}

// Equal reports whether two property values carry the same type and data.
func (v PropertyValue) Equal(other PropertyValue) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeTimestamp:
		vt, vok := v.Data.(time.Time)
		ot, ook := other.Data.(time.Time)
		return vok && ook && vt.Equal(ot)
	default:
		return v.Data == other.Data
	}
}

// PropertySet is an ordered mapping of string -> PropertyValue. Key order
// is preserved via Keys for deterministic serialization and diffing.
type PropertySet struct {
	keys   []string
	values map[string]PropertyValue
}

// NewPropertySet returns an empty property set.
func NewPropertySet() PropertySet {
	return PropertySet{values: make(map[string]PropertyValue)}
}

// Set inserts or replaces a key's value, preserving first-insertion order.
func (p *PropertySet) Set(key string, v PropertyValue) {
	if p.values == nil {
		p.values = make(map[string]PropertyValue)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Get returns the value for key and whether it is present.
func (p PropertySet) Get(key string) (PropertyValue, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the set's keys in insertion order.
func (p PropertySet) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Clone returns a deep copy of the property set.
func (p PropertySet) Clone() PropertySet {
	out := PropertySet{
		keys:   append([]string(nil), p.keys...),
		values: make(map[string]PropertyValue, len(p.values)),
	}
	for k, v := range p.values {
		out.values[k] = v
	}
	return out
}

type propertyEntry struct {
	Key   string        `json:"key"`
	Value PropertyValue `json:"value"`
}

// MarshalJSON serializes the property set as an ordered array of
// key/value entries, preserving insertion order across the wire.
func (p PropertySet) MarshalJSON() ([]byte, error) {
	entries := make([]propertyEntry, 0, len(p.keys))
	for _, k := range p.keys {
		entries = append(entries, propertyEntry{Key: k, Value: p.values[k]})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON parses the ordered array form produced by MarshalJSON.
func (p *PropertySet) UnmarshalJSON(data []byte) error {
	var entries []propertyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*p = NewPropertySet()
	for _, e := range entries {
		p.Set(e.Key, e.Value)
	}
	return nil
}

// Node is a property-graph node (spec.md §3).
type Node struct {
	NodeID      string
	NodeType    string
	Label       string
	Properties  PropertySet
	EmbeddingID string
	Clock       vectorclock.Clock
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Tombstone   bool
}

// Edge is a property-graph edge (spec.md §3).
type Edge struct {
	EdgeID     string
	SourceID   string
	TargetID   string
	EdgeType   string
	Weight     float64
	Properties PropertySet
	Clock      vectorclock.Clock
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Tombstone  bool
}

// TargetKind distinguishes changelog entries and sync payload records.
type TargetKind int

const (
	KindNode TargetKind = iota
	KindEdge
)

func (k TargetKind) String() string {
	if k == KindEdge {
		return "Edge"
	}
	return "Node"
}

// Operation is the kind of change a changelog entry records.
type Operation int

const (
	OpUpsert Operation = iota
	OpDelete
)

func (o Operation) String() string {
	if o == OpDelete {
		return "Delete"
	}
	return "Upsert"
}

// ChangelogEntry is an append-only record of a single change to a node or
// edge (spec.md §3).
type ChangelogEntry struct {
	Sequence     uint64
	IID          string
	TargetKind   TargetKind
	TargetID     string
	Operation    Operation
	ClockAtChange vectorclock.Clock
	Timestamp    time.Time
	PayloadHash  string
}

// ConflictOutcome is the decision one application of the resolver
// produces (spec.md §4.3).
type ConflictOutcome int

const (
	OutcomeAcceptRemote ConflictOutcome = iota
	OutcomeKeepLocal
	OutcomeMerged
	OutcomeRequiresManualReview
)

func (o ConflictOutcome) String() string {
	switch o {
	case OutcomeAcceptRemote:
		return "AcceptRemote"
	case OutcomeKeepLocal:
		return "KeepLocal"
	case OutcomeMerged:
		return "Merged"
	case OutcomeRequiresManualReview:
		return "RequiresManualReview"
	default:
		return "Unknown"
	}
}

// SyncOutcome is the terminal result of a sync session.
type SyncOutcome string

const (
	SyncSucceeded SyncOutcome = "Succeeded"
	SyncFailedOutcome SyncOutcome = "Failed"
)

// SyncStats records per-session sync statistics (spec.md §3).
type SyncStats struct {
	SessionID       string
	PeerIID         string
	NodesSent       int
	NodesReceived   int
	NodesMerged     int
	EdgesSent       int
	EdgesReceived   int
	EdgesMerged     int
	ConflictsByOutcome map[ConflictOutcome]int
	BytesTransferred int64
	WallTime        time.Duration
	Outcome         SyncOutcome
	FailureKind     string
	FailureDetail   string
	StartedAt       time.Time
	EndedAt         time.Time
}
