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

package resolver

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collator breaks ties between two property values that differ only in
// which the resolver's deterministic "lexicographically greater wins"
// rule (spec.md §4.3) should treat as greater.
type Collator interface {
	// Greater reports whether a should be treated as lexicographically
	// greater than b.
	Greater(a, b string) bool
}

// BinaryCollator is the default: plain byte-wise comparison.
type BinaryCollator struct{}

func (BinaryCollator) Greater(a, b string) bool { return a > b }

// UnicodeCollator orders strings using locale-aware collation, for
// deployments whose property values are natural-language text rather than
// opaque identifiers.
type UnicodeCollator struct {
	collator *collate.Collator
}

// NewUnicodeCollator builds a Unicode-aware collator for locale (BCP-47,
// e.g. "en", "de"). An unrecognized locale falls back to English.
func NewUnicodeCollator(locale string) *UnicodeCollator {
	tag := language.Make(locale)
	if tag == language.Und {
		tag = language.English
	}
	return &UnicodeCollator{collator: collate.New(tag, collate.Loose)}
}

func (c *UnicodeCollator) Greater(a, b string) bool {
	return c.collator.CompareString(a, b) > 0
}

// DefaultCollator is the resolver's default tie-break collator.
var DefaultCollator Collator = BinaryCollator{}
