// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package facts

import (
	"maps"
	"sort"
)

// SourceInput marks a fact supplied by the caller rather than a rule.
const SourceInput = "input"

// Entry is a fact value plus its provenance.
//
// Source is SourceInput or the id of the rule that asserted the value.
type Entry struct {
	Value  Value
	Source string
}

// NamedEntry is an Entry with its fact name, used for ordered listings.
type NamedEntry struct {
	Name   string `json:"name"`
	Value  Value  `json:"value"`
	Source string `json:"source"`
}

// Record is a working set of facts for one evaluation.
//
// # Description
//
// Records are value-like. Assert and Override return a new Record and
// never modify the receiver, so a Record may be shared freely. The zero
// Record is empty and ready to use.
type Record struct {
	entries map[string]Entry
}

// Get returns the value of name.
func (r Record) Get(name string) (Value, bool) {
	e, ok := r.entries[name]
	return e.Value, ok
}

// Entry returns the value and provenance of name.
func (r Record) Entry(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Has reports whether name holds a value.
func (r Record) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Len returns the number of facts.
func (r Record) Len() int {
	return len(r.entries)
}

// Names returns all fact names in ascending order.
func (r Record) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns all facts in ascending name order.
func (r Record) Entries() []NamedEntry {
	out := make([]NamedEntry, 0, len(r.entries))
	for _, name := range r.Names() {
		e := r.entries[name]
		out = append(out, NamedEntry{Name: name, Value: e.Value, Source: e.Source})
	}
	return out
}

// Plain returns the facts as a map of plain Go values.
func (r Record) Plain() map[string]any {
	out := make(map[string]any, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.Value.Any()
	}
	return out
}

// Assert adds name = value to the record.
//
// # Outputs
//
//   - Record: The record with the fact present. Re-asserting the value a
//     fact already holds returns the receiver unchanged, keeping the
//     original provenance.
//   - error: A *ConflictError (Kind ErrFactConflict) when name already
//     holds a different value. The receiver is returned alongside it.
func (r Record) Assert(name string, value Value, source string) (Record, error) {
	if existing, ok := r.entries[name]; ok {
		if existing.Value.Equal(value) {
			return r, nil
		}
		return r, &ConflictError{
			Fact:           name,
			Existing:       existing.Value,
			ExistingSource: existing.Source,
			Proposed:       value,
			ProposedSource: source,
			Kind:           ErrFactConflict,
		}
	}
	return r.with(name, Entry{Value: value, Source: source}), nil
}

// Override replaces the value of name unconditionally.
//
// Only the inference engine calls this, after priority resolution.
func (r Record) Override(name string, value Value, source string) Record {
	return r.with(name, Entry{Value: value, Source: source})
}

func (r Record) with(name string, e Entry) Record {
	next := make(map[string]Entry, len(r.entries)+1)
	maps.Copy(next, r.entries)
	next[name] = e
	return Record{entries: next}
}
