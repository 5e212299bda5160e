// Package entity finds curated named entities in free text by phrase containment.
//
// Matching is substring based on purpose: "iran" also fires inside "iranian".
// Entities are only a similarity signal, so over-matching is tolerated.
package entity

import (
	"sort"
	"strings"

	"horse.fit/storyline/internal/vocab"
)

type phrase struct {
	alias string
	key   string
}

type Extractor struct {
	phrases []phrase
}

func NewExtractor(tables *vocab.Tables) *Extractor {
	if tables == nil {
		tables = vocab.Default()
	}
	var phrases []phrase
	for _, e := range tables.Entities() {
		for _, alias := range e.Aliases {
			phrases = append(phrases, phrase{alias: alias, key: e.Key})
		}
	}
	return &Extractor{phrases: phrases}
}

// Extract returns the sorted canonical keys found in text.
func (x *Extractor) Extract(text string) []string {
	set := x.ExtractSet(text)
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (x *Extractor) ExtractSet(text string) map[string]struct{} {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return nil
	}
	var found map[string]struct{}
	for _, p := range x.phrases {
		if _, done := found[p.key]; done {
			continue
		}
		if strings.Contains(lowered, p.alias) {
			if found == nil {
				found = make(map[string]struct{})
			}
			found[p.key] = struct{}{}
		}
	}
	return found
}
