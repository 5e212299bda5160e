// Package vocab holds the curated word lists the normalizer, entity extractor
// and source verifier read from. Tables are immutable once built.
package vocab

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entity maps surface phrases to one canonical key.
type Entity struct {
	Key     string   `yaml:"key"`
	Aliases []string `yaml:"aliases"`
}

type Tables struct {
	stopWords       map[string]struct{}
	operational     map[string]struct{}
	entities        []Entity
	verifiedSources []string
}

// fileFormat is the on-disk YAML layout. Omitted sections keep the built-in list.
type fileFormat struct {
	StopWords            []string `yaml:"stop_words"`
	OperationalStopWords []string `yaml:"operational_stop_words"`
	Entities             []Entity `yaml:"entities"`
	VerifiedSources      []string `yaml:"verified_sources"`
	ExtendDefaults       bool     `yaml:"extend_defaults"`
}

func Default() *Tables {
	return build(defaultStopWords, defaultOperationalStopWords, defaultEntities, defaultVerifiedSources)
}

// Load reads a YAML vocabulary file. An empty path returns the defaults.
func Load(path string) (*Tables, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Tables, error) {
	var file fileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse vocabulary YAML: %w", err)
	}

	for i, entity := range file.Entities {
		if strings.TrimSpace(entity.Key) == "" {
			return nil, fmt.Errorf("entities[%d]: key must not be empty", i)
		}
		if len(entity.Aliases) == 0 {
			return nil, fmt.Errorf("entities[%d] (%s): at least one alias is required", i, entity.Key)
		}
	}

	stop := pick(file.StopWords, defaultStopWords, file.ExtendDefaults)
	operational := pick(file.OperationalStopWords, defaultOperationalStopWords, file.ExtendDefaults)
	verified := pick(file.VerifiedSources, defaultVerifiedSources, file.ExtendDefaults)

	entities := defaultEntities
	if len(file.Entities) > 0 {
		if file.ExtendDefaults {
			entities = append(append([]Entity(nil), defaultEntities...), file.Entities...)
		} else {
			entities = file.Entities
		}
	}

	return build(stop, operational, entities, verified), nil
}

func pick(fromFile, defaults []string, extend bool) []string {
	if len(fromFile) == 0 {
		return defaults
	}
	if extend {
		return append(append([]string(nil), defaults...), fromFile...)
	}
	return fromFile
}

func build(stop, operational []string, entities []Entity, verified []string) *Tables {
	t := &Tables{
		stopWords:   toSet(stop),
		operational: toSet(operational),
	}

	merged := make(map[string]map[string]struct{})
	for _, entity := range entities {
		key := strings.ToLower(strings.TrimSpace(entity.Key))
		if key == "" {
			continue
		}
		if merged[key] == nil {
			merged[key] = make(map[string]struct{})
		}
		for _, alias := range entity.Aliases {
			if a := strings.ToLower(strings.TrimSpace(alias)); a != "" {
				merged[key][a] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		aliases := make([]string, 0, len(merged[key]))
		for alias := range merged[key] {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		t.entities = append(t.entities, Entity{Key: key, Aliases: aliases})
	}

	seen := make(map[string]struct{}, len(verified))
	for _, name := range verified {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		t.verifiedSources = append(t.verifiedSources, n)
	}
	sort.Strings(t.verifiedSources)

	return t
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if n := strings.ToLower(strings.TrimSpace(w)); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func (t *Tables) IsStopWord(token string) bool {
	_, ok := t.stopWords[token]
	return ok
}

// IsOperational reports whether token is newsroom boilerplate ignored by the hash key.
func (t *Tables) IsOperational(token string) bool {
	_, ok := t.operational[token]
	return ok
}

// Entities returns a copy of the entity table sorted by key.
func (t *Tables) Entities() []Entity {
	out := make([]Entity, len(t.entities))
	for i, e := range t.entities {
		out[i] = Entity{Key: e.Key, Aliases: append([]string(nil), e.Aliases...)}
	}
	return out
}

// VerifiedSources returns the lowercased allowlist.
func (t *Tables) VerifiedSources() []string {
	return append([]string(nil), t.verifiedSources...)
}
