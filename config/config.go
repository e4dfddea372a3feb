// Package config ships the engine's semantic tables as data: tool category
// input/output semantics, the legacy field alias map consulted by the
// placeholder resolver, the transformer catalogue toggles and the mode
// router patterns. Tables load from YAML and merge over built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tool categories used for ordering and compatibility inference.
const (
	CategoryDataSource    = "data_source"
	CategoryDataProcessor = "data_processor"
	CategoryFileOperator  = "file_operator"
	CategoryStorage       = "storage"
	CategoryOther         = "other"
)

// Semantic value categories used by the parameter adapter.
const (
	SemanticFilePath    = "file_path"
	SemanticFileContent = "file_content"
	SemanticURL         = "url"
	SemanticImageRef    = "image_ref"
	SemanticMetadata    = "metadata"
	SemanticUnknown     = "unknown"
)

// CategorySemantics declares what a tool category consumes and produces.
type CategorySemantics struct {
	// Inputs are the semantic types the category consumes.
	Inputs []string `yaml:"inputs"`

	// Outputs are the semantic types the category produces.
	Outputs []string `yaml:"outputs"`

	// Priority is the base ordering priority used by the heuristic order
	// builder. Lower runs earlier.
	Priority int `yaml:"priority"`
}

// RouterConfig tunes the conversational short-circuit classifier.
type RouterConfig struct {
	// MaxChatLength is the rune count below which pattern matches route to
	// the conversational handler.
	MaxChatLength int `yaml:"max_chat_length"`

	// Patterns are regular expressions identifying conversational inputs.
	Patterns []string `yaml:"patterns"`
}

// EventsConfig tunes the event stream.
type EventsConfig struct {
	// HeartbeatInterval is the default interval between heartbeat events
	// while a node is in progress.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// SinkBuffer is the bounded event sink capacity.
	SinkBuffer int `yaml:"sink_buffer"`

	// DropNonEssential drops heartbeat and partial events instead of
	// blocking when the sink is full. Terminal events are never dropped.
	DropNonEssential bool `yaml:"drop_non_essential"`
}

// Tables is the full semantic configuration consumed by the engine.
type Tables struct {
	// Categories maps tool category name to its semantics.
	Categories map[string]CategorySemantics `yaml:"categories"`

	// LegacyFieldMap maps legacy envelope key aliases to canonical dotted
	// paths, e.g. "results" -> "data.primary".
	LegacyFieldMap map[string]string `yaml:"legacy_field_map"`

	// Transformers lists the enabled transformer catalogue entries.
	Transformers []string `yaml:"transformers"`

	// Stopwords are filtered out of keyword sets during fuzzy node matching.
	Stopwords []string `yaml:"stopwords"`

	// NodeSuffixes are stripped from placeholder references before fuzzy
	// matching, e.g. "$enhanced_report_node" matches node "enhanced_report".
	NodeSuffixes []string `yaml:"node_suffixes"`

	Router RouterConfig `yaml:"router"`
	Events EventsConfig `yaml:"events"`
}

// Default returns the built-in semantic tables.
func Default() *Tables {
	return &Tables{
		Categories: map[string]CategorySemantics{
			CategoryDataSource: {
				Inputs:   []string{"string", "url"},
				Outputs:  []string{SemanticFileContent, SemanticMetadata},
				Priority: 1,
			},
			CategoryDataProcessor: {
				Inputs:   []string{SemanticFileContent, SemanticImageRef, SemanticMetadata},
				Outputs:  []string{SemanticFileContent, SemanticImageRef},
				Priority: 2,
			},
			CategoryFileOperator: {
				Inputs:   []string{SemanticFileContent, SemanticFilePath},
				Outputs:  []string{SemanticFilePath},
				Priority: 3,
			},
			CategoryStorage: {
				Inputs:   []string{SemanticFilePath},
				Outputs:  []string{SemanticURL},
				Priority: 4,
			},
			CategoryOther: {
				Inputs:   []string{"any"},
				Outputs:  []string{"any"},
				Priority: 5,
			},
		},
		LegacyFieldMap: map[string]string{
			"results":        "data.primary",
			"rotated_images": "data.primary",
			"images":         "data.primary",
			"content":        "data.primary",
			"text":           "data.primary",
			"report":         "data.primary",
			"paths":          "paths",
			"file_path":      "paths",
			"url":            "data.primary",
		},
		Transformers: []string{
			"identity",
			"list_to_array",
			"array_to_list",
			"string_to_number",
			"number_to_string",
			"dict_to_list",
			"list_to_dict",
			"flatten_list",
			"wrap_single",
			"unwrap_single",
		},
		Stopwords: []string{"node", "tool", "the", "a", "an", "of", "for"},
		NodeSuffixes: []string{
			"_node", "_tool", "_processor", "_handler", "_generator",
		},
		Router: RouterConfig{
			MaxChatLength: 60,
			Patterns: []string{
				`(?i)^(hi|hello|hey|yo)\b|^(你好|您好)`,
				`(?i)^(thanks|thank you)\b|^谢谢`,
				`(?i)^(who|what|how) (are|is) (you|your)\b`,
				`(?i)^(good (morning|afternoon|evening))\b`,
			},
		},
		Events: EventsConfig{
			HeartbeatInterval: 5 * time.Second,
			SinkBuffer:        256,
			DropNonEssential:  true,
		},
	}
}

// Load reads a YAML tables file and merges it over the defaults. Missing
// sections keep their default values.
func Load(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML table data merged over the defaults.
func Parse(data []byte) (*Tables, error) {
	var loaded Tables
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	tables := Default()
	if len(loaded.Categories) > 0 {
		for name, sem := range loaded.Categories {
			tables.Categories[name] = sem
		}
	}
	if len(loaded.LegacyFieldMap) > 0 {
		for alias, path := range loaded.LegacyFieldMap {
			tables.LegacyFieldMap[alias] = path
		}
	}
	if len(loaded.Transformers) > 0 {
		tables.Transformers = loaded.Transformers
	}
	if len(loaded.Stopwords) > 0 {
		tables.Stopwords = loaded.Stopwords
	}
	if len(loaded.NodeSuffixes) > 0 {
		tables.NodeSuffixes = loaded.NodeSuffixes
	}
	if loaded.Router.MaxChatLength > 0 {
		tables.Router.MaxChatLength = loaded.Router.MaxChatLength
	}
	if len(loaded.Router.Patterns) > 0 {
		tables.Router.Patterns = loaded.Router.Patterns
	}
	if loaded.Events.HeartbeatInterval > 0 {
		tables.Events.HeartbeatInterval = loaded.Events.HeartbeatInterval
	}
	if loaded.Events.SinkBuffer > 0 {
		tables.Events.SinkBuffer = loaded.Events.SinkBuffer
	}
	if loaded.Events.DropNonEssential {
		tables.Events.DropNonEssential = true
	}
	return tables, nil
}

// CategoryPriority returns the heuristic base priority for a category.
// Unknown categories get the "other" priority.
func (t *Tables) CategoryPriority(category string) int {
	if sem, ok := t.Categories[category]; ok {
		return sem.Priority
	}
	if sem, ok := t.Categories[CategoryOther]; ok {
		return sem.Priority
	}
	return 5
}

// TransformerEnabled reports whether a transformer catalogue entry is active.
func (t *Tables) TransformerEnabled(name string) bool {
	for _, n := range t.Transformers {
		if n == name {
			return true
		}
	}
	return false
}
