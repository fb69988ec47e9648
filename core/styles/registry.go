// Package styles defines the annotation style registry consumed by the
// projector: a mapping from (event kind, optional interaction type) to
// display class, label and tooltip template. The registry is an
// explicit configuration value constructed once by the host and passed
// as a parameter, never looked up through ambient state.
package styles

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
)

type Key struct {
	Kind            schematwff.EventKind
	InteractionType string
}

type Style struct {
	DisplayClass    string
	Label           string
	TooltipTemplate string
}

type Registry struct {
	styles map[Key]Style
}

func NewRegistry() Registry {
	return Registry{styles: map[Key]Style{}}
}

func (r Registry) Set(key Key, style Style) {
	r.styles[key] = style
}

// Lookup resolves the style for an event. A miss on the exact
// (kind, interaction) key falls back to the kind-only entry.
func (r Registry) Lookup(kind schematwff.EventKind, interactionType string) (Style, bool) {
	if style, ok := r.styles[Key{Kind: kind, InteractionType: interactionType}]; ok {
		return style, true
	}
	if interactionType != "" {
		if style, ok := r.styles[Key{Kind: kind}]; ok {
			return style, true
		}
	}
	return Style{}, false
}

func (r Registry) Len() int {
	return len(r.styles)
}

// Default mirrors the annotation types the original editor ships:
// paraphrased, generated and pasted passages, extended to cover every
// interaction type the schema allows.
func Default() Registry {
	registry := NewRegistry()
	registry.Set(Key{Kind: schematwff.EventPaste, InteractionType: schematwff.PasteSourceExternal}, Style{
		DisplayClass:    "ann-external",
		Label:           "External Source",
		TooltipTemplate: "Text pasted from an external source ({char_count} chars)",
	})
	registry.Set(Key{Kind: schematwff.EventPaste, InteractionType: schematwff.PasteSourceAI}, Style{
		DisplayClass:    "ann-generated",
		Label:           "AI Generated",
		TooltipTemplate: "Text pasted from an AI assistant ({char_count} chars)",
	})
	registry.Set(Key{Kind: schematwff.EventPaste}, Style{
		DisplayClass:    "ann-external",
		Label:           "Pasted",
		TooltipTemplate: "Pasted text ({char_count} chars)",
	})
	registry.Set(Key{Kind: schematwff.EventEdit}, Style{
		DisplayClass:    "ann-edit",
		Label:           "Human Edit",
		TooltipTemplate: "Edited by the author",
	})
	registry.Set(Key{Kind: schematwff.EventAIInteraction, InteractionType: schematwff.InteractionParaphrase}, Style{
		DisplayClass:    "ann-paraphrase",
		Label:           "AI Paraphrase",
		TooltipTemplate: "Text rewritten by {model} ({acceptance})",
	})
	registry.Set(Key{Kind: schematwff.EventAIInteraction, InteractionType: schematwff.InteractionDraft}, Style{
		DisplayClass:    "ann-generated",
		Label:           "AI Generated",
		TooltipTemplate: "Text written by {model} ({acceptance})",
	})
	registry.Set(Key{Kind: schematwff.EventAIInteraction, InteractionType: schematwff.InteractionContinue}, Style{
		DisplayClass:    "ann-completion",
		Label:           "AI Completion",
		TooltipTemplate: "Continuation written by {model} ({acceptance})",
	})
	registry.Set(Key{Kind: schematwff.EventAIInteraction}, Style{
		DisplayClass:    "ann-assisted",
		Label:           "AI Assisted",
		TooltipTemplate: "{interaction_type} by {model} ({acceptance})",
	})
	return registry
}

type registryFile struct {
	Style []registryEntry `toml:"style"`
}

type registryEntry struct {
	Kind            string `toml:"kind"`
	InteractionType string `toml:"interaction_type"`
	DisplayClass    string `toml:"display_class"`
	Label           string `toml:"label"`
	TooltipTemplate string `toml:"tooltip_template"`
}

// ParseTOML builds a registry from a TOML document of [[style]]
// entries.
func ParseTOML(data []byte) (Registry, error) {
	var file registryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return Registry{}, fmt.Errorf("parse style registry: %w", err)
	}
	if len(file.Style) == 0 {
		return Registry{}, fmt.Errorf("style registry defines no styles")
	}
	registry := NewRegistry()
	for position, entry := range file.Style {
		kind := schematwff.EventKind(entry.Kind)
		if !schematwff.KnownEventKind(kind) {
			return Registry{}, fmt.Errorf("style %d: unknown event kind %q", position+1, entry.Kind)
		}
		if entry.DisplayClass == "" {
			return Registry{}, fmt.Errorf("style %d: display_class is required", position+1)
		}
		registry.Set(Key{Kind: kind, InteractionType: entry.InteractionType}, Style{
			DisplayClass:    entry.DisplayClass,
			Label:           entry.Label,
			TooltipTemplate: entry.TooltipTemplate,
		})
	}
	return registry, nil
}

// LoadTOML reads a registry file from disk.
func LoadTOML(path string) (Registry, error) {
	// #nosec G304 -- registry path is an explicit local path.
	data, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, fmt.Errorf("read style registry: %w", err)
	}
	return ParseTOML(data)
}
