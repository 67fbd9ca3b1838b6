// Package prompt builds the completion prompt for one chunk of a demo
// script: a fixed instruction prefix, the chunk delimited by triple
// backticks, and a fixed instruction suffix.
//
// Templates may contain the placeholders {{targetLang}}, {{targetCountry}}
// and {{targetName}}. They can be overridden with a prompts.json file:
//
//	{
//	  "prefix": "Translate ... into {{targetLang}} ...",
//	  "suffix": "..."
//	}
package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Delimiter wraps the chunk so the model reads it as content, not as
// instructions.
const Delimiter = "```"

// DefaultPrefix opens every prompt.
const DefaultPrefix = "Translate the following text delimited by triple backticks into {{targetLang}} " +
	"and replace names of people from a country {{targetCountry}} with {{targetName}}:\n"

// DefaultSuffix closes every prompt.
const DefaultSuffix = `While replacing names of people from {{targetCountry}}, make sure the same name is localized the same way in every occurrence. ` +
	`For instance, if Alex Smith is to be changed to Rahul Sharma (considering the chosen country is India), ` +
	`then every occurrence of Alex Smith must become Rahul Sharma and every occurrence of Alex alone must become Rahul. ` +
	`Apply the same rule to the corresponding parts of {{targetName}}. Keep the layout and formatting the same.`

// Target holds the free-form localization parameters.
type Target struct {
	// Language is the language to translate into (e.g., "French").
	Language string
	// Country is the country whose person names get replaced (e.g., "India").
	Country string
	// Name is the replacement person name (e.g., "Rahul Sharma").
	Name string
}

// Builder renders prompts from a prefix and a suffix template.
type Builder struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

// Default returns the built-in templates.
func Default() Builder {
	return Builder{Prefix: DefaultPrefix, Suffix: DefaultSuffix}
}

// Build returns the prompt for chunk. It is deterministic: the same chunk
// and target always give the same prompt.
func (b Builder) Build(chunk string, t Target) string {
	prefix, suffix := b.Prefix, b.Suffix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}

	r := strings.NewReplacer(
		"{{targetLang}}", t.Language,
		"{{targetCountry}}", t.Country,
		"{{targetName}}", t.Name,
	)

	var sb strings.Builder
	sb.Grow(len(prefix) + len(chunk) + len(suffix) + 2*len(Delimiter) + 1)
	sb.WriteString(r.Replace(prefix))
	sb.WriteString(Delimiter)
	sb.WriteString(chunk)
	sb.WriteString(Delimiter)
	sb.WriteString("\n")
	sb.WriteString(r.Replace(suffix))
	return sb.String()
}

// LoadFile reads templates from a JSON file. Missing fields keep their
// built-in values. A file that does not exist is not an error: the
// built-in templates are returned.
func LoadFile(path string) (Builder, error) {
	b := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return b, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var custom Builder
	if err := json.Unmarshal(data, &custom); err != nil {
		return b, fmt.Errorf("failed to parse prompts file: %w", err)
	}
	if custom.Prefix != "" {
		b.Prefix = custom.Prefix
	}
	if custom.Suffix != "" {
		b.Suffix = custom.Suffix
	}
	return b, nil
}

// WriteDefaultFile writes the built-in templates to path as formatted JSON.
func WriteDefaultFile(path string) error {
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling default prompts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating prompts directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing default prompts file: %w", err)
	}
	return nil
}
