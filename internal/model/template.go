package model

import (
	"encoding/json"
	"strings"
	"time"
)

type TemplateCategory string

const (
	TemplateCategoryMarketing      TemplateCategory = "MARKETING"
	TemplateCategoryUtility        TemplateCategory = "UTILITY"
	TemplateCategoryAuthentication TemplateCategory = "AUTHENTICATION"
)

// Template is the canonical message template definition as approved by
// the provider. Read-only to this service.
type Template struct {
	Name            string           `json:"name" db:"name"`
	Language        string           `json:"language" db:"language"`
	Category        TemplateCategory `json:"category" db:"category"`
	ParameterFormat string           `json:"parameter_format" db:"parameter_format"`
	Components      json.RawMessage  `json:"components" db:"components"`
	SpecHash        string           `json:"spec_hash" db:"spec_hash"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// TemplateSnapshot is the immutable copy of a template frozen against a
// campaign at first dispatch. Never mutated after first write; used to
// detect drift when the underlying template is edited mid-campaign.
type TemplateSnapshot struct {
	Name            string          `json:"name"`
	Language        string          `json:"language"`
	Category        TemplateCategory `json:"category"`
	ParameterFormat string          `json:"parameter_format"`
	SpecHash        string          `json:"spec_hash"`
	Components      json.RawMessage `json:"components"`
	CapturedAt      time.Time       `json:"captured_at"`
}

// RequiredVariables extracts the placeholder names the template's body
// components reference. Positional templates yield "1", "2", ...;
// named-parameter templates yield the declared names.
func (t *Template) RequiredVariables() []string {
	return requiredVariables(t.Components)
}

// RequiredVariables reports the placeholders of the frozen definition,
// which may differ from the live template's after an edit.
func (s TemplateSnapshot) RequiredVariables() []string {
	return requiredVariables(s.Components)
}

func requiredVariables(raw json.RawMessage) []string {
	var components []struct {
		Type    string   `json:"type"`
		Text    string   `json:"text"`
		Example *struct {
			BodyTextNamedParams []struct {
				ParamName string `json:"param_name"`
			} `json:"body_text_named_params"`
		} `json:"example"`
	}
	if err := json.Unmarshal(raw, &components); err != nil {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	for _, c := range components {
		if c.Example != nil {
			for _, p := range c.Example.BodyTextNamedParams {
				if p.ParamName != "" && !seen[p.ParamName] {
					seen[p.ParamName] = true
					out = append(out, p.ParamName)
				}
			}
		}
		for _, name := range extractPlaceholders(c.Text) {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// extractPlaceholders finds {{...}} tokens in template text.
func extractPlaceholders(text string) []string {
	var out []string
	for {
		start := strings.Index(text, "{{")
		if start < 0 {
			return out
		}
		rest := text[start+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			return out
		}
		if name := strings.TrimSpace(rest[:end]); name != "" {
			out = append(out, name)
		}
		text = rest[end+2:]
	}
}
