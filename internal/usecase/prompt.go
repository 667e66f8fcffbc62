package usecase

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptTemplate is one named generation prompt loaded from the prompts
// directory. Placeholders {{transcript}}, {{title}} and {{url}} are replaced
// at render time.
type PromptTemplate struct {
	Name        string  `yaml:"name"`
	System      string  `yaml:"system"`
	Template    string  `yaml:"template"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}

// LoadPrompt reads <dir>/<platform>.yaml.
func LoadPrompt(dir, platform string) (PromptTemplate, error) {
	path := filepath.Join(dir, platform+".yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return PromptTemplate{}, fmt.Errorf("read prompt %s: %w", path, err)
	}

	var prompt PromptTemplate
	if err := yaml.Unmarshal(raw, &prompt); err != nil {
		return PromptTemplate{}, fmt.Errorf("parse prompt %s: %w", path, err)
	}
	if strings.TrimSpace(prompt.Template) == "" {
		return PromptTemplate{}, fmt.Errorf("prompt %s has empty template", path)
	}
	if prompt.Name == "" {
		prompt.Name = platform
	}
	return prompt, nil
}

// Render substitutes the item's transcript and metadata into the template.
func (p PromptTemplate) Render(transcript, title, url string) string {
	replacer := strings.NewReplacer(
		"{{transcript}}", transcript,
		"{{title}}", title,
		"{{url}}", url,
	)
	return replacer.Replace(p.Template)
}
