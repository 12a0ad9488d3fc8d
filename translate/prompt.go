package translate

import (
	"bytes"
	"fmt"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"dxt/config"
)

// PromptValues are available for system prompt template expansion.
type PromptValues struct {
	// Source and Target are English language names.
	Source    string
	Target    string
	SourceTag string
	TargetTag string
}

// LanguageName returns English name of language tag, tag itself when it
// cannot be parsed.
func LanguageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Tags().Name(t); name != "" {
		return name
	}
	return tag
}

// BuildPrompt expands system prompt template.
func BuildPrompt(cfg *config.TranslationConfig) (string, error) {
	tmpl, err := template.New(string(config.PromptTemplateFieldName)).Funcs(sprig.FuncMap()).Parse(cfg.PromptTemplate)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", config.PromptTemplateFieldName, err)
	}

	values := PromptValues{
		Source:    LanguageName(cfg.SourceLanguage),
		Target:    LanguageName(cfg.TargetLanguage),
		SourceTag: cfg.SourceLanguage,
		TargetTag: cfg.TargetLanguage,
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", fmt.Errorf("unable to expand template field %s: %w", config.PromptTemplateFieldName, err)
	}
	return buf.String(), nil
}

// MaxTokens estimates response size for text: a token per four bytes of
// source plus 30% for the target language, clamped to [2000, limit].
func MaxTokens(text string, limit int) int {
	const floor = 2000
	estimate := int(float64(len(text)/4) * 1.3)
	return max(floor, min(estimate, limit))
}
