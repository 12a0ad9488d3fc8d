package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"

	"dxt/config"
	"dxt/state"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context string
	// Name is source file name without directory and extension.
	Name string
	// SourceFile is source path relative to processing root.
	SourceFile     string
	SourceLanguage string
	TargetLanguage string
	RunID          string
	Date           string
}

func newValues(src string, env *state.LocalEnv) Values {
	return Values{
		Name:           strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
		SourceFile:     filepath.ToSlash(src),
		SourceLanguage: env.Cfg.Translation.SourceLanguage,
		TargetLanguage: env.Cfg.Translation.TargetLanguage,
		RunID:          env.RunID,
		Date:           time.Now().Format("2006-01-02"),
	}
}

func expandTemplate(name config.TemplateFieldName, field string, values Values) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values.Context = string(name)

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
