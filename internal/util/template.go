package util

import (
	"bytes"
	"strings"
	"text/template"
)

// RenderTemplate expands {{.Key}} markers in a prompt template against the
// provided values. Text without template markers is returned unchanged
// (fast path). This lives in internal to avoid committing to public API
// stability prematurely.
func RenderTemplate(text string, values map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("prompt").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return "", err
	}

	return buf.String(), nil
}
