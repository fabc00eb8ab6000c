// Package render fills {{name}} placeholders in notification templates.
package render

import (
	"regexp"
	"strings"

	"github.com/dukerupert/herald/internal/model"
)

var placeholderRe = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Render substitutes params into the template's title and body. Placeholders
// without a matching parameter are left verbatim so a missing value shows up
// in the delivered text instead of failing the send.
func Render(tmpl model.Template, params map[string]string) (title, body string) {
	return Fill(tmpl.TitleTemplate, params), Fill(tmpl.BodyTemplate, params)
}

// Fill replaces every {{key}} in s with params[key].
func Fill(s string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		key := m[2 : len(m)-2]
		if v, ok := params[key]; ok {
			return v
		}
		return m
	})
}

// Placeholders lists the distinct keys referenced by s in order of first use.
func Placeholders(s string) []string {
	var keys []string
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

// Missing returns the template keys that params does not supply.
func Missing(tmpl model.Template, params map[string]string) []string {
	var missing []string
	for _, key := range Placeholders(tmpl.TitleTemplate + "\n" + tmpl.BodyTemplate) {
		if _, ok := params[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
