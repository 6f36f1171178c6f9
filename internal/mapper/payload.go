package mapper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// BuildPayloadURL renders a payload URL template against a draft. {field}
// placeholders are resolved against the mapped fields first, then the
// metadata bag, with case-insensitive and camelCase/snake_case fallback
// lookups. Unresolved placeholders render as empty string. Values are
// URL-encoded.
func BuildPayloadURL(template string, draft *types.WorkItemDraft) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		value, _ := lookupField(name, draft)
		return url.QueryEscape(value)
	})
}

// lookupField resolves a placeholder name against the draft
func lookupField(name string, draft *types.WorkItemDraft) (string, bool) {
	for _, candidate := range nameVariants(name) {
		if v, ok := findInsensitive(draft.Fields, candidate); ok {
			return v, true
		}
		if v, ok := findInsensitive(draft.Metadata, candidate); ok {
			return v, true
		}
	}
	return "", false
}

// nameVariants returns the name plus its camelCase and snake_case forms
func nameVariants(name string) []string {
	variants := []string{name}
	if snake := camelToSnake(name); snake != name {
		variants = append(variants, snake)
	}
	if camel := snakeToCamel(name); camel != name {
		variants = append(variants, camel)
	}
	return variants
}

func findInsensitive(m map[string]string, name string) (string, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

var camelBoundaryRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)

func camelToSnake(name string) string {
	return strings.ToLower(camelBoundaryRe.ReplaceAllString(name, "${1}_${2}"))
}

func snakeToCamel(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) == 1 {
		return name
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
