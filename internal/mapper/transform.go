package mapper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dispatchworks/taskhub/backend/internal/types"
)

// dateLayouts are tried in order when a mapping has no explicit layout
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
}

// applyTransform applies a mapping's single transform to a value. The
// TransformKind switch is exhaustive; an unknown kind is a configuration
// error, not a silent pass-through.
func applyTransform(m types.FieldMapping, value string) (string, error) {
	switch m.Transform {
	case types.TransformNone:
		return value, nil

	case types.TransformUppercase:
		return strings.ToUpper(value), nil

	case types.TransformLowercase:
		return strings.ToLower(value), nil

	case types.TransformTrim:
		return strings.TrimSpace(value), nil

	case types.TransformNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return "", fmt.Errorf("value %q is not numeric", value)
		}
		return strconv.FormatFloat(n, 'f', -1, 64), nil

	case types.TransformDate:
		return transformDate(value, m.TransformArg)

	case types.TransformRegexExtract:
		return transformRegexExtract(value, m.TransformArg)

	case types.TransformTemplate:
		// Template substitution on {value}.
		return strings.ReplaceAll(m.TransformArg, "{value}", value), nil

	case types.TransformLookup:
		if mapped, ok := m.Lookup[value]; ok {
			return mapped, nil
		}
		return m.LookupDefault, nil

	case types.TransformSplit:
		sep := m.TransformArg
		if sep == "" {
			sep = ","
		}
		parts := strings.Split(value, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return strings.Join(parts, ","), nil

	default:
		return "", fmt.Errorf("unknown transform %q", m.Transform)
	}
}

// transformDate parses a date and renders it as ISO8601 (RFC3339)
func transformDate(value, layout string) (string, error) {
	value = strings.TrimSpace(value)
	layouts := dateLayouts
	if layout != "" {
		layouts = []string{layout}
	}
	for _, l := range layouts {
		if parsed, err := time.Parse(l, value); err == nil {
			return parsed.Format(time.RFC3339), nil
		}
	}
	return "", fmt.Errorf("value %q is not a recognized date", value)
}

// transformRegexExtract returns capture group 1 when the pattern defines
// one, falling back to the whole match
func transformRegexExtract(value, pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %v", pattern, err)
	}
	groups := re.FindStringSubmatch(value)
	if groups == nil {
		return "", fmt.Errorf("value %q does not match pattern %q", value, pattern)
	}
	if len(groups) > 1 {
		return groups[1], nil
	}
	return groups[0], nil
}
