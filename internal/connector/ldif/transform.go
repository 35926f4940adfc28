package ldif

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TransformFunc converts a raw field value into its attribute string form.
// Returning ok=false (or an empty string) drops the attribute from the entry.
type TransformFunc func(value any) (string, bool)

// transformRule pairs an attribute-name predicate with a transform. Rules are
// evaluated top to bottom; the first match wins.
type transformRule struct {
	name  string
	match func(attr string) bool
	apply TransformFunc
}

var builtinRules = []transformRule{
	{name: "email", match: exactly("mail", "email"), apply: TransformEmail},
	{name: "phone", match: exactly("telephonenumber", "phone", "mobile"), apply: TransformPhone},
	{name: "name", match: exactly("givenname", "sn", "cn", "displayname"), apply: TransformName},
	{name: "timestamp", match: exactly("createtimestamp", "modifytimestamp"), apply: TransformTimestamp},
	{name: "boolean", match: func(attr string) bool {
		return strings.HasSuffix(attr, "boolean") || strings.HasPrefix(attr, "is")
	}, apply: TransformBoolean},
}

func exactly(names ...string) func(string) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(attr string) bool {
		_, ok := set[attr]
		return ok
	}
}

// MapAttributeName resolves the target attribute name for a source field:
// the explicit mapping when present, otherwise the field name lowercased with
// underscores stripped. A derived name that still is not a valid LDAP
// attribute name is coerced through SanitizeAttributeName; explicit mappings
// are taken as-is (Options.Validate warns about invalid ones).
func MapAttributeName(field string, mapping map[string]string) string {
	if mapped, ok := mapping[field]; ok && mapped != "" {
		return mapped
	}
	attr := strings.ReplaceAll(strings.ToLower(field), "_", "")
	if !attributeNameRE.MatchString(attr) {
		return SanitizeAttributeName(attr)
	}
	return attr
}

// Normalize maps a source field to its attribute name and value. Custom
// transforms are keyed by the resolved attribute name and take precedence
// over the built-in rule table. keep=false means the attribute is omitted
// from the entry (value was null, invalid, or transformed to empty).
func Normalize(field string, value any, mapping map[string]string, custom map[string]TransformFunc) (attr, out string, keep bool) {
	attr = MapAttributeName(field, mapping)
	if value == nil {
		return attr, "", false
	}

	if fn, ok := custom[attr]; ok {
		out, keep = fn(value)
		return attr, out, keep && out != ""
	}

	lowered := strings.ToLower(attr)
	for _, rule := range builtinRules {
		if rule.match(lowered) {
			out, keep = rule.apply(value)
			return attr, out, keep && out != ""
		}
	}

	out = strings.TrimSpace(stringify(value))
	return attr, out, out != ""
}

// TransformTimestamp passes through time.Time and ISO-8601 strings as
// RFC 3339; ISO-like strings with a trailing Z or no zone are treated as UTC.
// Non-parseable strings pass through unchanged.
func TransformTimestamp(value any) (string, bool) {
	switch t := value.(type) {
	case time.Time:
		return t.Format(time.RFC3339), true
	case string:
		if formatted, ok := parseISOTimestamp(t); ok {
			return formatted, true
		}
		return t, t != ""
	default:
		s := strings.TrimSpace(stringify(value))
		return s, s != ""
	}
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseISOTimestamp(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.Format(time.RFC3339), true
	}
	// Zone-less forms: a trailing Z or no zone at all both mean UTC.
	for _, layout := range zonelessLayouts {
		if ts, err := time.ParseInLocation(layout, strings.TrimSuffix(s, "Z"), time.UTC); err == nil {
			return ts.Format(time.RFC3339), true
		}
	}
	return "", false
}

// TransformBoolean maps true-like values to "TRUE" and false-like values to
// "FALSE". Anything else is dropped.
func TransformBoolean(value any) (string, bool) {
	switch t := value.(type) {
	case bool:
		if t {
			return "TRUE", true
		}
		return "FALSE", true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1", "on":
			return "TRUE", true
		case "false", "no", "0", "off":
			return "FALSE", true
		}
	}
	return "", false
}

// TransformEmail lowercases and strips; values without both '@' and '.' are
// dropped.
func TransformEmail(value any) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(stringify(value)))
	if strings.Contains(email, "@") && strings.Contains(email, ".") {
		return email, true
	}
	return "", false
}

// TransformPhone strips everything except digits, '+', '-', space and
// parentheses.
func TransformPhone(value any) (string, bool) {
	var b strings.Builder
	for _, r := range stringify(value) {
		if r >= '0' && r <= '9' || strings.ContainsRune("+- ()", r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	return out, out != ""
}

// TransformName strips and title-cases each whitespace-separated word.
func TransformName(value any) (string, bool) {
	words := strings.Fields(stringify(value))
	for i, w := range words {
		words[i] = capitalize(w)
	}
	out := strings.Join(words, " ")
	return out, out != ""
}

func capitalize(word string) string {
	runes := []rune(strings.ToLower(word))
	if len(runes) == 0 {
		return ""
	}
	first := strings.ToUpper(string(runes[0]))
	return first + string(runes[1:])
}

// stringify renders a scalar the way LDIF consumers expect: JSON numbers
// without a float suffix when integral, RFC 3339 for times.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return stringify(float64(t))
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
