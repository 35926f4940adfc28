package ldif

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flowline/target-ldif/internal/endpoint"
)

// maxAttributeValueLength caps single attribute values; longer values are
// reported, not truncated.
const maxAttributeValueLength = 1024

var (
	attributeNameRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9\-]*$`)

	// identifierFields are the fields a record or schema needs at least one
	// of for DN generation to stand a chance.
	identifierFields = []string{"id", "uid", "user_id", "username", "dn"}
)

// ValidateRecord checks a record for LDIF compatibility and returns
// human-readable findings. An empty slice means the record is clean. Findings
// are advisory: the caller decides severity.
func ValidateRecord(record endpoint.Record) []string {
	if len(record) == 0 {
		return []string{"record cannot be empty"}
	}

	var findings []string
	if !hasIdentifierField(record) {
		findings = append(findings, fmt.Sprintf(
			"record has no identifier field (one of %s)", strings.Join(identifierFields, ", ")))
	}

	for field, value := range record {
		// Check the default-derived name before sanitization kicks in, so a
		// field that only exports under a coerced name is still reported.
		derived := strings.ReplaceAll(strings.ToLower(field), "_", "")
		if !attributeNameRE.MatchString(derived) {
			findings = append(findings, fmt.Sprintf("invalid field name: %q", field))
		}
		if s, ok := value.(string); ok && len(s) > maxAttributeValueLength {
			findings = append(findings, fmt.Sprintf(
				"value of %q exceeds %d characters", field, maxAttributeValueLength))
		}
	}
	return findings
}

// ValidateSchema checks that a stream schema is usable for LDIF export.
func ValidateSchema(schema *endpoint.Schema) []string {
	if schema == nil || len(schema.Fields) == 0 {
		return []string{"schema declares no fields"}
	}

	var findings []string
	found := false
	for _, f := range schema.Fields {
		for _, id := range identifierFields {
			if strings.EqualFold(f.Name, id) {
				found = true
			}
		}
	}
	if !found {
		findings = append(findings, fmt.Sprintf(
			"schema has no identifier field (one of %s)", strings.Join(identifierFields, ", ")))
	}
	return findings
}

// SanitizeAttributeName coerces an arbitrary field name into a valid LDAP
// attribute name: lowercased, invalid runes stripped, prefixed with "attr"
// when the result starts with a non-letter, "unknownattr" when empty.
func SanitizeAttributeName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range lowered {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "unknownattr"
	}
	if out[0] < 'a' || out[0] > 'z' {
		return "attr" + out
	}
	return out
}

func hasIdentifierField(record endpoint.Record) bool {
	for _, id := range identifierFields {
		if _, ok := record[id]; ok {
			return true
		}
	}
	return false
}
