package ldif

import (
	"regexp"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/flowline/target-ldif/internal/endpoint"
)

var (
	placeholderRE = regexp.MustCompile(`\{([^{}]+)\}`)

	// One or more attr=value components joined by commas. Attribute types
	// start with a letter; values are any non-comma run.
	dnShapeRE = regexp.MustCompile(`^[a-zA-Z][\w\-]*\s*=\s*[^,]+(?:\s*,\s*[a-zA-Z][\w\-]*\s*=\s*[^,]+)*$`)
)

// BuildDN resolves every {field} placeholder in template against the record,
// appends baseDN when given, and validates the result has DN shape.
// Deterministic and side-effect free.
func BuildDN(record endpoint.Record, template, baseDN string) (string, error) {
	if template == "" {
		return "", &DNError{Code: CodeDNInvalidFormat, Template: template, Reason: "template is empty"}
	}

	missing := ""
	resolved := placeholderRE.ReplaceAllStringFunc(template, func(m string) string {
		field := m[1 : len(m)-1]
		v, ok := record[field]
		if !ok || v == nil {
			if missing == "" {
				missing = field
			}
			return m
		}
		return stringify(v)
	})
	if missing != "" {
		return "", &DNError{Code: CodeDNMissingField, Field: missing, Template: template}
	}
	if strings.ContainsAny(resolved, "{}") {
		return "", &DNError{Code: CodeDNUnresolved, Template: template, DN: resolved}
	}

	if baseDN != "" {
		resolved = resolved + "," + baseDN
	}
	resolved = strings.TrimSpace(resolved)

	if !dnShapeRE.MatchString(resolved) {
		return "", &DNError{Code: CodeDNInvalidFormat, Template: template, DN: resolved, Reason: "not in attr=value[,attr=value]* form"}
	}
	// RFC 4514 sanity pass on top of the shape gate.
	if _, err := ldap.ParseDN(resolved); err != nil {
		return "", &DNError{Code: CodeDNInvalidFormat, Template: template, DN: resolved, Reason: err.Error()}
	}
	return resolved, nil
}
