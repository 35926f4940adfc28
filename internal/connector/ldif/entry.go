package ldif

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowline/target-ldif/internal/endpoint"
)

// defaultObjectClasses are applied when neither the record nor the
// configuration declares any.
var defaultObjectClasses = []string{"inetOrgPerson", "person"}

// Entry is one resolved unit of output: a DN, object classes, and attributes
// in field-encounter order. Entries are built fully in memory, written once,
// and never mutated afterwards.
type Entry struct {
	DN            string
	ObjectClasses []string
	Attributes    []Attribute

	// Dropped counts attributes omitted because a transform rejected their
	// value (distinct from "field absent", which does not count).
	Dropped int
}

// Attribute is a named attribute with one or more values.
type Attribute struct {
	Name   string
	Values []string
}

// validate mirrors the entity invariants: non-empty DN, at least one object
// class, at least one attribute.
func (e *Entry) validate() error {
	if e.DN == "" {
		return wrapError(CodeEntryInvalid, false, fmt.Errorf("entry has empty DN"))
	}
	if len(e.ObjectClasses) == 0 {
		return wrapError(CodeEntryInvalid, false, fmt.Errorf("entry %q has no object classes", e.DN))
	}
	if len(e.Attributes) == 0 {
		return wrapError(CodeEntryInvalid, false, fmt.Errorf("entry %q has no attributes", e.DN))
	}
	return nil
}

// Render serializes the entry per RFC 2849: the dn line, objectClass lines,
// attribute lines, then a blank separator line.
func (e *Entry) Render(enc *Encoder) string {
	var b strings.Builder
	renderLine(&b, "dn", e.DN, enc)
	for _, oc := range e.ObjectClasses {
		renderLine(&b, "objectClass", oc, enc)
	}
	for _, attr := range e.Attributes {
		for _, v := range attr.Values {
			renderLine(&b, attr.Name, v, enc)
		}
	}
	b.WriteString("\n")
	return b.String()
}

func renderLine(b *strings.Builder, name, value string, enc *Encoder) {
	encoded := enc.Encode(value)
	b.WriteString(name)
	if strings.HasPrefix(encoded, ":: ") {
		// base64 form carries its own ":: " separator
		b.WriteString(encoded)
	} else {
		b.WriteString(": ")
		b.WriteString(encoded)
	}
	b.WriteString("\n")
}

// Assembler converts records into entries using the configured DN template,
// attribute mapping and transforms.
type Assembler struct {
	opts   *Options
	custom map[string]TransformFunc
}

// NewAssembler builds an assembler. custom transforms are keyed by resolved
// attribute name and may be nil.
func NewAssembler(opts *Options, custom map[string]TransformFunc) *Assembler {
	return &Assembler{opts: opts, custom: custom}
}

// Assemble converts one record into an entry. fieldOrder fixes the attribute
// emission order; record fields not listed there follow in sorted order.
// Failures are record-level: the caller skips the record and continues.
func (a *Assembler) Assemble(record endpoint.Record, fieldOrder []string) (*Entry, error) {
	dn, err := BuildDN(record, a.opts.DNTemplate, a.opts.BaseDN)
	if err != nil {
		return nil, err
	}

	entry := &Entry{DN: dn}
	index := map[string]int{}

	for _, field := range orderedFields(record, fieldOrder) {
		value := record[field]
		if value == nil || strings.EqualFold(field, "dn") {
			continue
		}
		for _, element := range elements(value) {
			attr, out, keep := Normalize(field, element, a.opts.AttributeMapping, a.custom)
			if !keep {
				if element != nil {
					entry.Dropped++
				}
				continue
			}
			if strings.EqualFold(attr, "objectclass") {
				entry.ObjectClasses = append(entry.ObjectClasses, out)
				continue
			}
			if i, ok := index[attr]; ok {
				entry.Attributes[i].Values = append(entry.Attributes[i].Values, out)
			} else {
				index[attr] = len(entry.Attributes)
				entry.Attributes = append(entry.Attributes, Attribute{Name: attr, Values: []string{out}})
			}
		}
	}

	if len(entry.ObjectClasses) == 0 {
		if len(a.opts.ObjectClasses) > 0 {
			entry.ObjectClasses = append(entry.ObjectClasses, a.opts.ObjectClasses...)
		} else {
			entry.ObjectClasses = append(entry.ObjectClasses, defaultObjectClasses...)
		}
	}

	deriveNameAttributes(entry, index)

	if err := entry.validate(); err != nil {
		return nil, err
	}
	return entry, nil
}

// deriveNameAttributes best-effort satisfies the person object class: a
// missing cn is derived from givenName+sn, displayName, or uid (falling back
// to "Unknown User"); a missing sn becomes the last word of cn.
func deriveNameAttributes(entry *Entry, index map[string]int) {
	first := func(attr string) string {
		if i, ok := index[attr]; ok && len(entry.Attributes[i].Values) > 0 {
			return entry.Attributes[i].Values[0]
		}
		return ""
	}
	add := func(attr, value string) {
		index[attr] = len(entry.Attributes)
		entry.Attributes = append(entry.Attributes, Attribute{Name: attr, Values: []string{value}})
	}

	if first("cn") == "" {
		switch {
		case first("givenname") != "" && first("sn") != "":
			add("cn", first("givenname")+" "+first("sn"))
		case first("displayname") != "":
			add("cn", first("displayname"))
		case first("uid") != "":
			add("cn", first("uid"))
		default:
			add("cn", "Unknown User")
		}
	}

	if first("sn") == "" {
		sn := "Unknown"
		if words := strings.Fields(first("cn")); len(words) > 0 {
			sn = words[len(words)-1]
		}
		add("sn", sn)
	}
}

// orderedFields returns the record's field names: schema-declared order
// first, then any remaining fields sorted for determinism.
func orderedFields(record endpoint.Record, fieldOrder []string) []string {
	out := make([]string, 0, len(record))
	seen := make(map[string]struct{}, len(record))
	for _, f := range fieldOrder {
		if _, ok := record[f]; ok {
			out = append(out, f)
			seen[f] = struct{}{}
		}
	}
	var rest []string
	for f := range record {
		if _, ok := seen[f]; !ok {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// elements splits a multi-valued field into its scalar elements.
func elements(value any) []any {
	switch t := value.(type) {
	case []any:
		out := make([]any, 0, len(t))
		for _, v := range t {
			if v != nil {
				out = append(out, v)
			}
		}
		return out
	case []string:
		out := make([]any, 0, len(t))
		for _, v := range t {
			out = append(out, v)
		}
		return out
	default:
		return []any{value}
	}
}
