package ldif

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowline/target-ldif/internal/endpoint"
)

const (
	defaultOutputPath    = "./output"
	defaultNamingPattern = "{stream_name}_{timestamp}.ldif"
	defaultLineLength    = 78
	minLineLength        = 40
	maxLineLength        = 200
	defaultEncoding      = "utf-8"
	defaultBatchSize     = 1000
)

// Options captures the file.ldif endpoint configuration.
type Options struct {
	OutputPath        string
	FileNamingPattern string
	DNTemplate        string
	BaseDN            string
	AttributeMapping  map[string]string
	ObjectClasses     []string

	// ldif_options
	LineLength        int
	Base64Encode      bool
	IncludeTimestamps bool
	Encoding          string
	FoldLines         bool

	// rotation thresholds, 0 = disabled
	MaxEntriesPerFile int
	MaxBytesPerFile   int64
}

// ParseOptions builds Options from loose parameters.
func ParseOptions(params map[string]any) *Options {
	opts := &Options{
		OutputPath:        firstString(params, "outputPath", "output_path"),
		FileNamingPattern: firstString(params, "fileNamingPattern", "file_naming_pattern"),
		DNTemplate:        firstString(params, "dnTemplate", "dn_template"),
		BaseDN:            firstString(params, "baseDn", "base_dn"),
		AttributeMapping:  stringMap(params, "attributeMapping", "attribute_mapping"),
		ObjectClasses:     stringList(params, "objectClasses", "object_classes"),
		MaxEntriesPerFile: firstInt(params, 0, "maxEntriesPerFile", "max_entries_per_file"),
		MaxBytesPerFile:   int64(firstInt(params, 0, "maxBytesPerFile", "max_bytes_per_file")),
	}

	ldifOpts := subMap(params, "ldifOptions", "ldif_options")
	opts.LineLength = firstInt(ldifOpts, defaultLineLength, "lineLength", "line_length")
	opts.Base64Encode = firstBool(ldifOpts, false, "base64Encode", "base64_encode")
	opts.IncludeTimestamps = firstBool(ldifOpts, true, "includeTimestamps", "include_timestamps")
	opts.Encoding = firstString(ldifOpts, "encoding")
	opts.FoldLines = firstBool(ldifOpts, true, "foldLines", "fold_lines")

	opts.normalizeDefaults()
	return opts
}

// Validate enforces required fields and configured limits.
func (o *Options) Validate() *endpoint.ValidationResult {
	if o.DNTemplate == "" {
		return &endpoint.ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s: dn_template is required", CodeConfigInvalid),
			Code:    CodeConfigInvalid,
		}
	}
	if !strings.Contains(o.DNTemplate, "{") || !strings.Contains(o.DNTemplate, "}") {
		return &endpoint.ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s: dn_template must contain at least one {field} placeholder", CodeConfigInvalid),
			Code:    CodeConfigInvalid,
		}
	}
	if o.OutputPath == "" {
		return &endpoint.ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s: output_path cannot be empty", CodeOutputPathInvalid),
			Code:    CodeOutputPathInvalid,
		}
	}
	if !strings.EqualFold(o.Encoding, defaultEncoding) {
		return &endpoint.ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s: unsupported encoding %q (RFC 2849 LDIF is UTF-8)", CodeConfigInvalid, o.Encoding),
			Code:    CodeConfigInvalid,
		}
	}

	result := &endpoint.ValidationResult{
		Valid:   true,
		Message: "ldif sink configuration looks valid",
	}
	for field, attr := range o.AttributeMapping {
		if !attributeNameRE.MatchString(attr) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("attribute_mapping[%s]: %q is not a valid LDAP attribute name", field, attr))
		}
	}
	return result
}

func (o *Options) normalizeDefaults() {
	if o.OutputPath == "" {
		o.OutputPath = defaultOutputPath
	}
	if o.FileNamingPattern == "" {
		o.FileNamingPattern = defaultNamingPattern
	}
	if o.Encoding == "" {
		o.Encoding = defaultEncoding
	}
	if o.LineLength < minLineLength {
		o.LineLength = minLineLength
	}
	if o.LineLength > maxLineLength {
		o.LineLength = maxLineLength
	}
	if o.AttributeMapping == nil {
		o.AttributeMapping = map[string]string{}
	}
}

func firstString(params map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := params[key]; ok {
			switch t := v.(type) {
			case string:
				return strings.TrimSpace(t)
			case fmt.Stringer:
				return strings.TrimSpace(t.String())
			}
		}
	}
	return ""
}

func firstBool(params map[string]any, defaultVal bool, keys ...string) bool {
	for _, key := range keys {
		if v, ok := params[key]; ok {
			switch t := v.(type) {
			case bool:
				return t
			case string:
				lowered := strings.ToLower(strings.TrimSpace(t))
				if lowered == "true" {
					return true
				}
				if lowered == "false" {
					return false
				}
			}
		}
	}
	return defaultVal
}

func firstInt(params map[string]any, defaultVal int, keys ...string) int {
	for _, key := range keys {
		if v, ok := params[key]; ok {
			switch t := v.(type) {
			case int:
				return t
			case int64:
				return int(t)
			case float64:
				return int(t)
			case string:
				if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
					return i
				}
			}
		}
	}
	return defaultVal
}

func subMap(params map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if v, ok := params[key]; ok {
			if m, ok := v.(map[string]any); ok {
				return m
			}
		}
	}
	return map[string]any{}
}

func stringMap(params map[string]any, keys ...string) map[string]string {
	out := map[string]string{}
	for k, v := range subMap(params, keys...) {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	for _, key := range keys {
		if m, ok := params[key].(map[string]string); ok {
			for k, v := range m {
				out[k] = v
			}
		}
	}
	return out
}

func stringList(params map[string]any, keys ...string) []string {
	for _, key := range keys {
		switch t := params[key].(type) {
		case []string:
			return t
		case []any:
			out := make([]string, 0, len(t))
			for _, v := range t {
				if s, ok := v.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return nil
}
