package ldif

import (
	"encoding/base64"
	"strings"
)

// DefaultWrapLength is the RFC 2849 recommended maximum line length.
const DefaultWrapLength = 76

const (
	asciiSpace = 32
	asciiTilde = 126
)

// Encoder produces RFC 2849 wire encodings for attribute values.
// The zero value encodes with DefaultWrapLength and folding enabled.
type Encoder struct {
	WrapLength  int
	ForceBase64 bool
	FoldLines   bool
}

// NewEncoder builds an encoder from sink options.
func NewEncoder(opts *Options) *Encoder {
	return &Encoder{
		WrapLength:  opts.LineLength,
		ForceBase64: opts.Base64Encode,
		FoldLines:   opts.FoldLines,
	}
}

// Encode returns the LDIF form of value: the value unchanged when it is a
// SAFE-STRING that fits the wrap threshold, a folded multi-line form when it
// is safe but long, or ":: <base64>" when it is unsafe. Encode is total:
// every string input has a defined output.
func (e *Encoder) Encode(value string) string {
	if value == "" {
		return ""
	}
	if e.ForceBase64 || needsBase64(value) {
		return ":: " + base64.StdEncoding.EncodeToString([]byte(value))
	}
	wrap := e.WrapLength
	if wrap <= 0 {
		wrap = DefaultWrapLength
	}
	if !e.FoldLines || len(value) <= wrap {
		return value
	}
	return foldValue(value, wrap)
}

// needsBase64 applies the RFC 2849 SAFE-STRING exception rules: values that
// start with space, colon or '<', or contain any code point outside printable
// ASCII, must be base64-encoded.
func needsBase64(value string) bool {
	switch value[0] {
	case ' ', ':', '<':
		return true
	}
	for _, r := range value {
		if r < asciiSpace || r > asciiTilde {
			return true
		}
	}
	return false
}

// foldValue folds a long value over continuation lines, each starting with a
// single space. Breaks prefer the position after the last space inside the
// window; when none exists the line is cut hard at the threshold. Folding is
// lossless: only the one marker space per continuation line is added, so
// stripping "\n " restores the value byte for byte.
func foldValue(value string, wrap int) string {
	var lines []string
	remaining := value
	for len(remaining) > wrap {
		cut := wrap
		if idx := strings.LastIndex(remaining[:wrap], " "); idx > 0 {
			cut = idx + 1
		}
		lines = append(lines, remaining[:cut])
		remaining = " " + remaining[cut:]
	}
	lines = append(lines, remaining)
	return strings.Join(lines, "\n")
}
