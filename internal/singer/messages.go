// Package singer implements the subset of the Singer tap/target protocol the
// runtime consumes: SCHEMA, RECORD and STATE messages as JSON lines.
package singer

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/flowline/target-ldif/internal/endpoint"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type MessageType string

const (
	TypeSchema MessageType = "SCHEMA"
	TypeRecord MessageType = "RECORD"
	TypeState  MessageType = "STATE"
)

// Message is one line of tap output.
type Message struct {
	Type          MessageType    `json:"type"`
	Stream        string         `json:"stream,omitempty"`
	Record        map[string]any `json:"record,omitempty"`
	Schema        *RawSchema     `json:"schema,omitempty"`
	KeyProperties []string       `json:"key_properties,omitempty"`
	Value         map[string]any `json:"value,omitempty"`
}

// RawSchema is the JSON-schema fragment carried by SCHEMA messages.
type RawSchema struct {
	Properties map[string]Property `json:"properties"`
}

// Property declares one field. Type is a string or a list of strings per
// JSON schema.
type Property struct {
	Type   any    `json:"type,omitempty"`
	Format string `json:"format,omitempty"`
}

// ParseMessage decodes and validates one tap line.
func ParseMessage(line []byte) (*Message, error) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil, fmt.Errorf("empty input line")
	}
	var msg Message
	if err := json.UnmarshalFromString(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	switch msg.Type {
	case TypeRecord:
		if msg.Stream == "" || msg.Record == nil {
			return nil, fmt.Errorf("RECORD message requires stream and record")
		}
	case TypeSchema:
		if msg.Stream == "" || msg.Schema == nil {
			return nil, fmt.Errorf("SCHEMA message requires stream and schema")
		}
	case TypeState:
		// value may legitimately be empty
	case "":
		return nil, fmt.Errorf("message missing required type field")
	default:
		return nil, fmt.Errorf("unsupported message type %q", msg.Type)
	}
	return &msg, nil
}

// ToSchema converts the JSON-schema fragment into the runtime schema form.
// Properties are ordered by name; JSON objects do not preserve key order.
func (s *RawSchema) ToSchema(keyProperties []string) *endpoint.Schema {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	schema := &endpoint.Schema{KeyProperties: keyProperties}
	for i, name := range names {
		prop := s.Properties[name]
		dataType, nullable := propertyType(prop)
		schema.Fields = append(schema.Fields, &endpoint.FieldDefinition{
			Name:     name,
			DataType: dataType,
			Nullable: nullable,
			Position: i,
		})
	}
	return schema
}

func propertyType(prop Property) (dataType string, nullable bool) {
	dataType = "string"
	switch t := prop.Type.(type) {
	case string:
		dataType = t
	case []any:
		for _, v := range t {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if s == "null" {
				nullable = true
				continue
			}
			dataType = s
		}
	}
	if prop.Format == "date-time" {
		dataType = "timestamp"
	}
	return dataType, nullable
}

// MalformedLineError marks a line that could not be parsed as a tap
// message. Callers typically count and skip these rather than abort.
type MalformedLineError struct {
	Line int
	Err  error
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *MalformedLineError) Unwrap() error { return e.Err }

// Decoder reads tap messages line by line.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// maxLineBytes bounds a single tap message (large records carry blobs).
const maxLineBytes = 16 * 1024 * 1024

// NewDecoder wraps r in a line decoder.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Decoder{scanner: scanner}
}

// Next returns the next message, skipping blank lines. io.EOF signals a
// clean end of input.
func (d *Decoder) Next() (*Message, error) {
	for d.scanner.Scan() {
		d.line++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" {
			continue
		}
		msg, err := ParseMessage([]byte(text))
		if err != nil {
			return nil, &MalformedLineError{Line: d.line, Err: err}
		}
		return msg, nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Line reports the last line number consumed.
func (d *Decoder) Line() int { return d.line }

// WriteState emits a STATE message to w, newline-terminated.
func WriteState(w io.Writer, value map[string]any) error {
	msg := Message{Type: TypeState, Value: value}
	out, err := json.Marshal(&msg)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}
