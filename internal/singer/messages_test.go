package singer_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/target-ldif/internal/singer"
)

func TestParseMessageRecord(t *testing.T) {
	msg, err := singer.ParseMessage([]byte(`{"type":"RECORD","stream":"users","record":{"uid":"jdoe"}}`))
	require.NoError(t, err)
	assert.Equal(t, singer.TypeRecord, msg.Type)
	assert.Equal(t, "users", msg.Stream)
	assert.Equal(t, "jdoe", msg.Record["uid"])
}

func TestParseMessageSchema(t *testing.T) {
	line := `{"type":"SCHEMA","stream":"users","schema":{"properties":{"uid":{"type":"string"}}},"key_properties":["uid"]}`
	msg, err := singer.ParseMessage([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, singer.TypeSchema, msg.Type)
	require.NotNil(t, msg.Schema)
	assert.Equal(t, []string{"uid"}, msg.KeyProperties)
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"not json", "not json at all"},
		{"missing type", `{"stream":"users"}`},
		{"unknown type", `{"type":"ACTIVATE_VERSION","stream":"users"}`},
		{"record without stream", `{"type":"RECORD","record":{"a":1}}`},
		{"record without record", `{"type":"RECORD","stream":"users"}`},
		{"schema without schema", `{"type":"SCHEMA","stream":"users"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := singer.ParseMessage([]byte(tt.line))
			assert.Error(t, err)
		})
	}
}

func TestToSchemaOrdersAndTypes(t *testing.T) {
	raw := &singer.RawSchema{Properties: map[string]singer.Property{
		"zeta":    {Type: "integer"},
		"alpha":   {Type: []any{"null", "string"}},
		"created": {Type: "string", Format: "date-time"},
	}}

	schema := raw.ToSchema([]string{"alpha"})
	require.NotNil(t, schema)
	require.Len(t, schema.Fields, 3)

	assert.Equal(t, "alpha", schema.Fields[0].Name)
	assert.True(t, schema.Fields[0].Nullable)
	assert.Equal(t, "string", schema.Fields[0].DataType)

	assert.Equal(t, "created", schema.Fields[1].Name)
	assert.Equal(t, "timestamp", schema.Fields[1].DataType)

	assert.Equal(t, "zeta", schema.Fields[2].Name)
	assert.Equal(t, "integer", schema.Fields[2].DataType)

	assert.Equal(t, []string{"alpha"}, schema.KeyProperties)
}

func TestToSchemaNil(t *testing.T) {
	var raw *singer.RawSchema
	assert.Nil(t, raw.ToSchema(nil))
}

func TestDecoderSkipsBlankLines(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"RECORD","stream":"users","record":{"uid":"a"}}`,
		"",
		"   ",
		`{"type":"RECORD","stream":"users","record":{"uid":"b"}}`,
	}, "\n")

	dec := singer.NewDecoder(strings.NewReader(input))

	msg, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", msg.Record["uid"])

	msg, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", msg.Record["uid"])

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderReportsMalformedLineAndContinues(t *testing.T) {
	input := strings.Join([]string{
		"garbage",
		`{"type":"RECORD","stream":"users","record":{"uid":"a"}}`,
	}, "\n")

	dec := singer.NewDecoder(strings.NewReader(input))

	_, err := dec.Next()
	require.Error(t, err)
	var malformed *singer.MalformedLineError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 1, malformed.Line)

	msg, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", msg.Record["uid"])
}

func TestWriteState(t *testing.T) {
	var buf bytes.Buffer
	err := singer.WriteState(&buf, map[string]any{"bookmarks": map[string]any{"users": "2024-01-15"}})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, `"type":"STATE"`)
	assert.Contains(t, out, `"bookmarks"`)

	msg, err := singer.ParseMessage([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, singer.TypeState, msg.Type)
}
