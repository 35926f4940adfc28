package ldif_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/target-ldif/internal/connector/ldif"
)

func TestMapAttributeName(t *testing.T) {
	mapping := map[string]string{"family_name": "sn", "email": "mail"}

	tests := []struct {
		field string
		want  string
	}{
		{"family_name", "sn"},
		{"email", "mail"},
		{"given_name", "givenname"},
		{"Phone_Number", "phonenumber"},
		{"uid", "uid"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ldif.MapAttributeName(tt.field, mapping), "field %s", tt.field)
	}
}

func TestMapAttributeNameSanitizesInvalidNames(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"9_lives", "attr9lives"},
		{"field.with.dots", "fieldwithdots"},
		{"%%%", "unknownattr"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ldif.MapAttributeName(tt.field, nil), "field %s", tt.field)
	}
}

func TestNormalizeEmail(t *testing.T) {
	attr, out, keep := ldif.Normalize("email", "  John.Doe@EXAMPLE.com ", nil, nil)
	require.True(t, keep)
	assert.Equal(t, "email", attr)
	assert.Equal(t, "john.doe@example.com", out)

	_, _, keep = ldif.Normalize("email", "not-an-address", nil, nil)
	assert.False(t, keep, "value without @ and . is dropped")
}

func TestNormalizePhone(t *testing.T) {
	attr, out, keep := ldif.Normalize("phone", "+1 (555) 123-4567 ext9", nil, nil)
	require.True(t, keep)
	assert.Equal(t, "phone", attr)
	assert.Equal(t, "+1 (555) 123-4567 9", out)
}

func TestNormalizeName(t *testing.T) {
	_, out, keep := ldif.Normalize("given_name", "  john  ", nil, nil)
	require.True(t, keep)
	assert.Equal(t, "John", out)

	_, out, keep = ldif.Normalize("cn", "jane MARY smith", nil, nil)
	require.True(t, keep)
	assert.Equal(t, "Jane Mary Smith", out)
}

func TestNormalizeBoolean(t *testing.T) {
	tests := []struct {
		value any
		want  string
		keep  bool
	}{
		{true, "TRUE", true},
		{false, "FALSE", true},
		{"yes", "TRUE", true},
		{"ON", "TRUE", true},
		{"0", "FALSE", true},
		{"no", "FALSE", true},
		{"maybe", "", false},
		{float64(1), "", false},
	}
	for _, tt := range tests {
		_, out, keep := ldif.Normalize("is_active", tt.value, nil, nil)
		assert.Equal(t, tt.keep, keep, "value %v", tt.value)
		if tt.keep {
			assert.Equal(t, tt.want, out, "value %v", tt.value)
		}
	}
}

func TestNormalizeBooleanSuffix(t *testing.T) {
	mapping := map[string]string{"enabled": "accountEnabledBoolean"}
	_, out, keep := ldif.Normalize("enabled", "true", mapping, nil)
	require.True(t, keep)
	assert.Equal(t, "TRUE", out)
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"rfc3339 utc", "2024-01-15T10:30:00Z", "2024-01-15T10:30:00Z"},
		{"rfc3339 offset", "2024-01-15T10:30:00+02:00", "2024-01-15T10:30:00+02:00"},
		{"zoneless", "2024-01-15T10:30:00", "2024-01-15T10:30:00Z"},
		{"space separated", "2024-01-15 10:30:00", "2024-01-15T10:30:00Z"},
		{"date only", "2024-01-15", "2024-01-15T00:00:00Z"},
		{"go time", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), "2024-01-15T10:30:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, keep := ldif.Normalize("create_timestamp", tt.value, nil, nil)
			require.True(t, keep)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestNormalizeTimestampPassthrough(t *testing.T) {
	_, out, keep := ldif.Normalize("modify_timestamp", "not-a-date", nil, nil)
	require.True(t, keep)
	assert.Equal(t, "not-a-date", out)
}

func TestNormalizeNil(t *testing.T) {
	attr, _, keep := ldif.Normalize("title", nil, nil, nil)
	assert.Equal(t, "title", attr)
	assert.False(t, keep)
}

func TestNormalizeDefaultStringification(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{"  spaced  ", "spaced"},
		{float64(42), "42"},
		{float64(3.5), "3.5"},
		{int64(7), "7"},
		{true, "true"},
	}
	for _, tt := range tests {
		_, out, keep := ldif.Normalize("title", tt.value, nil, nil)
		require.True(t, keep, "value %v", tt.value)
		assert.Equal(t, tt.want, out, "value %v", tt.value)
	}
}

func TestNormalizeCustomTransformWins(t *testing.T) {
	custom := map[string]ldif.TransformFunc{
		"mail": func(any) (string, bool) { return "redacted@example.com", true },
	}
	mapping := map[string]string{"email": "mail"}

	attr, out, keep := ldif.Normalize("email", "real@example.com", mapping, custom)
	require.True(t, keep)
	assert.Equal(t, "mail", attr)
	assert.Equal(t, "redacted@example.com", out)
}

func TestTransformBooleanDirect(t *testing.T) {
	out, ok := ldif.TransformBoolean(" TRUE ")
	require.True(t, ok)
	assert.Equal(t, "TRUE", out)

	_, ok = ldif.TransformBoolean(nil)
	assert.False(t, ok)
}
