package ldif_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flowline/target-ldif/internal/connector/ldif"
	"github.com/flowline/target-ldif/internal/endpoint"
)

func newTestEndpoint(t *testing.T, overrides map[string]any) (*ldif.Endpoint, string) {
	t.Helper()
	dir := t.TempDir()
	params := map[string]any{
		"output_path":         dir,
		"dn_template":         "uid={uid},ou=users,dc=example,dc=com",
		"file_naming_pattern": "{stream_name}.ldif",
	}
	for k, v := range overrides {
		params[k] = v
	}
	ep, err := ldif.New(params)
	require.NoError(t, err)
	return ep, dir
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := ldif.New(map[string]any{"output_path": "/tmp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ldif.CodeConfigInvalid)
}

func TestOpenStreamIsMemoized(t *testing.T) {
	ep, _ := newTestEndpoint(t, nil)
	ctx := context.Background()

	first, err := ep.OpenStream(ctx, "users", nil)
	require.NoError(t, err)
	second, err := ep.OpenStream(ctx, "users", nil)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestSinkWritesEntries(t *testing.T) {
	ep, dir := newTestEndpoint(t, nil)
	ctx := context.Background()

	sink, err := ep.OpenStream(ctx, "users", nil)
	require.NoError(t, err)

	require.NoError(t, sink.WriteRecord(endpoint.Record{"uid": "jdoe", "email": "jdoe@example.com"}))
	require.NoError(t, sink.WriteRecord(endpoint.Record{"uid": "asmith", "email": "asmith@example.com"}))
	require.NoError(t, sink.FlushBatch(ctx))

	summary, err := sink.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Processed)
	assert.Equal(t, int64(2), summary.Succeeded)
	assert.Equal(t, int64(0), summary.Failed)
	require.Len(t, summary.Files, 1)

	content, err := os.ReadFile(filepath.Join(dir, "users.ldif"))
	require.NoError(t, err)
	text := string(content)

	assert.True(t, strings.HasPrefix(text, "version: 1\n"))
	assert.Contains(t, text, "dn: uid=jdoe,ou=users,dc=example,dc=com\n")
	assert.Contains(t, text, "dn: uid=asmith,ou=users,dc=example,dc=com\n")
	assert.Contains(t, text, "objectClass: inetOrgPerson\n")
	assert.Contains(t, text, "# Total entries: 2\n")
}

func TestSinkSkipsBadRecords(t *testing.T) {
	ep, _ := newTestEndpoint(t, nil)
	ctx := context.Background()

	sink, err := ep.OpenStream(ctx, "users", nil)
	require.NoError(t, err)

	require.NoError(t, sink.WriteRecord(endpoint.Record{"uid": "jdoe"}))
	require.NoError(t, sink.WriteRecord(endpoint.Record{"email": "no-uid@example.com"}))
	require.NoError(t, sink.FlushBatch(ctx))

	summary, err := sink.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Processed)
	assert.Equal(t, int64(1), summary.Succeeded)
	assert.Equal(t, int64(1), summary.Failed)
}

func TestSinkLogsRecordFindings(t *testing.T) {
	ep, _ := newTestEndpoint(t, nil)
	core, logs := observer.New(zap.WarnLevel)
	ep.SetLogger(zap.New(core))
	ctx := context.Background()

	sink, err := ep.OpenStream(ctx, "users", nil)
	require.NoError(t, err)

	// No identifier field and an oversized value: two findings, one skip.
	require.NoError(t, sink.WriteRecord(endpoint.Record{
		"email": "jdoe@example.com",
		"notes": strings.Repeat("x", 2000),
	}))
	require.NoError(t, sink.FlushBatch(ctx))

	findings := logs.FilterMessage("record finding")
	require.Equal(t, 2, findings.Len())
}

func TestSinkEmptyStreamProducesNoFile(t *testing.T) {
	ep, dir := newTestEndpoint(t, nil)
	ctx := context.Background()

	sink, err := ep.OpenStream(ctx, "empty", nil)
	require.NoError(t, err)

	summary, err := sink.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Processed)
	assert.Empty(t, summary.Files)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSinkCloseIsIdempotent(t *testing.T) {
	ep, _ := newTestEndpoint(t, nil)
	ctx := context.Background()

	sink, err := ep.OpenStream(ctx, "users", nil)
	require.NoError(t, err)
	require.NoError(t, sink.WriteRecord(endpoint.Record{"uid": "jdoe"}))

	first, err := sink.Close(ctx)
	require.NoError(t, err)
	second, err := sink.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSinkRejectsWriteAfterClose(t *testing.T) {
	ep, _ := newTestEndpoint(t, nil)
	ctx := context.Background()

	sink, err := ep.OpenStream(ctx, "users", nil)
	require.NoError(t, err)
	_, err = sink.Close(ctx)
	require.NoError(t, err)

	err = sink.WriteRecord(endpoint.Record{"uid": "late"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ldif.CodeSinkClosed)
}

func TestSinkRotatesByEntryCount(t *testing.T) {
	ep, dir := newTestEndpoint(t, map[string]any{
		"max_entries_per_file": 1,
	})
	ctx := context.Background()

	sink, err := ep.OpenStream(ctx, "users", nil)
	require.NoError(t, err)
	for _, uid := range []string{"a", "b", "c"} {
		require.NoError(t, sink.WriteRecord(endpoint.Record{"uid": uid}))
	}
	require.NoError(t, sink.FlushBatch(ctx))

	summary, err := sink.Close(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Files, 3)

	assert.FileExists(t, filepath.Join(dir, "users.ldif"))
	assert.FileExists(t, filepath.Join(dir, "users_001.ldif"))
	assert.FileExists(t, filepath.Join(dir, "users_002.ldif"))

	for _, f := range summary.Files {
		content, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.Contains(t, string(content), "# Total entries: 1\n")
	}
}

func TestSinkWithoutTimestampsOmitsCommentary(t *testing.T) {
	ep, dir := newTestEndpoint(t, map[string]any{
		"ldif_options": map[string]any{"include_timestamps": false},
	})
	ctx := context.Background()

	sink, err := ep.OpenStream(ctx, "users", nil)
	require.NoError(t, err)
	require.NoError(t, sink.WriteRecord(endpoint.Record{"uid": "jdoe"}))
	_, err = sink.Close(ctx)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "users.ldif"))
	require.NoError(t, err)
	text := string(content)
	assert.True(t, strings.HasPrefix(text, "version: 1\n\n"))
	assert.NotContains(t, text, "# Generated on")
	assert.NotContains(t, text, "# Total entries")
}

func TestSinkSchemaFieldOrder(t *testing.T) {
	ep, dir := newTestEndpoint(t, nil)
	ctx := context.Background()

	schema := &endpoint.Schema{Fields: []*endpoint.FieldDefinition{
		{Name: "uid", Position: 1},
		{Name: "title", Position: 2},
		{Name: "ou", Position: 3},
	}}
	sink, err := ep.OpenStream(ctx, "users", schema)
	require.NoError(t, err)
	require.NoError(t, sink.WriteRecord(endpoint.Record{"ou": "dev", "title": "engineer", "uid": "jdoe"}))
	_, err = sink.Close(ctx)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "users.ldif"))
	require.NoError(t, err)
	uidAt := strings.Index(string(content), "\nuid: ")
	titleAt := strings.Index(string(content), "\ntitle: ")
	ouAt := strings.Index(string(content), "\nou: ")
	require.Positive(t, uidAt)
	assert.Less(t, uidAt, titleAt, "uid must precede title")
	assert.Less(t, titleAt, ouAt, "title must precede ou")
}

func TestEndpointValidateConfig(t *testing.T) {
	ep, _ := newTestEndpoint(t, nil)

	result, err := ep.ValidateConfig(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.False(t, result.Valid)

	result, err = ep.ValidateConfig(context.Background(), map[string]any{
		"dn_template": "uid={uid},dc=example,dc=com",
	})
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestEndpointCloseClosesStreams(t *testing.T) {
	ep, dir := newTestEndpoint(t, nil)
	ctx := context.Background()

	sink, err := ep.OpenStream(ctx, "users", nil)
	require.NoError(t, err)
	require.NoError(t, sink.WriteRecord(endpoint.Record{"uid": "jdoe"}))

	require.NoError(t, ep.Close())
	assert.FileExists(t, filepath.Join(dir, "users.ldif"))
}
