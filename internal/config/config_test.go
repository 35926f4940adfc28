package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowline/target-ldif/internal/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{"dn_template": "uid={uid},dc=example,dc=com"}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./output", cfg.OutputPath)
	assert.Equal(t, "{stream_name}_{timestamp}.ldif", cfg.FileNamingPattern)
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.Equal(t, 78, cfg.LdifOptions.LineLength)
	assert.Equal(t, "utf-8", cfg.LdifOptions.Encoding)
	assert.True(t, cfg.LdifOptions.IncludeTimestamps)
	assert.True(t, cfg.LdifOptions.FoldLines)
	assert.Nil(t, cfg.Publish)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"dn_template": "uid={uid},dc=example,dc=com",
		"output_path": "/tmp/exports",
		"batch_size": 250,
		"attribute_mapping": {"family_name": "sn"},
		"object_classes": ["top", "person"],
		"ldif_options": {"line_length": 120, "include_timestamps": false}
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/exports", cfg.OutputPath)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, map[string]string{"family_name": "sn"}, cfg.AttributeMapping)
	assert.Equal(t, []string{"top", "person"}, cfg.ObjectClasses)
	assert.Equal(t, 120, cfg.LdifOptions.LineLength)
	assert.False(t, cfg.LdifOptions.IncludeTimestamps)
}

func TestLoadRequiresDNTemplate(t *testing.T) {
	path := writeConfigFile(t, `{"output_path": "/tmp/exports"}`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DNTemplate")
}

func TestLoadRejectsStaticDNTemplate(t *testing.T) {
	path := writeConfigFile(t, `{"dn_template": "uid=static,dc=example,dc=com"}`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
}

func TestLoadValidatesRanges(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"batch size too small", `{"dn_template": "uid={uid},dc=x", "batch_size": 0}`},
		{"batch size too large", `{"dn_template": "uid={uid},dc=x", "batch_size": 20000}`},
		{"line length too small", `{"dn_template": "uid={uid},dc=x", "ldif_options": {"line_length": 10}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadPublishSection(t *testing.T) {
	path := writeConfigFile(t, `{
		"dn_template": "uid={uid},dc=example,dc=com",
		"publish": {
			"endpoint_url": "https://minio.internal:9000",
			"access_key_id": "key",
			"secret_access_key": "secret",
			"bucket": "ldif-exports",
			"prefix": "daily"
		}
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Publish)
	assert.Equal(t, "ldif-exports", cfg.Publish.Bucket)
	assert.Equal(t, "daily", cfg.Publish.Prefix)
}

func TestLoadPublishRequiresCredentials(t *testing.T) {
	path := writeConfigFile(t, `{
		"dn_template": "uid={uid},dc=example,dc=com",
		"publish": {"endpoint_url": "https://minio.internal:9000"}
	}`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestSinkParams(t *testing.T) {
	path := writeConfigFile(t, `{"dn_template": "uid={uid},dc=example,dc=com"}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	params := cfg.SinkParams()
	assert.Equal(t, "uid={uid},dc=example,dc=com", params["dn_template"])
	assert.Equal(t, "./output", params["output_path"])

	nested, ok := params["ldif_options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 78, nested["line_length"])
	assert.Equal(t, "utf-8", nested["encoding"])
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TARGET_LDIF_OUTPUT_PATH", "/tmp/from-env")
	path := writeConfigFile(t, `{"dn_template": "uid={uid},dc=example,dc=com"}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", cfg.OutputPath)
}
