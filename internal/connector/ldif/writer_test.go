package ldif

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCloseReportsTrailerWriteFailure(t *testing.T) {
	opts := ParseOptions(map[string]any{
		"dn_template": "uid={uid},dc=example,dc=com",
		"output_path": t.TempDir(),
	})
	w := newFileWriter(opts, "users", zap.NewNop())

	entry := &Entry{
		DN:            "uid=a,dc=example,dc=com",
		ObjectClasses: []string{"person"},
		Attributes:    []Attribute{{Name: "uid", Values: []string{"a"}}},
	}
	_, err := w.Append([]*Entry{entry})
	require.NoError(t, err)

	// Break the handle underneath the writer; the trailer write must fail
	// loudly instead of vanishing.
	require.NoError(t, w.file.Close())

	err = w.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), CodeFileWriteFailed)
	assert.Nil(t, w.file)
}

func TestCloseWithoutOpenFileIsNoop(t *testing.T) {
	opts := ParseOptions(map[string]any{
		"dn_template": "uid={uid},dc=example,dc=com",
		"output_path": t.TempDir(),
	})
	w := newFileWriter(opts, "users", zap.NewNop())
	assert.NoError(t, w.Close())
}
