package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateData(t *testing.T) {
	assert.Nil(t, templateData(nil))
	assert.Equal(t, map[string]any{"token": "abc123", "name": "Ada"},
		templateData(map[string]string{"token": "abc123", "name": "Ada"}))
}

func TestRun_RejectsUnknownKindBeforeLoadingConfig(t *testing.T) {
	cmd := NewCommand()
	cmd.SetArgs([]string{"--kind", "newsletter", "--user", "1", "--config", "/nonexistent/config.yaml"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid notification kind: newsletter")
}
