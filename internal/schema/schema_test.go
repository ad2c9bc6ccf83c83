package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	s := Generate()

	assert.Equal(t, "object", s.Type)
	assert.Equal(t, false, s.AdditionalProperties)

	git := s.Properties["git"]
	require.NotNil(t, git)
	assert.Equal(t, "boolean", git.Properties["commit"].Type)
	assert.Equal(t, "string", git.Properties["tagName"].Type)
	assert.Equal(t, "array", git.Properties["pushArgs"].Type)

	assert.Equal(t, []any{"asc", "desc"}, s.Properties["changelog"].Properties["sort"].Enum)
	assert.Len(t, s.Properties["hooks"].AdditionalProperties.(*Schema).OneOf, 3)

	data, err := Marshal()
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "release-it configuration", doc["title"])
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		data   string
		errors []string
	}{
		{
			name: "valid yaml",
			file: ".release-it.yaml",
			data: `git:
  commit: true
  pushArgs: [--follow-tags]
hooks:
  "before:init": npm test
  "after:bump":
    - make dist
    - cmd: echo done
      failFast: true
variables:
  owner: acme
`,
		},
		{
			name: "valid jsonc",
			file: ".release-it.json",
			data: `{
  // comment
  "$schema": "https://example.com/schema.json",
  "github": {"release": true, "assets": ["dist/*"],},
}`,
		},
		{
			name:   "unknown key",
			file:   ".release-it.yaml",
			data:   "gti:\n  commit: true\ngit:\n  comit: false\n",
			errors: []string{"git.comit: unknown property", "gti: unknown property"},
		},
		{
			name:   "wrong type",
			file:   ".release-it.yaml",
			data:   "git:\n  commit: yes please\n",
			errors: []string{"git.commit: expected type boolean, got string"},
		},
		{
			name:   "enum",
			file:   ".release-it.yaml",
			data:   "changelog:\n  sort: up\n",
			errors: []string{"changelog.sort: value must be one of: [asc desc]"},
		},
		{
			name:   "array item",
			file:   ".release-it.yaml",
			data:   "bump:\n  files: [VERSION, 3]\n",
			errors: []string{"bump.files[1]: expected type string, got number"},
		},
		{
			name:   "bad hook",
			file:   ".release-it.yaml",
			data:   "hooks:\n  \"after:bump\": 42\n",
			errors: []string{"hooks.after:bump: must match exactly one of the schemas (matched 0)"},
		},
		{
			name:   "invalid yaml",
			file:   ".release-it.yaml",
			data:   "git: [",
			errors: []string{"invalid YAML"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))

			result := ValidateConfig(path)
			if len(tt.errors) == 0 {
				assert.True(t, result.Valid, "%v", result.Errors)
				return
			}

			assert.False(t, result.Valid)
			require.Len(t, result.Errors, len(tt.errors))
			for i, want := range tt.errors {
				assert.Contains(t, result.Errors[i].Error(), want)
			}
		})
	}
}

func TestValidateFileMissing(t *testing.T) {
	result := ValidateConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0].Message, "failed to read file")
}
