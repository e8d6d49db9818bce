package yaml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLoadConfig(t *testing.T) {
	testCase := []struct {
		name      string
		content   string
		want      sample
		expectErr bool
	}{
		{"valid document", "name: demo\ncount: 3\n", sample{Name: "demo", Count: 3}, false},
		{"empty document", "", sample{}, false},
		{"unknown field", "name: demo\nextra: true\n", sample{}, true},
		{"wrong type", "count: many\n", sample{}, true},
	}

	assert := assert.New(t)
	for _, tc := range testCase {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			assert.NoError(os.WriteFile(path, []byte(tc.content), 0644))

			var got sample
			err := LoadConfig(path, &got)
			if tc.expectErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.want, got)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var got sample
	err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), &got)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
