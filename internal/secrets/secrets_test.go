// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/faculty-papers/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, SemanticScholarAPIKey, "  sk_xyz789  \n")
				writeFile(t, dir, OpenAlexEmail, "user@example.com\n")
				return dir
			},
			want: map[string]string{
				SemanticScholarAPIKey: "sk_xyz789",
				OpenAlexEmail:         "user@example.com",
			},
		},
		{
			name: "missing directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files, dotfiles, and directories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, OpenAlexAPIKey, "oa_key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{OpenAlexAPIKey: "oa_key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t), zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	var buf bytes.Buffer
	got, err := Load(dir, zerolog.New(&buf))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"good-key": "value123"}, got)
	assert.Contains(t, buf.String(), "bad-key")
}

func TestApply(t *testing.T) {
	secrets := map[string]string{
		SemanticScholarAPIKey: "ss-key",
		OpenAlexAPIKey:        "oa-key",
		OpenAlexEmail:         "me@example.com",
		ProxyListURL:          "https://lists.example/proxies.txt",
		Proxies:               "10.0.0.1:8080\n# spare\n\n10.0.0.2:8080\n",
	}

	t.Run("semantic scholar", func(t *testing.T) {
		var cfg types.Config
		cfg.Source.Backend = "semantic_scholar"
		Apply(&cfg, secrets)
		assert.Equal(t, "ss-key", cfg.Source.APIKey)
		assert.Equal(t, "me@example.com", cfg.Source.Email)
		assert.Equal(t, "https://lists.example/proxies.txt", cfg.Egress.ListURL)
		assert.Equal(t, []string{"10.0.0.1:8080", "10.0.0.2:8080"}, cfg.Egress.Proxies)
	})

	t.Run("openalex", func(t *testing.T) {
		var cfg types.Config
		cfg.Source.Backend = "openalex"
		Apply(&cfg, secrets)
		assert.Equal(t, "oa-key", cfg.Source.APIKey)
	})

	t.Run("config wins", func(t *testing.T) {
		var cfg types.Config
		cfg.Source.APIKey = "from-config"
		cfg.Source.Email = "config@example.com"
		cfg.Egress.Proxies = []string{"1.1.1.1:80"}
		Apply(&cfg, secrets)
		assert.Equal(t, "from-config", cfg.Source.APIKey)
		assert.Equal(t, "config@example.com", cfg.Source.Email)
		assert.Equal(t, []string{"1.1.1.1:80"}, cfg.Egress.Proxies)
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
