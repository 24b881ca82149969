// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file is one secret: the filename is the key and the trimmed contents
// are the value.
//
// Recognized keys: semantic-scholar-api-key, openalex-api-key,
// openalex-email, proxy-list-url, proxies.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/faculty-papers/pkg/types"
)

// Secret file names.
const (
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexAPIKey        = "openalex-api-key"
	OpenAlexEmail         = "openalex-email"
	ProxyListURL          = "proxy-list-url"

	// Proxies holds one proxy per line for the list egress mode.
	Proxies = "proxies"
)

// DefaultDir is where secrets are read from when no directory is configured.
const DefaultDir = ".secrets"

// Load reads every regular file in dir. A missing directory yields an empty
// map. Unreadable files are logged and skipped.
func Load(dir string, logger zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills credentials in cfg from secrets. Values already set in cfg
// take precedence.
func Apply(cfg *types.Config, secrets map[string]string) {
	if cfg.Source.APIKey == "" {
		switch cfg.Source.Backend {
		case "openalex":
			cfg.Source.APIKey = secrets[OpenAlexAPIKey]
		default:
			cfg.Source.APIKey = secrets[SemanticScholarAPIKey]
		}
	}
	if cfg.Source.Email == "" {
		cfg.Source.Email = secrets[OpenAlexEmail]
	}
	if cfg.Egress.ListURL == "" {
		cfg.Egress.ListURL = secrets[ProxyListURL]
	}
	if len(cfg.Egress.Proxies) == 0 && secrets[Proxies] != "" {
		for _, line := range strings.Split(secrets[Proxies], "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				cfg.Egress.Proxies = append(cfg.Egress.Proxies, line)
			}
		}
	}
}
