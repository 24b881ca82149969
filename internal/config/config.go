// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config turns viper settings (file, environment, flags) into a
// validated types.Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/pdiddy/faculty-papers/internal/export"
	"github.com/pdiddy/faculty-papers/internal/secrets"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

// EnvPrefix namespaces environment overrides, e.g. FACULTY_PAPERS_HARVEST_WORKERS.
const EnvPrefix = "FACULTY_PAPERS"

// Default values.
const (
	DefaultWorkers          = 4
	DefaultPublicationLimit = 2
	DefaultRetryCount       = 3
	DefaultAcquireTimeout   = 30 * time.Second
	DefaultAcquireWait      = 2 * time.Second
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultRateLimit        = 1.0
	DefaultOutput           = "papers.xlsx"
	DefaultUserAgent        = "faculty-papers/0.1"
)

// SetDefaults registers every key with its default so environment variables
// are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("harvest.workers", DefaultWorkers)
	v.SetDefault("harvest.chunk_size", 0)
	v.SetDefault("harvest.publication_limit", DefaultPublicationLimit)
	v.SetDefault("harvest.retry_count", DefaultRetryCount)
	v.SetDefault("harvest.sort_by", string(types.SortByYear))
	v.SetDefault("harvest.sort_output", true)

	v.SetDefault("egress.mode", string(types.EgressDirect))
	v.SetDefault("egress.proxies", []string{})
	v.SetDefault("egress.list_url", "")
	v.SetDefault("egress.probe_url", "")
	v.SetDefault("egress.acquire_timeout", DefaultAcquireTimeout)
	v.SetDefault("egress.acquire_wait", DefaultAcquireWait)

	v.SetDefault("source.backend", "semantic_scholar")
	v.SetDefault("source.base_url", "")
	v.SetDefault("source.email", "")
	v.SetDefault("source.rate_limit", DefaultRateLimit)
	v.SetDefault("source.timeout", DefaultHTTPTimeout)
	v.SetDefault("source.user_agent", DefaultUserAgent)

	v.SetDefault("export.path", DefaultOutput)
	v.SetDefault("export.format", "")
	v.SetDefault("export.also", []string{})
	v.SetDefault("export.report_path", "")
	v.SetDefault("export.legacy_columns", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("metrics.addr", "")
	v.SetDefault("subjects", []string{})
	v.SetDefault("secrets_dir", secrets.DefaultDir)
}

// BindEnv enables FACULTY_PAPERS_* overrides for every nested key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load unmarshals v into a Config, fills credentials from the secrets
// directory, and validates the result.
func Load(v *viper.Viper, logger zerolog.Logger) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	s, err := secrets.Load(v.GetString("secrets_dir"), logger)
	if err != nil {
		return cfg, fmt.Errorf("loading secrets: %w", err)
	}
	secrets.Apply(&cfg, s)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the rules that span fields.
func Validate(cfg types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Egress.Mode {
	case types.EgressList:
		if len(cfg.Egress.Proxies) == 0 {
			return fmt.Errorf("invalid config: egress mode %q needs at least one proxy", cfg.Egress.Mode)
		}
	case types.EgressFetch:
		if cfg.Egress.ListURL == "" {
			return fmt.Errorf("invalid config: egress mode %q needs egress.list_url", cfg.Egress.Mode)
		}
	}

	if cfg.Export.Format == types.FormatAuto {
		if _, err := export.FormatFor(cfg.Export.Path); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	for _, path := range cfg.Export.Also {
		if _, err := export.FormatFor(path); err != nil {
			return fmt.Errorf("invalid config: export.also: %w", err)
		}
	}
	return nil
}
