// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "faculty-papers/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// HarvestConfig holds settings for the batch orchestration core.
type HarvestConfig struct {
	// Workers is the worker-pool width (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers" validate:"gte=1,lte=64"`

	// ChunkSize is the number of subjects per worker group. Zero splits the
	// roster into Workers groups.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size" mapstructure:"chunk_size" validate:"gte=0"`

	// PublicationLimit bounds the publications considered per subject (default 2).
	PublicationLimit int `json:"publication_limit" yaml:"publication_limit" mapstructure:"publication_limit" validate:"gte=1"`

	// RetryCount is the total attempts per remote lookup (default 3).
	RetryCount int `json:"retry_count" yaml:"retry_count" mapstructure:"retry_count" validate:"gte=1"`

	// SortBy is the recency criterion passed to the record source (default "year").
	SortBy SortKey `json:"sort_by" yaml:"sort_by" mapstructure:"sort_by" validate:"oneof=year citations"`

	// SortOutput re-sorts the merged rows by subject and publication order.
	SortOutput bool `json:"sort_output" yaml:"sort_output" mapstructure:"sort_output"`
}

// EgressMode selects the egress supplier.
type EgressMode string

const (
	EgressDirect EgressMode = "direct"
	EgressList   EgressMode = "list"
	EgressFetch  EgressMode = "fetch"
)

// EgressConfig holds settings for route acquisition.
type EgressConfig struct {
	// Mode selects the supplier: direct, list, or fetch.
	Mode EgressMode `json:"mode" yaml:"mode" mapstructure:"mode" validate:"oneof=direct list fetch"`

	// Proxies lists proxy URLs for the list supplier.
	Proxies []string `json:"proxies,omitempty" yaml:"proxies,omitempty" mapstructure:"proxies" validate:"dive,required"`

	// ListURL is the proxy list endpoint for the fetch supplier.
	ListURL string `json:"list_url,omitempty" yaml:"list_url,omitempty" mapstructure:"list_url" validate:"omitempty,url"`

	// ProbeURL, when set, is requested through each fetched proxy before it
	// is leased.
	ProbeURL string `json:"probe_url,omitempty" yaml:"probe_url,omitempty" mapstructure:"probe_url" validate:"omitempty,url"`

	// AcquireTimeout bounds one route acquisition (default 30s).
	AcquireTimeout time.Duration `json:"acquire_timeout" yaml:"acquire_timeout" mapstructure:"acquire_timeout" validate:"gt=0"`

	// AcquireWait is the minimum interval between acquisitions (default 2s).
	AcquireWait time.Duration `json:"acquire_wait" yaml:"acquire_wait" mapstructure:"acquire_wait" validate:"gte=0"`
}

// SourceConfig holds settings for the record source.
type SourceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the record source: semantic_scholar or openalex.
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend" validate:"oneof=semantic_scholar openalex"`

	// BaseURL overrides the backend API root.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`

	// APIKey is an optional key for higher rate limits.
	APIKey string `json:"-" yaml:"-" mapstructure:"-"`

	// Email is sent to OpenAlex for polite pool access.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`

	// RateLimit is the sustained requests per second per route (default 1).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`
}

// ExportFormat selects the tabular sink.
type ExportFormat string

const (
	FormatAuto   ExportFormat = ""
	FormatXLSX   ExportFormat = "xlsx"
	FormatCSV    ExportFormat = "csv"
	FormatJSON   ExportFormat = "json"
	FormatYAML   ExportFormat = "yaml"
	FormatSQLite ExportFormat = "sqlite"
)

// ExportConfig holds settings for the terminal export.
type ExportConfig struct {
	// Path is the output artifact path (default papers.xlsx).
	Path string `json:"path" yaml:"path" mapstructure:"path" validate:"required"`

	// Format overrides the format inferred from the path extension.
	Format ExportFormat `json:"format,omitempty" yaml:"format,omitempty" mapstructure:"format" validate:"omitempty,oneof=xlsx csv json yaml sqlite"`

	// Also lists extra output paths written alongside Path. Each path's
	// format comes from its extension.
	Also []string `json:"also,omitempty" yaml:"also,omitempty" mapstructure:"also" validate:"dive,required"`

	// ReportPath, when set, receives the failed subject and publication sets.
	ReportPath string `json:"report_path,omitempty" yaml:"report_path,omitempty" mapstructure:"report_path"`

	// LegacyColumns uses the column titles of the original spreadsheet.
	LegacyColumns bool `json:"legacy_columns" yaml:"legacy_columns" mapstructure:"legacy_columns"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=json console"`

	// Output is stdout or stderr.
	Output string `json:"output" yaml:"output" mapstructure:"output" validate:"oneof=stdout stderr"`
}

// MetricsConfig holds Prometheus exposure settings.
type MetricsConfig struct {
	// Addr, when set, serves /metrics for the duration of a run.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// Config groups all settings for a harvest run.
type Config struct {
	Harvest  HarvestConfig `json:"harvest" yaml:"harvest" mapstructure:"harvest"`
	Egress   EgressConfig  `json:"egress" yaml:"egress" mapstructure:"egress"`
	Source   SourceConfig  `json:"source" yaml:"source" mapstructure:"source"`
	Export   ExportConfig  `json:"export" yaml:"export" mapstructure:"export"`
	Logging  LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Subjects []string      `json:"subjects,omitempty" yaml:"subjects,omitempty" mapstructure:"subjects"`
}
