package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	ArtifactBackendFilesystem = "filesystem"
	ArtifactBackendPostgres   = "postgres"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	ArtifactBackend string `envconfig:"ARTIFACT_BACKEND" default:"filesystem"`
	// ArtifactDir defaults to the XDG data directory when empty.
	ArtifactDir string `envconfig:"ARTIFACT_DIR" default:""`

	SummarizerProvider string        `envconfig:"SUMMARIZER_PROVIDER" default:"static"`
	SummarizerEndpoint string        `envconfig:"SUMMARIZER_ENDPOINT" default:"http://127.0.0.1:8000/v1"`
	SummarizerModel    string        `envconfig:"SUMMARIZER_MODEL" default:""`
	SummarizerAPIKey   string        `envconfig:"SUMMARIZER_API_KEY" default:""`
	SummarizerTimeout  time.Duration `envconfig:"SUMMARIZER_TIMEOUT" default:"90s"`

	FetchTimeout  time.Duration `envconfig:"FETCH_TIMEOUT" default:"15s"`
	FetchMaxBytes int64         `envconfig:"FETCH_MAX_BYTES" default:"4194304"`

	ImportConcurrency int           `envconfig:"IMPORT_CONCURRENCY" default:"4"`
	SweepGrace        time.Duration `envconfig:"SWEEP_GRACE" default:"24h"`
	RefreshSchedule   string        `envconfig:"REFRESH_SCHEDULE" default:"0 3 * * *"`
	SweepSchedule     string        `envconfig:"SWEEP_SCHEDULE" default:"30 4 * * *"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	switch c.ArtifactBackendName() {
	case ArtifactBackendFilesystem, ArtifactBackendPostgres:
	default:
		return fmt.Errorf("ARTIFACT_BACKEND must be %q or %q, got %q", ArtifactBackendFilesystem, ArtifactBackendPostgres, c.ArtifactBackend)
	}

	if strings.TrimSpace(c.SummarizerProvider) == "" {
		return fmt.Errorf("SUMMARIZER_PROVIDER is required")
	}
	if c.SummarizerTimeout <= 0 {
		return fmt.Errorf("SUMMARIZER_TIMEOUT must be > 0")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be > 0")
	}
	if c.FetchMaxBytes < 1 {
		return fmt.Errorf("FETCH_MAX_BYTES must be >= 1")
	}
	if c.ImportConcurrency < 1 {
		return fmt.Errorf("IMPORT_CONCURRENCY must be >= 1")
	}
	if c.SweepGrace < 0 {
		return fmt.Errorf("SWEEP_GRACE must be >= 0")
	}
	if strings.TrimSpace(c.RefreshSchedule) == "" {
		return fmt.Errorf("REFRESH_SCHEDULE is required")
	}
	if strings.TrimSpace(c.SweepSchedule) == "" {
		return fmt.Errorf("SWEEP_SCHEDULE is required")
	}
	return nil
}

// ArtifactBackendName returns the normalized ARTIFACT_BACKEND value.
func (c *Config) ArtifactBackendName() string {
	if c == nil {
		return ArtifactBackendFilesystem
	}
	name := strings.ToLower(strings.TrimSpace(c.ArtifactBackend))
	if name == "" {
		return ArtifactBackendFilesystem
	}
	return name
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
