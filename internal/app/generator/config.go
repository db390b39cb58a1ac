package generator

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds generation run settings. Defaults match the free-tier rate
// limits of the gemini-2.5-flash-lite model (10 requests per minute).
type Config struct {
	Count          int           `yaml:"count"            env:"GENERATE_COUNT"            env-default:"500"`
	BatchSize      int           `yaml:"batch_size"       env:"GENERATE_BATCH_SIZE"       env-default:"20"`
	MaxAttempts    int           `yaml:"max_attempts"     env:"GENERATE_MAX_ATTEMPTS"     env-default:"5"`
	MaxRPM         int           `yaml:"max_rpm"          env:"GENERATE_MAX_RPM"          env-default:"10"`
	BaseRetryDelay time.Duration `yaml:"base_retry_delay" env:"GENERATE_BASE_RETRY_DELAY" env-default:"2s"`
	RateLimitStep  time.Duration `yaml:"rate_limit_step"  env:"GENERATE_RATE_LIMIT_STEP"  env-default:"30s"`
	DryRun         bool          `yaml:"dry_run"          env:"GENERATE_DRY_RUN"`
}

// LoadConfig reads generation configuration from a YAML file and environment
// variables. Priority: ENV > YAML > defaults (via env-default tags).
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("generator config: read %s: %w", path, err)
			}
			return &cfg, nil
		}
		return nil, fmt.Errorf("generator config: file %s not found", path)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("generator config: read env: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the run parameters are usable. Count may be zero,
// which means "all lemmas in the vocabulary file".
func (c *Config) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("count must be >= 0 (got %d)", c.Count)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be > 0 (got %d)", c.MaxAttempts)
	}
	if c.MaxRPM <= 0 {
		return fmt.Errorf("max_rpm must be > 0 (got %d)", c.MaxRPM)
	}
	if c.BaseRetryDelay <= 0 {
		return fmt.Errorf("base_retry_delay must be > 0 (got %v)", c.BaseRetryDelay)
	}
	if c.RateLimitStep <= 0 {
		return fmt.Errorf("rate_limit_step must be > 0 (got %v)", c.RateLimitStep)
	}

	return nil
}

// BatchPause is the sleep between consecutive batches, sized to stay under
// the requests-per-minute ceiling with a small safety margin.
func (c *Config) BatchPause() time.Duration {
	return time.Minute/time.Duration(c.MaxRPM) + 2*time.Second
}
