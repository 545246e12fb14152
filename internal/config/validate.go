package config

import "fmt"

// Validate checks that the database configuration has all required fields.
// Returns an error describing the first validation failure, or nil if valid.
func (c *DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("database: dsn is required")
	}

	// Validate driver is known
	switch c.Driver {
	case "postgres", "sqlite":
		// Valid drivers
	default:
		return fmt.Errorf("database: unknown driver %q", c.Driver)
	}

	return nil
}

// Validate checks that the redis configuration is usable.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis: addr is required")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis: db must not be negative")
	}
	return nil
}

// Validate checks that the probe configuration is usable.
func (c *ProbeConfig) Validate() error {
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("probe: timeout_ms must be positive")
	}
	return nil
}

// Validate checks that the extractor configuration is usable.
func (c *ExtractorConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("extractor: base_url is required")
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("extractor: timeout_ms must be positive")
	}
	return nil
}

// Validate checks that the logging configuration is usable.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Level)
	}
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Format)
	}
	return nil
}

// Validate checks the whole configuration, returning the first failure.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Probe.Validate(); err != nil {
		return err
	}
	if err := c.Extractor.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Promote.Workers <= 0 {
		return fmt.Errorf("promote: workers must be positive")
	}
	return nil
}
