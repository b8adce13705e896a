package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. It is called on every load and
// after every runtime update, so an invalid document never takes effect.
func (c *Config) Validate() error {
	if err := c.validateOllama(); err != nil {
		return err
	}
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateBudget(); err != nil {
		return err
	}
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOllama() error {
	if strings.TrimSpace(c.Ollama.Model) == "" {
		return errors.New("ollama.model must be set")
	}
	if strings.TrimSpace(c.Ollama.BaseURL) == "" {
		return errors.New("ollama.base_url must be set")
	}
	if c.Ollama.Temperature < 0 {
		return errors.New("ollama.temperature must be >= 0")
	}
	if c.Ollama.NumCtx <= 0 {
		return errors.New("ollama.num_ctx must be positive")
	}
	if c.Ollama.TimeoutSeconds <= 0 {
		return errors.New("ollama.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateChunking() error {
	if c.Chunking.RawChunkSize <= 0 {
		return errors.New("chunking.raw_chunk_size must be positive")
	}
	if c.Chunking.OverlapSize < 0 {
		return errors.New("chunking.overlap_size must be >= 0")
	}
	if c.Chunking.OverlapSize >= c.Chunking.RawChunkSize {
		return fmt.Errorf(
			"chunking.overlap_size (%d) must be smaller than chunking.raw_chunk_size (%d)",
			c.Chunking.OverlapSize, c.Chunking.RawChunkSize,
		)
	}
	if c.Chunking.Workers <= 0 {
		return errors.New("chunking.workers must be positive")
	}
	return nil
}

func (c *Config) validateBudget() error {
	if c.Budget.BytesPerToken <= 0 {
		return errors.New("budget.bytes_per_token must be positive")
	}
	if c.Budget.ReservedFraction < 0 || c.Budget.ReservedFraction >= 1 {
		return errors.New("budget.reserved_fraction must be in [0, 1)")
	}
	if c.Budget.MinResponseBytes <= 0 {
		return errors.New("budget.min_response_bytes must be positive")
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if len(c.YouTube.Languages) == 0 {
		return errors.New("youtube.languages must include at least one language")
	}
	if c.YouTube.TimeoutSeconds <= 0 {
		return errors.New("youtube.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}
