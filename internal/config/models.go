package config

import "time"

// LLMConfig represents the classification provider selection
type LLMConfig struct {
	Provider       string
	Timeout        time.Duration
	MaxSnippetSize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BreakerConfig configures the classifier circuit breaker
type BreakerConfig struct {
	Enabled             bool
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// CacheConfig configures the classification cache
type CacheConfig struct {
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisPrefix      string
}

// StoreConfig configures the SQL store
type StoreConfig struct {
	Driver string
	DSN    string
}

// GmailConfig configures the Gmail label applier
type GmailConfig struct {
	CredentialsFile string
	TokenFile       string
	AccountID       string
}

// IngestConfig configures the SMTP ingest listener
type IngestConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	AccountID       string
	RecordMessages  bool
	MaxMessageBytes int64
	ApplyTimeout    time.Duration
}

// SmartLabelsConfig configures the matching engine
type SmartLabelsConfig struct {
	BackfillBatchSize int
	ApplyConcurrency  int
	AIExcludedDomains []string
}

// GetLLM returns the classification provider configuration
func (c *Config) GetLLM() (LLMConfig, error) {
	timeout, err := c.GetDuration("llm.timeout")
	if err != nil {
		return LLMConfig{}, err
	}
	return LLMConfig{
		Provider:       c.GetString("llm.provider"),
		Timeout:        timeout,
		MaxSnippetSize: c.GetInt("llm.max_snippet_size"),
	}, nil
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetBreaker returns the circuit breaker configuration
func (c *Config) GetBreaker() (BreakerConfig, error) {
	interval, err := c.GetDuration("breaker.interval")
	if err != nil {
		return BreakerConfig{}, err
	}
	timeout, err := c.GetDuration("breaker.timeout")
	if err != nil {
		return BreakerConfig{}, err
	}
	return BreakerConfig{
		Enabled:             c.GetBool("breaker.enabled"),
		MaxRequests:         uint32(c.GetInt("breaker.max_requests")),
		Interval:            interval,
		Timeout:             timeout,
		ConsecutiveFailures: uint32(c.GetInt("breaker.consecutive_failures")),
	}, nil
}

// GetCache returns the classification cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		RedisAddr:        c.GetString("cache.redis_addr"),
		RedisPassword:    c.GetString("cache.redis_password"),
		RedisDB:          c.GetInt("cache.redis_db"),
		RedisPrefix:      c.GetString("cache.redis_prefix"),
	}, nil
}

// GetStore returns the SQL store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Driver: c.GetString("store.driver"),
		DSN:    c.GetString("store.dsn"),
	}
}

// GetGmail returns the Gmail applier configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		CredentialsFile: c.GetString("gmail.credentials_file"),
		TokenFile:       c.GetString("gmail.token_file"),
		AccountID:       c.GetString("gmail.account_id"),
	}
}

// GetIngest returns the SMTP ingest configuration
func (c *Config) GetIngest() (IngestConfig, error) {
	timeout, err := c.GetDuration("ingest.apply_timeout")
	if err != nil {
		return IngestConfig{}, err
	}
	return IngestConfig{
		Enabled:         c.GetBool("ingest.enabled"),
		ListenAddress:   c.GetString("ingest.listen_address"),
		Domain:          c.GetString("ingest.domain"),
		AccountID:       c.GetString("ingest.account_id"),
		RecordMessages:  c.GetBool("ingest.record_messages"),
		MaxMessageBytes: int64(c.GetInt("ingest.max_message_bytes")),
		ApplyTimeout:    timeout,
	}, nil
}

// GetSmartLabels returns the engine configuration
func (c *Config) GetSmartLabels() SmartLabelsConfig {
	return SmartLabelsConfig{
		BackfillBatchSize: c.GetInt("smartlabels.backfill_batch_size"),
		ApplyConcurrency:  c.GetInt("smartlabels.apply_concurrency"),
		AIExcludedDomains: c.GetStringSlice("smartlabels.ai_excluded_domains"),
	}
}
