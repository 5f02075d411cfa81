package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Figma       FigmaConfig    `toml:"figma"`
	Analysis    AnalysisConfig `toml:"analysis"`
	Gemini      GeminiConfig   `toml:"gemini"`
	Claude      ClaudeConfig   `toml:"claude"`
	LLM         LLMConfig      `toml:"llm"`
	Export      ExportConfig   `toml:"export"`
	Jobs        JobsConfig     `toml:"jobs"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// FigmaConfig configures the design-file API client and OAuth app
type FigmaConfig struct {
	BaseURL          string        `toml:"base_url"`
	Timeout          time.Duration `toml:"timeout"`           // Per-request HTTP timeout
	RateLimit        time.Duration `toml:"rate_limit"`        // Minimum time between API requests
	NodeBatchSize    int           `toml:"node_batch_size"`   // Node ids per /nodes request
	ImageBatchSize   int           `toml:"image_batch_size"`  // Node ids per /images request
	FetchConcurrency int           `toml:"fetch_concurrency"` // Concurrent batch requests
	MaxRetries       int           `toml:"max_retries"`
	Token            string        `toml:"token"` // Personal access token fallback
	OAuth            OAuthConfig   `toml:"oauth"`
}

type OAuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	Scope        string `toml:"scope"`
	// Receives the token fields as query parameters after the callback, when set
	PostLoginRedirect string `toml:"post_login_redirect"`
}

// AnalysisConfig holds the unit planner caps and run defaults
type AnalysisConfig struct {
	DefaultLevel       string  `toml:"default_level"` // frame, page, group, section
	MinGroupSize       int     `toml:"min_group_size"`
	MaxGroupsPerPage   int     `toml:"max_groups_per_page"`
	MaxSectionsPerPage int     `toml:"max_sections_per_page"`
	MaxGroupsGlobal    int     `toml:"max_groups_global"`
	MaxSectionsGlobal  int     `toml:"max_sections_global"`
	ImagesPerUnit      int     `toml:"images_per_unit"`
	ImageScale         float64 `toml:"image_scale"`
	Model              string  `toml:"model"`
	ReasoningEffort    string  `toml:"reasoning_effort"` // low, medium, high
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Thinking    string  `toml:"thinking"` // NONE, LOW, NORMAL, MEDIUM, HIGH
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Thinking    string  `toml:"thinking"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains settings shared by all providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
	FallbackModels  []string    `toml:"fallback_models"` // Tried in order after the requested model
	MaxRetries      int         `toml:"max_retries"`     // Rate limit retries per model call
}

type ExportConfig struct {
	OutputDir string `toml:"output_dir"`
}

// JobsConfig controls retention of finished job records
type JobsConfig struct {
	Retention     time.Duration `toml:"retention"`
	EvictSchedule string        `toml:"evict_schedule"` // Cron schedule (5 fields)
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Figma: FigmaConfig{
			BaseURL:          "https://api.figma.com/v1",
			Timeout:          60 * time.Second,
			RateLimit:        100 * time.Millisecond,
			NodeBatchSize:    35,
			ImageBatchSize:   40,
			FetchConcurrency: 4,
			MaxRetries:       5,
			OAuth: OAuthConfig{
				RedirectURI: "http://localhost:8080/oauth/figma/callback",
				Scope:       "file_read profile_read",
			},
		},
		Analysis: AnalysisConfig{
			DefaultLevel:       "group",
			MinGroupSize:       2,
			MaxGroupsPerPage:   8,
			MaxSectionsPerPage: 10,
			MaxGroupsGlobal:    12,
			MaxSectionsGlobal:  12,
			ImagesPerUnit:      12,
			ImageScale:         2,
			Model:              "gemini-3-flash-preview",
			ReasoningEffort:    "low",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Thinking:    "LOW",
			Timeout:     "5m",
			RateLimit:   "4s",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-5-20250929",
			Thinking:    "NONE",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			FallbackModels:  []string{"gemini-2.5-flash", "claude-sonnet-4-5-20250929"},
			MaxRetries:      3,
		},
		Export: ExportConfig{
			OutputDir: "./outputs",
		},
		Jobs: JobsConfig{
			Retention:     24 * time.Hour,
			EvictSchedule: "*/15 * * * *",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies FIGMAQA_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FIGMAQA_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("FIGMAQA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FIGMAQA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage
	if badgerPath := os.Getenv("FIGMAQA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging
	if level := os.Getenv("FIGMAQA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FIGMAQA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Figma
	if baseURL := os.Getenv("FIGMAQA_FIGMA_BASE_URL"); baseURL != "" {
		config.Figma.BaseURL = baseURL
	}
	if token := os.Getenv("FIGMA_TOKEN"); token != "" {
		config.Figma.Token = token
	}
	if clientID := os.Getenv("FIGMA_CLIENT_ID"); clientID != "" {
		config.Figma.OAuth.ClientID = clientID
	}
	if clientSecret := os.Getenv("FIGMA_CLIENT_SECRET"); clientSecret != "" {
		config.Figma.OAuth.ClientSecret = clientSecret
	}
	if redirect := os.Getenv("FIGMA_REDIRECT_URI"); redirect != "" {
		config.Figma.OAuth.RedirectURI = redirect
	}
	if scope := os.Getenv("FIGMA_OAUTH_SCOPE"); scope != "" {
		config.Figma.OAuth.Scope = scope
	}
	if post := os.Getenv("FIGMA_POST_LOGIN_REDIRECT"); post != "" {
		config.Figma.OAuth.PostLoginRedirect = post
	}
	if concurrency := os.Getenv("FIGMAQA_FIGMA_FETCH_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Figma.FetchConcurrency = c
		}
	}

	// Analysis caps
	envInt("FIGMAQA_MAX_GROUPS_PER_PAGE", &config.Analysis.MaxGroupsPerPage)
	envInt("FIGMAQA_MAX_SECTIONS_PER_PAGE", &config.Analysis.MaxSectionsPerPage)
	envInt("FIGMAQA_MIN_FRAMES_PER_UNIT", &config.Analysis.MinGroupSize)
	envInt("FIGMAQA_MAX_GROUPS_GLOBAL", &config.Analysis.MaxGroupsGlobal)
	envInt("FIGMAQA_MAX_SECTIONS_GLOBAL", &config.Analysis.MaxSectionsGlobal)
	if model := os.Getenv("FIGMAQA_MODEL"); model != "" {
		config.Analysis.Model = model
	}

	// LLM
	if provider := os.Getenv("FIGMAQA_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if fallbacks := os.Getenv("FIGMAQA_FALLBACK_MODELS"); fallbacks != "" {
		config.LLM.FallbackModels = strings.Split(fallbacks, ",")
	}

	// Export
	if dir := os.Getenv("FIGMAQA_OUTPUT_DIR"); dir != "" {
		config.Export.OutputDir = dir
	}

	// Jobs
	if retention := os.Getenv("FIGMAQA_JOB_RETENTION"); retention != "" {
		if d, err := time.ParseDuration(retention); err == nil {
			config.Jobs.Retention = d
		}
	}
}

func envInt(name string, target *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*target = n
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch c.Analysis.DefaultLevel {
	case "frame", "page", "group", "section":
	default:
		return fmt.Errorf("invalid analysis.default_level %q", c.Analysis.DefaultLevel)
	}
	if c.Analysis.ImagesPerUnit < 1 || c.Analysis.ImagesPerUnit > 12 {
		return fmt.Errorf("analysis.images_per_unit must be between 1 and 12, got %d", c.Analysis.ImagesPerUnit)
	}
	if c.Figma.NodeBatchSize < 1 || c.Figma.ImageBatchSize < 1 {
		return fmt.Errorf("figma batch sizes must be positive")
	}
	if c.Jobs.EvictSchedule != "" {
		if err := ValidateSchedule(c.Jobs.EvictSchedule); err != nil {
			return fmt.Errorf("jobs.evict_schedule: %w", err)
		}
	}
	return nil
}

// ValidateSchedule validates a standard 5-field cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables -> config fallback -> error
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"FIGMAQA_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"FIGMAQA_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"claude_api_key":    {"FIGMAQA_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
