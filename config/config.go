// Package config loads scriptloc settings from .scriptloc.yaml, the
// environment (including API_key.env and .env files) and the credential
// store, in that order of increasing fallback.
//
// Precedence, highest first:
//  1. command-line flags (applied by the caller with Apply)
//  2. SCRIPTLOC_* environment variables
//  3. .scriptloc.yaml
//  4. provider key variables (OPENAI_API_KEY, GROQ_API_KEY)
//  5. the settings store ($XDG_DATA_HOME/scriptloc/auth.json)
//  6. built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/scriptloc/chunk"
	"github.com/minios-linux/scriptloc/completion"
	"github.com/minios-linux/scriptloc/localize"
	"github.com/minios-linux/scriptloc/settings"
)

// FileName is the default config file name.
const FileName = ".scriptloc.yaml"

// EnvFiles are loaded from the working directory before the environment is
// read. Variables already set in the process environment are never replaced.
var EnvFiles = []string{"API_key.env", ".env"}

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("invalid configuration")

// providerKeyEnv names the conventional key variable of each provider.
var providerKeyEnv = map[string]string{
	completion.ProviderOpenAI: "OPENAI_API_KEY",
	completion.ProviderGroq:   "GROQ_API_KEY",
}

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// Config is the .scriptloc.yaml structure.
type Config struct {
	// Provider is the completion provider ID (openai, groq, ollama, custom-openai).
	Provider string `yaml:"provider,omitempty"`
	// Model overrides the provider's default model.
	Model string `yaml:"model,omitempty"`
	// BaseURL overrides the provider's API base URL.
	BaseURL string `yaml:"base_url,omitempty"`
	// APIKey is the provider API key. Prefer API_key.env or `scriptloc auth login`.
	APIKey string `yaml:"api_key,omitempty"`
	// Proxy is an HTTP/HTTPS proxy URL.
	Proxy string `yaml:"proxy,omitempty"`
	// Timeout is the per-request timeout (e.g. "2m").
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// ChunkSize is the maximum number of characters per prompt.
	ChunkSize int `yaml:"chunk_size,omitempty"`
	// Retry controls the handling of rate-limited calls.
	Retry Retry `yaml:"retry,omitempty"`
	// RequestsPerMinute paces outgoing calls (0 = unlimited).
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`
	// PromptsFile is a JSON file with prompt template overrides.
	PromptsFile string `yaml:"prompts_file,omitempty"`
	// UILanguage selects the language of the web page and CLI messages.
	UILanguage string `yaml:"ui_language,omitempty"`
	// Server configures `scriptloc serve`.
	Server Server `yaml:"server,omitempty"`
	// Output configures the generated document.
	Output Output `yaml:"output,omitempty"`
}

// Retry configures the rate-limit retry policy.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	Delay       time.Duration `yaml:"delay,omitempty"`
}

// Server configures the web front end.
type Server struct {
	Listen      string   `yaml:"listen,omitempty"`
	MaxUploadMB int      `yaml:"max_upload_mb,omitempty"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// Output configures the generated document.
type Output struct {
	// Filename is the download name; {target_language} is interpolated.
	Filename string `yaml:"filename,omitempty"`
}

// DefaultListen is the address `scriptloc serve` listens on.
const DefaultListen = ":8501"

// DefaultMaxUploadMB caps the uploaded document size.
const DefaultMaxUploadMB = 10

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:  completion.ProviderOpenAI,
		ChunkSize: chunk.DefaultSize,
		Retry: Retry{
			MaxAttempts: completion.DefaultMaxAttempts,
			Delay:       completion.DefaultRetryDelay,
		},
		Server: Server{
			Listen:      DefaultListen,
			MaxUploadMB: DefaultMaxUploadMB,
		},
		Output: Output{Filename: localize.DefaultFilenameTemplate},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads path over the defaults. An empty path means FileName in the
// working directory, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = FileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// Relative prompt files are relative to the config file.
	if cfg.PromptsFile != "" && !filepath.IsAbs(cfg.PromptsFile) {
		cfg.PromptsFile = filepath.Join(filepath.Dir(path), cfg.PromptsFile)
	}
	return cfg, nil
}

// LoadEnvFiles loads the EnvFiles found in dir into the process
// environment and returns the paths that were loaded.
func LoadEnvFiles(dir string) ([]string, error) {
	var loaded []string
	for _, name := range EnvFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("loading %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// ApplyEnv overlays SCRIPTLOC_* environment variables.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"SCRIPTLOC_PROVIDER": &c.Provider,
		"SCRIPTLOC_MODEL":    &c.Model,
		"SCRIPTLOC_BASE_URL": &c.BaseURL,
		"SCRIPTLOC_API_KEY":  &c.APIKey,
		"SCRIPTLOC_PROXY":    &c.Proxy,
		"SCRIPTLOC_LISTEN":   &c.Server.Listen,
	}
	for name, dst := range strs {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("SCRIPTLOC_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SCRIPTLOC_CHUNK_SIZE: %v", ErrInvalid, err)
		}
		c.ChunkSize = n
	}
	if v := os.Getenv("SCRIPTLOC_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: SCRIPTLOC_RETRY_DELAY: %v", ErrInvalid, err)
		}
		c.Retry.Delay = d
	}
	return nil
}

// Overrides holds command-line values. Zero fields leave the config as is.
type Overrides struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Proxy       string
	Timeout     time.Duration
	ChunkSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	Listen      string
}

// Apply overlays non-zero override values.
func (c *Config) Apply(o Overrides) {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setStr(&c.Provider, o.Provider)
	setStr(&c.Model, o.Model)
	setStr(&c.APIKey, o.APIKey)
	setStr(&c.BaseURL, o.BaseURL)
	setStr(&c.Proxy, o.Proxy)
	setStr(&c.Server.Listen, o.Listen)
	if o.Timeout != 0 {
		c.Timeout = o.Timeout
	}
	if o.ChunkSize != 0 {
		c.ChunkSize = o.ChunkSize
	}
	if o.MaxAttempts != 0 {
		c.Retry.MaxAttempts = o.MaxAttempts
	}
	if o.RetryDelay != 0 {
		c.Retry.Delay = o.RetryDelay
	}
}

// ResolveCredentials fills an empty API key from the provider's key
// variable, then from the settings store, and an empty base URL from the
// store. It returns where the key came from ("" if none was found).
func (c *Config) ResolveCredentials() string {
	id := completion.ResolveProvider(c.Provider).ID
	source := ""
	if c.APIKey != "" {
		source = "configured"
	}
	if c.APIKey == "" {
		if name, ok := providerKeyEnv[id]; ok {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				c.APIKey, source = v, name
			}
		}
	}
	if c.APIKey == "" {
		if v := settings.GetAPIKey(id); v != "" {
			c.APIKey, source = v, "auth store"
		}
	}
	if c.BaseURL == "" {
		c.BaseURL = settings.GetBaseURL(id)
	}
	return source
}

// ---------------------------------------------------------------------------
// Derived values
// ---------------------------------------------------------------------------

// CompletionProvider returns the provider definition with config overrides.
func (c *Config) CompletionProvider() completion.Provider {
	p := completion.ResolveProvider(c.Provider)
	if c.Model != "" {
		p.Model = c.Model
	}
	if c.BaseURL != "" {
		p.BaseURL = c.BaseURL
	}
	if c.Timeout > 0 {
		p.Timeout = c.Timeout
	}
	p.APIKey = c.APIKey
	p.Proxy = c.Proxy
	return p
}

// CompletionConfig returns the completion client configuration.
func (c *Config) CompletionConfig(onLog func(format string, args ...any)) completion.Config {
	return completion.Config{
		Provider:          c.CompletionProvider(),
		MaxAttempts:       c.Retry.MaxAttempts,
		RetryDelay:        c.Retry.Delay,
		RequestsPerMinute: c.RequestsPerMinute,
		OnLog:             onLog,
	}
}

// PromptsPath returns the prompts file to load: the configured one, or the
// user's prompts.json in the data directory.
func (c *Config) PromptsPath() string {
	if c.PromptsFile != "" {
		return c.PromptsFile
	}
	p, err := settings.PromptsFilePath()
	if err != nil {
		return ""
	}
	return p
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// Validate checks the configuration. A missing API key for a provider that
// needs one matches completion.ErrMissingAPIKey.
func (c *Config) Validate() error {
	var problems []string
	if c.ChunkSize <= 0 {
		problems = append(problems, fmt.Sprintf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.Retry.MaxAttempts <= 0 {
		problems = append(problems, fmt.Sprintf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.Delay < 0 {
		problems = append(problems, fmt.Sprintf("retry.delay must not be negative, got %v", c.Retry.Delay))
	}
	if c.Timeout < 0 {
		problems = append(problems, fmt.Sprintf("timeout must not be negative, got %v", c.Timeout))
	}
	if c.RequestsPerMinute < 0 {
		problems = append(problems, fmt.Sprintf("requests_per_minute must not be negative, got %d", c.RequestsPerMinute))
	}
	if c.Server.MaxUploadMB <= 0 {
		problems = append(problems, fmt.Sprintf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB))
	}
	p := c.CompletionProvider()
	if p.BaseURL == "" {
		problems = append(problems, fmt.Sprintf("provider '%s' requires base_url", p.ID))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}

	if p.RequiresKey() && p.APIKey == "" {
		hint := "SCRIPTLOC_API_KEY"
		if name, ok := providerKeyEnv[p.ID]; ok {
			hint = name
		}
		return fmt.Errorf("provider '%s': %w (set %s in API_key.env, pass --api-key or run 'scriptloc auth login')",
			p.ID, completion.ErrMissingAPIKey, hint)
	}
	return nil
}
