package sqllogic

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the sqllogic runner configuration
type Config struct {
	SuiteRoot    string    `yaml:"suite_root"`
	Backends     []Backend `yaml:"backends"`
	Skip         []string  `yaml:"skip"`
	SkipFile     string    `yaml:"skip_file"`
	OnParseError string    `yaml:"on_parse_error"` // "skip" (default) or "abort"
	Sequential   bool      `yaml:"sequential"`
	FailFast     bool      `yaml:"fail_fast"`
	MaxFailures  int       `yaml:"max_failures"` // failure diffs kept in the report
	Timeout      int       `yaml:"timeout"`      // per-record timeout in seconds
}

// Backend represents one configured handler connection
type Backend struct {
	Label    string   `yaml:"label"`
	Protocol Protocol `yaml:"protocol"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	Database string   `yaml:"database"`

	// Connection overrides the assembled host/port/credential parameters
	// with a raw DSN (sql drivers) or base URL (http protocol).
	Connection string `yaml:"connection"`
}

// Addr returns the host:port pair for the backend.
func (b Backend) Addr() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// Labels returns the declared backend labels in configuration order.
func (c *Config) Labels() []string {
	labels := make([]string, 0, len(c.Backends))
	for _, b := range c.Backends {
		labels = append(labels, b.Label)
	}

	return labels
}

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	// Check if config file exists
	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		// Return default configuration if file doesn't exist
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML with strict mode to detect unknown fields
	var config Config

	err = yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&config)

	// Expand environment variables
	expandConfigEnvVars(&config)

	return &config, nil
}

// LoadSkipList reads a YAML skip-list file: a plain sequence of suite file
// identifiers to exclude from the run.
func LoadSkipList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skip list: %w", err)
	}

	var entries []string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse skip list: %w", err)
	}

	return entries, nil
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	seen := make(map[string]bool, len(config.Backends))

	for i, b := range config.Backends {
		if b.Label == "" {
			return fmt.Errorf("%w: backends[%d]: label is required", ErrConfigValidation, i)
		}

		if seen[b.Label] {
			return fmt.Errorf("%w: %s", ErrDuplicateLabel, b.Label)
		}

		seen[b.Label] = true

		if !b.Protocol.Valid() {
			return fmt.Errorf("%w: backend '%s': '%s' must be one of mysql, postgres, sqlite, http", ErrUnknownProtocol, b.Label, b.Protocol)
		}

		if b.Port < 0 || b.Port > 65535 {
			return fmt.Errorf("%w: backend '%s': invalid port %d", ErrConfigValidation, b.Label, b.Port)
		}
	}

	switch config.OnParseError {
	case "", "skip", "abort":
	default:
		return fmt.Errorf("%w: on_parse_error '%s' is invalid: must be skip or abort", ErrConfigValidation, config.OnParseError)
	}

	if config.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be non-negative, got %d", ErrConfigValidation, config.Timeout)
	}

	if config.MaxFailures < 0 {
		return fmt.Errorf("%w: max_failures must be non-negative, got %d", ErrConfigValidation, config.MaxFailures)
	}

	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		SuiteRoot:    "./suites",
		Backends:     []Backend{},
		Skip:         []string{},
		OnParseError: "skip",
		MaxFailures:  10,
		Timeout:      30,
	}
}

// applyDefaults applies default values for missing configuration entries
func applyDefaults(config *Config) {
	if config.SuiteRoot == "" {
		config.SuiteRoot = "./suites"
	}

	if config.OnParseError == "" {
		config.OnParseError = "skip"
	}

	if config.MaxFailures == 0 {
		config.MaxFailures = 10
	}

	if config.Timeout == 0 {
		config.Timeout = 30
	}

	for i, b := range config.Backends {
		if b.Host == "" {
			b.Host = "127.0.0.1"
		}

		if b.Port == 0 {
			switch b.Protocol {
			case ProtocolMySQL:
				b.Port = 3306
			case ProtocolPostgres:
				b.Port = 5432
			case ProtocolHTTP:
				b.Port = 8000
			}
		}

		config.Backends[i] = b
	}
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	// Pattern for ${VAR} format
	re1 := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re1.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1] // Remove ${ and }
		return os.Getenv(varName)
	})

	// Pattern for $VAR format (word boundaries)
	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:] // Remove $
		return os.Getenv(varName)
	})

	return s
}

// expandConfigEnvVars recursively expands environment variables in config
func expandConfigEnvVars(config *Config) {
	config.SuiteRoot = expandEnvVars(config.SuiteRoot)
	config.SkipFile = expandEnvVars(config.SkipFile)

	for i, b := range config.Backends {
		b.Host = expandEnvVars(b.Host)
		b.User = expandEnvVars(b.User)
		b.Password = expandEnvVars(b.Password)
		b.Database = expandEnvVars(b.Database)
		b.Connection = expandEnvVars(b.Connection)
		config.Backends[i] = b
	}
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
