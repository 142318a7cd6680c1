package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ofmock/internal/correlation"
	"github.com/starford/ofmock/internal/dictionary"
	"github.com/starford/ofmock/internal/generator"
	"github.com/starford/ofmock/internal/mockservice"
	"github.com/starford/ofmock/internal/regexgen"
	"github.com/starford/ofmock/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Contracts   ContractsConfig   `yaml:"contracts"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Auth        AuthConfig        `yaml:"auth"`
	Generation  GenerationConfig  `yaml:"generation"`
	Correlation CorrelationConfig `yaml:"correlation"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Contracts, &c.Catalog, &c.Auth, &c.Generation, &c.Correlation} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	GRPC     GRPCConfig `yaml:"grpc"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("app.http: %w", err)
	}
	if err := c.GRPC.Validate(); err != nil {
		return fmt.Errorf("app.grpc: %w", err)
	}
	return nil
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// GRPCConfig holds gRPC server configuration. Port 0 disables the server.
type GRPCConfig struct {
	Port int `yaml:"port"`
}

// Enabled reports whether the gRPC server should be started.
func (c *GRPCConfig) Enabled() bool { return c.Port > 0 }

// Address returns gRPC server address.
func (c *GRPCConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the gRPC configuration.
func (c *GRPCConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}

// ContractsConfig points at the directory of OpenAPI/Swagger documents.
type ContractsConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the contracts configuration.
func (c *ContractsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// CatalogConfig holds the SQLite catalog location.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// GenerationConfig tunes value generation and request limits.
type GenerationConfig struct {
	DefaultCount     int     `yaml:"default_count"`
	MaxCount         int     `yaml:"max_count"`
	SeedCount        int     `yaml:"seed_count"` // records per correlated schema at startup; 0 disables
	PopulateOptional bool    `yaml:"populate_optional"`
	RepetitionCap    int     `yaml:"repetition_cap"`
	UseExamples      bool    `yaml:"use_examples"`
	DictionaryDir    string  `yaml:"dictionary_dir"` // per-category example dictionaries; empty disables
	FanOut           int     `yaml:"fan_out"`
	MaxFanOut        int     `yaml:"max_fan_out"`
	MaxDepth         int     `yaml:"max_depth"`
	RateLimit        float64 `yaml:"rate_limit"` // generation requests per second; 0 disables
	RateBurst        int     `yaml:"rate_burst"`
}

// Validate validates the generation configuration.
func (c *GenerationConfig) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.DefaultCount, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxCount, validation.Required, validation.Min(c.DefaultCount)),
		validation.Field(&c.SeedCount, validation.Min(0), validation.Max(c.MaxCount)),
		validation.Field(&c.RepetitionCap, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.FanOut, validation.Required, validation.Min(1), validation.Max(c.MaxFanOut)),
		validation.Field(&c.MaxFanOut, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxDepth, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&c.RateLimit, validation.Min(0.0)),
		validation.Field(&c.RateBurst, validation.When(c.RateLimit > 0, validation.Required, validation.Min(1))),
	)
	if err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	return nil
}

// Limits returns the per-call limits for the mock service.
func (c *GenerationConfig) Limits() mockservice.Limits {
	return mockservice.Limits{
		DefaultCount: c.DefaultCount,
		MaxCount:     c.MaxCount,
		FanOut:       c.FanOut,
		MaxFanOut:    c.MaxFanOut,
		MaxDepth:     c.MaxDepth,
	}
}

// GeneratorOptions returns the generator options for this configuration,
// loading the example dictionaries when a directory is configured. Declared
// examples take precedence over dictionary entries.
func (c *GenerationConfig) GeneratorOptions(logger *slog.Logger) ([]generator.Option, error) {
	opts := []generator.Option{
		generator.WithPopulateOptional(c.PopulateOptional),
		generator.WithRepetitionCap(c.RepetitionCap),
	}
	var lookups []generator.ExampleLookup
	if c.UseExamples {
		lookups = append(lookups, generator.DeclaredExamples{})
	}
	if c.DictionaryDir != "" {
		dict, err := loadDictionary(c.DictionaryDir, logger)
		if err != nil {
			return nil, err
		}
		if dict != nil {
			lookups = append(lookups, dict)
		}
	}
	if len(lookups) > 0 {
		opts = append(opts, generator.WithExampleLookup(lookups...))
	}
	return opts, nil
}

// loadDictionary returns nil when dir does not exist.
func loadDictionary(dir string, logger *slog.Logger) (*dictionary.Dictionary, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		logger.Warn("dictionary directory not found", slog.String("dir", dir))
		return nil, nil
	}
	src, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("generation.dictionary_dir: %w", err)
	}
	dict, err := dictionary.Load(src, logger)
	if err != nil {
		return nil, err
	}
	for category, sum := range dict.Summary() {
		logger.Info("dictionary loaded",
			slog.String("category", category),
			slog.Int("fields", sum.Fields),
			slog.Int("enums", sum.Enums))
	}
	return dict, nil
}

// CorrelationConfig holds the relationships between contracts.
type CorrelationConfig struct {
	Rules []correlation.Rule `yaml:"rules"`
}

// Validate builds the graph once to reject invalid rules.
func (c *CorrelationConfig) Validate() error {
	if _, err := correlation.New(c.Rules); err != nil {
		return fmt.Errorf("correlation: %w", err)
	}
	return nil
}

// Graph returns the correlation graph of the configured rules.
func (c *CorrelationConfig) Graph() (*correlation.Graph, error) {
	return correlation.New(c.Rules)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	limits := mockservice.DefaultLimits()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			GRPC: GRPCConfig{
				Port: 9090,
			},
		},
		Contracts: ContractsConfig{
			Dir:   "./contracts",
			Watch: true,
		},
		Catalog: CatalogConfig{
			Path: "./ofmock.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Generation: GenerationConfig{
			DefaultCount:     limits.DefaultCount,
			MaxCount:         limits.MaxCount,
			SeedCount:        20,
			PopulateOptional: true,
			RepetitionCap:    regexgen.DefaultRepetitionCap,
			UseExamples:      true,
			FanOut:           limits.FanOut,
			MaxFanOut:        limits.MaxFanOut,
			MaxDepth:         limits.MaxDepth,
			RateLimit:        50,
			RateBurst:        100,
		},
		Correlation: CorrelationConfig{
			Rules: correlation.DefaultRules(),
		},
	}
}
