package auger

import (
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/joeymeere/auger/pkg/extract"
)

// DefaultConfig suits locally built cargo build-bpf binaries: a delimiter
// run of 8, program header 1, non-printables replaced.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:            "INFO",
		FFSequenceLength:    8,
		ProgramHeaderIndex:  1,
		ReplaceNonPrintable: true,
		MinTokenLen:         2,
		MaxTokenLen:         50,
		OutputDir:           "./extracted",
		Server: ServerConfig{
			Port:               8180,
			RPCURL:             "https://api.mainnet-beta.solana.com",
			RPCTimeout:         30 * time.Second,
			CacheLen:           256,
			CacheTTL:           5 * time.Minute,
			FFSequenceLength:   64,
			ProgramHeaderIndex: 0,
		},
	}
}

// Config is the whole tool configuration: engine knobs plus the CLI and
// HTTP collaborator settings. Loaded once, never mutated at runtime.
type Config struct {
	LogLevel string `yaml:"log_level" env:"AUGER_LOG_LEVEL"`

	// FFSequenceLength is the minimum run, in bytes, of the 0xFF delimiter
	// that bounds text regions. Must be >= 1.
	FFSequenceLength int `yaml:"ff_sequence_length" env:"AUGER_FF_SEQUENCE_LENGTH"`
	// ProgramHeaderIndex selects which segment holds the bytecode/data
	// blob. Set to -1 to follow the detected linker variant's default.
	ProgramHeaderIndex int `yaml:"program_header_index" env:"AUGER_PROGRAM_HEADER_INDEX"`
	// ReplaceNonPrintable renders non-printable bytes as spaces; disable
	// for a byte-exact dump of the recovered regions.
	ReplaceNonPrintable bool `yaml:"replace_non_printable" env:"AUGER_REPLACE_NON_PRINTABLE"`

	MinTokenLen int `yaml:"min_token_len" env:"AUGER_MIN_TOKEN_LEN"`
	MaxTokenLen int `yaml:"max_token_len" env:"AUGER_MAX_TOKEN_LEN"`

	// SignatureRules optionally points at a YAML rule table replacing the
	// embedded one.
	SignatureRules string `yaml:"signature_rules" env:"AUGER_SIGNATURE_RULES"`

	// OutputDir is where the CLI writes its artifacts.
	OutputDir string `yaml:"output_dir" env:"AUGER_OUTPUT_DIR"`

	Server ServerConfig `yaml:"server"`
}

// ServerConfig drives the HTTP collaborator. The extraction profile differs
// from the CLI's: on-chain dumps are analyzed from segment 0 with a longer
// delimiter run.
type ServerConfig struct {
	Port    int      `yaml:"port" env:"AUGER_SERVER_PORT"`
	APIKeys []string `yaml:"api_keys" env:"AUGER_API_KEYS" envSeparator:","`

	RPCURL     string        `yaml:"rpc_url" env:"SOLANA_RPC_URL"`
	RPCTimeout time.Duration `yaml:"rpc_timeout" env:"AUGER_RPC_TIMEOUT"`

	CacheLen int           `yaml:"cache_len" env:"AUGER_CACHE_LEN"`
	CacheTTL time.Duration `yaml:"cache_expiry" env:"AUGER_CACHE_TTL"`

	// RedisAddr enables report persistence when set.
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`

	FFSequenceLength   int `yaml:"ff_sequence_length" env:"AUGER_SERVER_FF_SEQUENCE_LENGTH"`
	ProgramHeaderIndex int `yaml:"program_header_index" env:"AUGER_SERVER_PROGRAM_HEADER_INDEX"`
}

// ConfigError reports a configuration value the engine refuses to run with.
type ConfigError string

func (e ConfigError) Error() string { return string(e) }

// Unwrap lets callers test with errors.Is(err, extract.ErrInvalidConfig).
func (e ConfigError) Unwrap() error { return extract.ErrInvalidConfig }

func (c *Config) Validate() error {
	if c.FFSequenceLength < 1 {
		return ConfigError(fmt.Sprintf("ff_sequence_length must be at least 1, got %d", c.FFSequenceLength))
	}
	if c.ProgramHeaderIndex < extract.AutoHeaderIndex {
		return ConfigError(fmt.Sprintf("program_header_index must be non-negative (or -1 for auto), got %d", c.ProgramHeaderIndex))
	}
	if c.MinTokenLen < 1 {
		return ConfigError("min_token_len must be at least 1")
	}
	if c.MaxTokenLen < c.MinTokenLen {
		return ConfigError("max_token_len must not be below min_token_len")
	}
	if c.Server.FFSequenceLength < 1 {
		return ConfigError("server ff_sequence_length must be at least 1")
	}
	return nil
}

// LoadConfig overlays defaults with an optional YAML file and with
// environment variables, in that order.
func LoadConfig(file io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if file != nil {
		cfgBuf, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("reading YAML configuration: %w", err)
		}
		if err := yaml.Unmarshal(cfgBuf, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML configuration: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("reading env vars: %w", err)
	}
	return cfg, nil
}
