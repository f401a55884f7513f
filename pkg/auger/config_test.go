package auger

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeymeere/auger/pkg/elffile/elftest"
	"github.com/joeymeere/auger/pkg/extract"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(nil)

	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 8, cfg.FFSequenceLength)
	assert.Equal(t, 1, cfg.ProgramHeaderIndex)
	assert.True(t, cfg.ReplaceNonPrintable)
	assert.Equal(t, 8180, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Server.FFSequenceLength)
	assert.Equal(t, 0, cfg.Server.ProgramHeaderIndex)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_YAMLOverlay(t *testing.T) {
	yamlCfg := bytes.NewBufferString(`
log_level: DEBUG
ff_sequence_length: 16
output_dir: /tmp/out
server:
  port: 9000
  rpc_timeout: 10s
`)

	cfg, err := LoadConfig(yamlCfg)

	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 16, cfg.FFSequenceLength)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.RPCTimeout)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1, cfg.ProgramHeaderIndex)
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	t.Setenv("AUGER_FF_SEQUENCE_LENGTH", "32")
	t.Setenv("AUGER_API_KEYS", "key-one,key-two")
	t.Setenv("SOLANA_RPC_URL", "https://rpc.example.test")

	cfg, err := LoadConfig(bytes.NewBufferString("ff_sequence_length: 16"))

	require.NoError(t, err)
	assert.Equal(t, 32, cfg.FFSequenceLength)
	assert.Equal(t, []string{"key-one", "key-two"}, cfg.Server.APIKeys)
	assert.Equal(t, "https://rpc.example.test", cfg.Server.RPCURL)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	_, err := LoadConfig(bytes.NewBufferString("not yaml: ]["))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ff run", func(c *Config) { c.FFSequenceLength = 0 }},
		{"negative header index", func(c *Config) { c.ProgramHeaderIndex = -2 }},
		{"zero min token", func(c *Config) { c.MinTokenLen = 0 }},
		{"max below min", func(c *Config) { c.MaxTokenLen = 1 }},
		{"zero server ff run", func(c *Config) { c.Server.FFSequenceLength = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.ErrorIs(t, err, extract.ErrInvalidConfig)
			var cerr ConfigError
			assert.True(t, errors.As(err, &cerr))
		})
	}
}

func TestValidate_AutoHeaderIndexAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProgramHeaderIndex = extract.AutoHeaderIndex
	assert.NoError(t, cfg.Validate())
}

func TestExtract_FacadeUsesDefaults(t *testing.T) {
	bin := elftest.NewBuilder().
		AddSegment([]byte("bytecode")).
		AddSegment(append([]byte("initialize"), bytes.Repeat([]byte{0xFF}, 8)...)).
		Bytes()

	res, err := Extract(bin, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"initialize"}, res.Instructions)
}

func TestExtract_FacadeRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FFSequenceLength = 0

	_, err := Extract([]byte("irrelevant"), cfg)

	assert.ErrorIs(t, err, extract.ErrInvalidConfig)
}

func TestServerExtractConfig(t *testing.T) {
	cfg := DefaultConfig()

	ecfg := cfg.ServerExtractConfig()

	assert.Equal(t, 64, ecfg.FFSequenceLength)
	assert.Equal(t, 0, ecfg.ProgramHeaderIndex)
	assert.True(t, ecfg.ReplaceNonPrintable)
}
