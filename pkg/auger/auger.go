// Package auger is the public entry point of the sBPF extraction engine. It
// loads configuration and exposes the single engine operation: give it the
// bytes of a compiled Solana program and it returns the recovered text,
// instruction candidates and statistics.
package auger

import (
	"github.com/joeymeere/auger/pkg/classify"
	"github.com/joeymeere/auger/pkg/extract"
)

// Extract analyzes one binary image. Stateless and idempotent: identical
// bytes and configuration produce an identical result. A nil config uses the
// defaults.
func Extract(bin []byte, cfg *Config) (*extract.Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ecfg, err := cfg.engineConfig()
	if err != nil {
		return nil, err
	}
	return extract.Extract(bin, ecfg)
}

// engineConfig maps the tool configuration onto the engine's per-run record,
// resolving the signature rule table if a custom one is configured.
func (c *Config) engineConfig() (extract.Config, error) {
	ecfg := extract.Config{
		FFSequenceLength:    c.FFSequenceLength,
		ProgramHeaderIndex:  c.ProgramHeaderIndex,
		ReplaceNonPrintable: c.ReplaceNonPrintable,
		MinTokenLen:         c.MinTokenLen,
		MaxTokenLen:         c.MaxTokenLen,
	}
	if c.SignatureRules != "" {
		rules, err := classify.LoadRules(c.SignatureRules)
		if err != nil {
			return extract.Config{}, err
		}
		ecfg.Rules = rules
	}
	return ecfg, nil
}

// ServerExtractConfig is the engine configuration the HTTP collaborator
// uses for on-chain program dumps.
func (c *Config) ServerExtractConfig() extract.Config {
	return extract.Config{
		FFSequenceLength:    c.Server.FFSequenceLength,
		ProgramHeaderIndex:  c.Server.ProgramHeaderIndex,
		ReplaceNonPrintable: true,
		MinTokenLen:         c.MinTokenLen,
		MaxTokenLen:         c.MaxTokenLen,
	}
}
