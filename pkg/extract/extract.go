// Package extract implements the sBPF text-recovery pipeline: locate the
// bytecode/data segment, partition it at 0xFF delimiter runs, normalize the
// recovered blocks and classify them into instruction candidates.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joeymeere/auger/pkg/classify"
	"github.com/joeymeere/auger/pkg/elffile"
	"github.com/joeymeere/auger/pkg/linker"
)

// ErrInvalidConfig marks configuration errors detected before scanning
// begins: a delimiter run length below one, or a program header index
// outside the image's table.
var ErrInvalidConfig = errors.New("invalid config")

// AutoHeaderIndex selects the program header preferred by the detected
// linker variant instead of a fixed index.
const AutoHeaderIndex = -1

// Config is the immutable per-run configuration.
type Config struct {
	// FFSequenceLength is the minimum 0xFF run length treated as a record
	// boundary. Must be >= 1.
	FFSequenceLength int
	// ProgramHeaderIndex selects the segment holding the bytecode/data
	// blob. AutoHeaderIndex defers to the detected variant's default.
	ProgramHeaderIndex int
	// ReplaceNonPrintable renders non-printable bytes as spaces; when
	// false, block content passes through verbatim.
	ReplaceNonPrintable bool

	// Candidate token length bounds; zero values use classifier defaults.
	MinTokenLen int
	MaxTokenLen int

	// Rules overrides the embedded signature table.
	Rules *classify.Rules
}

// DefaultConfig matches the layout of typical cargo build-bpf output.
func DefaultConfig() Config {
	return Config{
		FFSequenceLength:    8,
		ProgramHeaderIndex:  1,
		ReplaceNonPrintable: true,
	}
}

func log() *slog.Logger {
	return slog.With("component", "extract")
}

// Extract runs the full pipeline over one binary image. It is stateless and
// deterministic: identical bytes and config yield an identical Result. A
// fatal error returns no partial result; an analyzable image with nothing to
// find returns an empty Result.
func Extract(bin []byte, cfg Config) (*Result, error) {
	if cfg.FFSequenceLength < 1 {
		return nil, fmt.Errorf("%w: ff_sequence_length must be >= 1, got %d",
			ErrInvalidConfig, cfg.FFSequenceLength)
	}

	img, err := elffile.NewImage(bin)
	if err != nil {
		return nil, err
	}

	det := linker.Detect(img)
	strategy := linker.StrategyFor(det.Variant)

	idx := cfg.ProgramHeaderIndex
	if idx == AutoHeaderIndex {
		idx = strategy.SegmentIndex
	}
	seg, ok := img.Segment(idx)
	if !ok {
		return nil, fmt.Errorf("%w: program_header_index %d outside table of %d entries",
			ErrInvalidConfig, idx, len(img.Segments()))
	}

	res := &Result{
		Instructions:          []string{},
		ProtectedInstructions: []string{},
		Syscalls:              extractSyscalls(img),
		ProgramType:           "unknown",
		CustomLinker:          det.Linker,
		Variant:               det.Variant.String(),
		Stats: Stats{
			StartOffset:    int(seg.Offset),
			EndPosition:    int(seg.Offset + seg.Length),
			BytesProcessed: img.Size(),
		},
	}

	if seg.Empty() {
		// An empty finding is informative, not an error.
		log().Debug("selected segment is empty", "index", idx)
		return res, nil
	}

	scanStart := time.Now()
	blocks := scanBlocks(seg.Bytes(), cfg.FFSequenceLength)
	res.Stats.Timings.Scan = time.Since(scanStart)

	normStart := time.Now()
	normalizeBlocks(blocks, cfg.ReplaceNonPrintable)
	res.Stats.Timings.Normalize = time.Since(normStart)

	classifyStart := time.Now()
	c := classify.New(classify.Options{
		MinTokenLen:    cfg.MinTokenLen,
		MaxTokenLen:    cfg.MaxTokenLen,
		MangledSymbols: strategy.MangledSymbols,
		Rules:          cfg.Rules,
	})
	rep := c.Classify(classifierInput(blocks, cfg.ReplaceNonPrintable))
	res.Stats.Timings.Classify = time.Since(classifyStart)

	var text strings.Builder
	for _, b := range blocks {
		text.Write(b.Text)
	}
	res.Text = text.String()
	res.Instructions = rep.Instructions
	res.ProtectedInstructions = rep.Protected
	res.Definitions = rep.Definitions
	res.Files = rep.Files
	res.ProgramName = rep.ProgramName
	res.ProgramType = rep.ProgramType
	res.Stats.InstructionCount = len(res.Instructions)
	res.Stats.FileCount = len(res.Files)

	log().Debug("extraction finished",
		"blocks", len(blocks),
		"instructions", res.Stats.InstructionCount,
		"variant", res.Variant,
		"programType", res.ProgramType)

	return res, nil
}

// classifierInput always feeds printable text to the signature rules, even
// in raw output mode: pattern matching on arbitrary bytes would only churn
// on garbage the normalizer already knows how to neutralize.
func classifierInput(blocks []Block, replaced bool) []string {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		if replaced {
			texts[i] = string(b.Text)
		} else {
			texts[i] = string(normalize(b.Raw))
		}
	}
	return texts
}

// extractSyscalls lists the runtime imports recorded in .dynstr sections.
func extractSyscalls(img *elffile.Image) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, sec := range img.SectionsByName(".dynstr") {
		if sec.Empty() {
			continue
		}
		for _, entry := range strings.Split(string(sec.Bytes()), "\x00") {
			if entry == "" || len(entry) > 30 {
				continue
			}
			if _, ok := seen[entry]; ok {
				continue
			}
			seen[entry] = struct{}{}
			out = append(out, entry)
		}
	}
	return out
}
