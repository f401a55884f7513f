package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/joeymeere/auger/pkg/auger"
	"github.com/joeymeere/auger/pkg/export"
)

func main() {
	lvl := slog.LevelVar{}
	lvl.Set(slog.LevelInfo)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: &lvl,
	})))

	configPath := flag.String("config", "", "path to the configuration file")
	outputDir := flag.String("o", "", "directory for the extraction artifacts")
	ffLen := flag.Int("s", 0, "minimum 0xFF delimiter run length")
	headerIndex := flag.Int("i", -2, "program header index holding the text (-1 follows the linker variant)")
	raw := flag.Bool("raw", false, "keep non-printable bytes instead of replacing them")
	rules := flag.String("rules", "", "path to a YAML signature rule table")
	dumpELF := flag.Bool("dump-elf", false, "also write the ELF section/segment layout")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <program.so> [more programs...]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(-1)
	}

	config := loadConfig(configPath)
	applyFlags(config, outputDir, ffLen, headerIndex, raw, rules)

	if err := lvl.UnmarshalText([]byte(config.LogLevel)); err != nil {
		slog.Error("unknown log level specified, choices are [DEBUG, INFO, WARN, ERROR]", "error", err)
		os.Exit(-1)
	}
	if err := config.Validate(); err != nil {
		slog.Error("wrong configuration", "error", err)
		os.Exit(-1)
	}

	var group errgroup.Group
	for _, path := range flag.Args() {
		group.Go(func() error {
			return processFile(path, config, *dumpELF)
		})
	}
	if err := group.Wait(); err != nil {
		slog.Error("extraction failed", "error", err)
		os.Exit(-1)
	}
}

func processFile(path string, config *auger.Config, dumpELF bool) error {
	bin, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	res, err := auger.Extract(bin, config)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", path, err)
	}
	slog.Info("extraction finished",
		"file", filepath.Base(path),
		"program", res.ProgramName,
		"type", res.ProgramType,
		"instructions", res.Stats.InstructionCount,
		"files", res.Stats.FileCount)

	if err := export.WriteResults(res, config.OutputDir); err != nil {
		return fmt.Errorf("writing results for %s: %w", path, err)
	}
	if dumpELF {
		if err := export.DumpELFMeta(bin, config.OutputDir); err != nil {
			return fmt.Errorf("writing ELF layout for %s: %w", path, err)
		}
	}
	return nil
}

// applyFlags overlays explicit command-line values on top of the loaded
// configuration. Unset flags keep their sentinel values and change nothing.
func applyFlags(config *auger.Config, outputDir *string, ffLen, headerIndex *int, raw *bool, rules *string) {
	if *outputDir != "" {
		config.OutputDir = *outputDir
	}
	if *ffLen > 0 {
		config.FFSequenceLength = *ffLen
	}
	if *headerIndex >= -1 {
		config.ProgramHeaderIndex = *headerIndex
	}
	if *raw {
		config.ReplaceNonPrintable = false
	}
	if *rules != "" {
		config.SignatureRules = *rules
	}
}

func loadConfig(configPath *string) *auger.Config {
	var configReader io.ReadCloser
	if configPath != nil && *configPath != "" {
		var err error
		if configReader, err = os.Open(*configPath); err != nil {
			slog.Error("can't open "+*configPath, "error", err)
			os.Exit(-1)
		}
		defer configReader.Close()
	}
	config, err := auger.LoadConfig(configReader)
	if err != nil {
		slog.Error("wrong configuration", "error", err)
		os.Exit(-1)
	}
	return config
}
