// Package export persists extraction results as the four CLI artifacts: a
// plain-text dump, a line-per-candidate list, a JSON candidate array, and
// the combined report document.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/joeymeere/auger/pkg/elffile"
	"github.com/joeymeere/auger/pkg/extract"
)

func log() *slog.Logger {
	return slog.With("component", "export.Writer")
}

// WriteResults writes all four artifacts into dir, prefixed with the
// inferred program name when one was recovered.
func WriteResults(res *extract.Result, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	prefix := ""
	if res.ProgramName != "" {
		prefix = res.ProgramName + "_"
	}

	// The text dump is written as raw bytes: in raw mode the recovered
	// content is not necessarily valid UTF-8 and must survive untouched.
	if err := writeFile(dir, prefix+"text_dump.txt", []byte(res.Text)); err != nil {
		return err
	}

	lines := strings.Join(res.Instructions, "\n")
	if len(res.Instructions) > 0 {
		lines += "\n"
	}
	if err := writeFile(dir, prefix+"instructions.txt", []byte(lines)); err != nil {
		return err
	}

	candidates, err := json.MarshalIndent(res.Instructions, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing instruction list: %w", err)
	}
	if err := writeFile(dir, prefix+"instructions.json", candidates); err != nil {
		return err
	}

	report, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing report: %w", err)
	}
	if err := writeFile(dir, prefix+"result.json", report); err != nil {
		return err
	}

	log().Debug("artifacts written", "dir", dir, "prefix", prefix)
	return nil
}

// elfMeta is the serialized shape of DumpELFMeta.
type elfMeta struct {
	Entry    uint64        `json:"entry"`
	Size     int           `json:"size"`
	Sections []sectionMeta `json:"sections"`
	Segments []sectionMeta `json:"segments"`
}

type sectionMeta struct {
	Name   string `json:"name,omitempty"`
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// DumpELFMeta writes the parsed ELF layout (entry point, section and
// segment tables) to elf-meta.json in dir.
func DumpELFMeta(bin []byte, dir string) error {
	img, err := elffile.NewImage(bin)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	meta := elfMeta{Entry: img.Entry(), Size: img.Size()}
	for _, s := range img.Sections() {
		meta.Sections = append(meta.Sections, sectionMeta{Name: s.Name, Offset: s.Offset, Length: s.Length})
	}
	for _, s := range img.Segments() {
		meta.Segments = append(meta.Segments, sectionMeta{Offset: s.Offset, Length: s.Length})
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing ELF metadata: %w", err)
	}
	return writeFile(dir, "elf-meta.json", data)
}

func writeFile(dir, name string, data []byte) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
