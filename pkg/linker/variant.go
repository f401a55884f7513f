// Package linker classifies which toolchain/linker produced an sBPF binary.
//
// Solana programs built with the older cargo build-bpf flow go through the
// system linker and keep the classic section layout. Newer cargo build-sbf
// binaries are linked with LLVM's LLD and append a .<program_name> section
// holding an extra UTF-8 blob of Itanium-mangled Rust symbols. The variant
// tag selects the parsing strategy downstream; detection itself never
// touches the image.
package linker

import (
	"strings"

	"github.com/joeymeere/auger/pkg/elffile"
)

type Variant int

const (
	// VariantStandard covers GNU/BFD-era cargo build-bpf output.
	VariantStandard Variant = iota
	// VariantLLD covers cargo build-sbf output linked with LLVM LLD.
	VariantLLD
	// VariantUnknown means no distinguishing signal was found; callers
	// treat it as standard.
	VariantUnknown
)

func (v Variant) String() string {
	switch v {
	case VariantStandard:
		return "standard"
	case VariantLLD:
		return "lld"
	default:
		return "unknown"
	}
}

// Strategy is the per-variant parsing policy. A lookup table, not a type
// hierarchy: variants only differ in data.
type Strategy struct {
	// SegmentIndex is the program header that holds the bytecode/data blob
	// when the configuration does not pin one explicitly.
	SegmentIndex int
	// MangledSymbols reports whether the binary carries a trailing blob of
	// Itanium-mangled Rust names worth demangling.
	MangledSymbols bool
}

var strategies = map[Variant]Strategy{
	VariantStandard: {SegmentIndex: 1},
	VariantLLD:      {SegmentIndex: 0, MangledSymbols: true},
	VariantUnknown:  {SegmentIndex: 1},
}

// StrategyFor returns the parsing strategy for a detected variant.
func StrategyFor(v Variant) Strategy {
	if s, ok := strategies[v]; ok {
		return s
	}
	return strategies[VariantUnknown]
}

const linkerMarker = "Linker: "

// Detection is the classifier output: the variant tag plus the raw linker
// string when the binary records one.
type Detection struct {
	Variant Variant
	Linker  string
}

// Detect inspects section metadata (notably .comment-style sections) and
// classifies the producing toolchain. With no distinguishing signal it
// returns VariantStandard per the default policy.
func Detect(img *elffile.Image) Detection {
	if name := linkerComment(img); name != "" {
		v := VariantStandard
		if strings.Contains(strings.ToUpper(name), "LLD") {
			v = VariantLLD
		}
		return Detection{Variant: v, Linker: name}
	}
	// No .comment marker. LLD-linked sBPF binaries still betray themselves
	// through mangled Rust names in their string tables.
	for _, sec := range img.SectionsByName("str") {
		if sec.Empty() {
			continue
		}
		if strings.Contains(string(sec.Bytes()), "_ZN") {
			return Detection{Variant: VariantLLD}
		}
	}
	return Detection{Variant: VariantStandard}
}

// linkerComment finds the last "Linker: " marker in .comment or string-table
// sections, scanning the table back to front like the toolchain appends.
func linkerComment(img *elffile.Image) string {
	sections := img.Sections()
	for i := len(sections) - 1; i >= 0; i-- {
		sec := sections[i]
		if sec.Empty() {
			continue
		}
		if !strings.Contains(sec.Name, ".comment") && !strings.Contains(sec.Name, ".strtab") {
			continue
		}
		data := string(sec.Bytes())
		pos := strings.LastIndex(data, linkerMarker)
		if pos < 0 {
			continue
		}
		rest := data[pos+len(linkerMarker):]
		if end := strings.IndexByte(rest, 0); end >= 0 {
			rest = rest[:end]
		}
		if name := strings.TrimSpace(rest); name != "" {
			return name
		}
	}
	return ""
}
