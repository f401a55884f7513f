package extract

import (
	"time"

	"github.com/joeymeere/auger/pkg/classify"
)

// Stats aggregates counters for one extraction run. Computed once by the
// pipeline, read-only afterwards.
type Stats struct {
	// StartOffset is where the scanned segment begins in the image.
	StartOffset int `json:"start_offset"`
	// EndPosition is where scanning stopped (segment end).
	EndPosition int `json:"end_position"`
	// BytesProcessed is the size of the whole binary image.
	BytesProcessed int `json:"bytes_processed"`
	// InstructionCount is the size of the deduplicated candidate set.
	InstructionCount int `json:"instruction_count"`
	// FileCount is the number of unique source-file references.
	FileCount int `json:"file_count"`

	// Timings stays out of the serialized form: identical input must
	// produce bit-identical reports, and wall-clock numbers would break
	// that.
	Timings Timings `json:"-"`
}

// Timings holds per-stage wall-clock durations.
type Timings struct {
	Scan      time.Duration
	Normalize time.Duration
	Classify  time.Duration
}

// Result is the sole artifact crossing the engine boundary: the recovered
// text, the ordered candidate sets, and the run statistics. In raw mode Text
// holds arbitrary byte content (stored losslessly in the string).
type Result struct {
	// Text is the concatenation of all block contents in offset order.
	Text string `json:"text"`
	// Instructions preserves first-discovery order.
	Instructions []string `json:"instructions"`
	// ProtectedInstructions are framework bookkeeping names (e.g. Idl*).
	ProtectedInstructions []string `json:"protected_instructions"`
	// Definitions are demangled symbol definitions (LLD-linked binaries).
	Definitions []classify.Definition `json:"definitions"`
	// Files are source path references recovered from the text.
	Files []classify.SourceFile `json:"files"`
	// Syscalls lists .dynstr entries, i.e. the runtime imports.
	Syscalls []string `json:"syscalls"`

	ProgramName  string `json:"program_name,omitempty"`
	ProgramType  string `json:"program_type"`
	CustomLinker string `json:"custom_linker,omitempty"`
	Variant      string `json:"linker_variant"`

	Stats Stats `json:"stats"`
}
