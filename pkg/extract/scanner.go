package extract

// Compiled sBPF binaries pad embedded string records with long 0xFF runs.
// Any run at least ffRunLen bytes long is treated as a record boundary,
// which partitions the blob into candidate text blocks without a string
// table.

const delimiter = 0xFF

// Block is a contiguous byte range of the scanned section judged to contain
// text. Raw is a sub-slice of the section (no copy); Text is filled in by
// the normalizer.
type Block struct {
	// Start and End are offsets within the scanned section, delimiter runs
	// excluded.
	Start int
	End   int
	Raw   []byte
	Text  []byte
}

// scanBlocks performs one linear pass over data, tracking the current
// delimiter run length. Runs shorter than ffRunLen stay inside their block;
// a run at the very start or end of the data simply has no block on the
// missing side. Data consisting entirely of a qualifying run yields zero
// blocks, which is a valid (empty) outcome, not an error.
func scanBlocks(data []byte, ffRunLen int) []Block {
	var blocks []Block
	start := 0
	run := 0

	emit := func(end int) {
		if end > start {
			blocks = append(blocks, Block{Start: start, End: end, Raw: data[start:end]})
		}
	}

	for i, b := range data {
		if b == delimiter {
			run++
			continue
		}
		if run >= ffRunLen {
			emit(i - run)
			start = i
		}
		run = 0
	}

	end := len(data)
	if run >= ffRunLen {
		end -= run
	}
	emit(end)

	return blocks
}
