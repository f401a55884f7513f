package extract

// The printable contract: ASCII 0x20..0x7E inclusive. Everything outside it
// is replaced by a single space, preserving block length so offsets stay
// meaningful. This matches round-trip expectations: normalizing an already
// normalized block is a no-op, and raw mode passes bytes through untouched.

const placeholder = ' '

func printable(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}

// normalizeBlocks fills each block's Text. With replace=false the text
// aliases the raw bytes, so concatenating all blocks reproduces the scanned
// region minus the delimiter runs, byte for byte. This stage never fails.
func normalizeBlocks(blocks []Block, replace bool) {
	for i := range blocks {
		if !replace {
			blocks[i].Text = blocks[i].Raw
			continue
		}
		blocks[i].Text = normalize(blocks[i].Raw)
	}
}

func normalize(raw []byte) []byte {
	out := make([]byte, len(raw))
	for i, b := range raw {
		if printable(b) {
			out[i] = b
		} else {
			out[i] = placeholder
		}
	}
	return out
}
