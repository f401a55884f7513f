package extract

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeymeere/auger/pkg/elffile"
	"github.com/joeymeere/auger/pkg/elffile/elftest"
)

// testImage wraps a payload as the second loadable segment, where the
// default configuration looks for it.
func testImage(payload []byte) []byte {
	return elftest.NewBuilder().
		AddSegment([]byte("bytecode")).
		AddSegment(payload).
		Bytes()
}

func TestExtract_RecoversDelimitedNames(t *testing.T) {
	bin := testImage(cat([]byte("initialize"), ff(8), []byte("deposit"), ff(8)))

	res, err := Extract(bin, DefaultConfig())

	require.NoError(t, err)
	assert.Equal(t, []string{"initialize", "deposit"}, res.Instructions)
	assert.Equal(t, 2, res.Stats.InstructionCount)
	assert.Equal(t, "initializedeposit", res.Text)
	assert.Equal(t, "standard", res.Variant)
}

func TestExtract_LongerThresholdKeepsOneBlock(t *testing.T) {
	bin := testImage(cat([]byte("initialize"), ff(8), []byte("deposit")))

	cfg := DefaultConfig()
	cfg.FFSequenceLength = 16
	res, err := Extract(bin, cfg)

	require.NoError(t, err)
	// The 8-byte run no longer splits, so the single block carries the
	// delimiter bytes as (non-printable) content.
	assert.Contains(t, res.Text, "initialize")
	assert.Contains(t, res.Text, "deposit")
	assert.Len(t, res.Text, 25)
}

func TestExtract_Deterministic(t *testing.T) {
	bin := testImage(cat([]byte("initialize"), ff(8), []byte("deposit")))

	first, err := Extract(bin, DefaultConfig())
	require.NoError(t, err)
	second, err := Extract(bin, DefaultConfig())
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical input must serialize identically")
}

func TestExtract_RawModeRoundTrips(t *testing.T) {
	payload := cat([]byte("abc\x01def"), ff(8), []byte{0x02, 'x', 'y', 'z'})
	bin := testImage(payload)

	cfg := DefaultConfig()
	cfg.ReplaceNonPrintable = false
	res, err := Extract(bin, cfg)

	require.NoError(t, err)
	assert.Equal(t, "abc\x01def\x02xyz", res.Text,
		"raw mode must reproduce block bytes without substitution")
	// Classification still sees printable text.
	assert.Contains(t, res.Instructions, "def")
}

func TestExtract_Stats(t *testing.T) {
	bin := testImage(cat([]byte("initialize"), ff(8)))

	res, err := Extract(bin, DefaultConfig())
	require.NoError(t, err)

	img, err := elffile.NewImage(bin)
	require.NoError(t, err)
	seg, ok := img.Segment(1)
	require.True(t, ok)

	assert.Equal(t, int(seg.Offset), res.Stats.StartOffset)
	assert.Equal(t, int(seg.Offset+seg.Length), res.Stats.EndPosition)
	assert.Equal(t, len(bin), res.Stats.BytesProcessed)
	assert.Equal(t, 1, res.Stats.InstructionCount)
}

func TestExtract_InvalidConfig(t *testing.T) {
	bin := testImage([]byte("initialize"))

	cfg := DefaultConfig()
	cfg.FFSequenceLength = 0
	_, err := Extract(bin, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.ProgramHeaderIndex = 5
	_, err = Extract(bin, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExtract_MalformedBinary(t *testing.T) {
	_, err := Extract([]byte("definitely not an ELF image"), DefaultConfig())
	assert.ErrorIs(t, err, elffile.ErrMalformedBinary)
}

func TestExtract_EmptySegmentIsNotAnError(t *testing.T) {
	bin := elftest.NewBuilder().
		AddSegment([]byte("bytecode")).
		AddSegment(nil).
		Bytes()

	res, err := Extract(bin, DefaultConfig())

	require.NoError(t, err)
	assert.Empty(t, res.Instructions)
	assert.Empty(t, res.Text)
	assert.Equal(t, "unknown", res.ProgramType)
}

func TestExtract_Syscalls(t *testing.T) {
	bin := elftest.NewBuilder().
		AddSegment([]byte("bytecode")).
		AddSegment(cat([]byte("initialize"), ff(8))).
		AddSection(".dynstr", []byte("\x00sol_log_\x00sol_memcpy_\x00sol_log_\x00")).
		Bytes()

	res, err := Extract(bin, DefaultConfig())

	require.NoError(t, err)
	assert.Equal(t, []string{"sol_log_", "sol_memcpy_"}, res.Syscalls)
}

func TestExtract_AutoHeaderIndexFollowsVariant(t *testing.T) {
	bin := testImage(cat([]byte("initialize"), ff(8)))

	cfg := DefaultConfig()
	cfg.ProgramHeaderIndex = AutoHeaderIndex
	res, err := Extract(bin, cfg)

	require.NoError(t, err)
	// The standard variant reads segment 1, same as the fixed default.
	assert.Equal(t, []string{"initialize"}, res.Instructions)
}
