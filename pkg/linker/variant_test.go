package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeymeere/auger/pkg/elffile"
	"github.com/joeymeere/auger/pkg/elffile/elftest"
)

func parse(t *testing.T, bin []byte) *elffile.Image {
	t.Helper()
	img, err := elffile.NewImage(bin)
	require.NoError(t, err)
	return img
}

func TestDetect_LLDComment(t *testing.T) {
	img := parse(t, elftest.NewBuilder().
		AddSegment([]byte("payload")).
		AddSection(".comment", []byte("Linker: LLD 14.0.0\x00")).
		Bytes())

	det := Detect(img)

	assert.Equal(t, VariantLLD, det.Variant)
	assert.Equal(t, "LLD 14.0.0", det.Linker)
}

func TestDetect_StandardLinkerComment(t *testing.T) {
	img := parse(t, elftest.NewBuilder().
		AddSegment([]byte("payload")).
		AddSection(".comment", []byte("Linker: GNU ld 2.35\x00")).
		Bytes())

	det := Detect(img)

	assert.Equal(t, VariantStandard, det.Variant)
	assert.Equal(t, "GNU ld 2.35", det.Linker)
}

func TestDetect_LastMarkerWins(t *testing.T) {
	img := parse(t, elftest.NewBuilder().
		AddSegment([]byte("payload")).
		AddSection(".comment", []byte("Linker: GNU ld\x00Linker: LLD 16\x00")).
		Bytes())

	det := Detect(img)

	assert.Equal(t, VariantLLD, det.Variant)
	assert.Equal(t, "LLD 16", det.Linker)
}

func TestDetect_MangledNamesImplyLLD(t *testing.T) {
	img := parse(t, elftest.NewBuilder().
		AddSegment([]byte("payload")).
		AddSection(".dynstr", []byte("\x00_ZN7example4main17h0123456789abcdefE\x00")).
		Bytes())

	det := Detect(img)

	assert.Equal(t, VariantLLD, det.Variant)
	assert.Empty(t, det.Linker, "no comment marker to report")
}

func TestDetect_DefaultsToStandard(t *testing.T) {
	img := parse(t, elftest.NewBuilder().
		AddSegment([]byte("payload")).
		Bytes())

	det := Detect(img)

	assert.Equal(t, VariantStandard, det.Variant)
	assert.Empty(t, det.Linker)
}

func TestStrategyFor(t *testing.T) {
	assert.Equal(t, Strategy{SegmentIndex: 1}, StrategyFor(VariantStandard))
	assert.Equal(t, Strategy{SegmentIndex: 0, MangledSymbols: true}, StrategyFor(VariantLLD))
	assert.Equal(t, Strategy{SegmentIndex: 1}, StrategyFor(VariantUnknown))
	assert.Equal(t, Strategy{SegmentIndex: 1}, StrategyFor(Variant(99)))
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "standard", VariantStandard.String())
	assert.Equal(t, "lld", VariantLLD.String())
	assert.Equal(t, "unknown", VariantUnknown.String())
}
