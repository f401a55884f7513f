package elffile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeymeere/auger/pkg/elffile/elftest"
)

func TestNewImage_ParsesSegmentsAndSections(t *testing.T) {
	bin := elftest.NewBuilder().
		AddSegment([]byte("first segment")).
		AddSegment([]byte("second")).
		AddSection(".rodata", []byte("strings live here")).
		Bytes()

	img, err := NewImage(bin)

	require.NoError(t, err)
	assert.Equal(t, len(bin), img.Size())
	require.Len(t, img.Segments(), 2)

	seg, ok := img.Segment(0)
	require.True(t, ok)
	assert.Equal(t, "first segment", string(seg.Bytes()))

	seg, ok = img.Segment(1)
	require.True(t, ok)
	assert.Equal(t, "second", string(seg.Bytes()))

	_, ok = img.Segment(2)
	assert.False(t, ok)
	_, ok = img.Segment(-1)
	assert.False(t, ok)

	sec, ok := img.SectionByName(".rodata")
	require.True(t, ok)
	assert.Equal(t, "strings live here", string(sec.Bytes()))
}

func TestNewImage_RejectsBadMagic(t *testing.T) {
	_, err := NewImage([]byte("MZ this is not an ELF"))
	assert.ErrorIs(t, err, ErrMalformedBinary)

	_, err = NewImage(nil)
	assert.ErrorIs(t, err, ErrMalformedBinary)

	_, err = NewImage([]byte{0x7f})
	assert.ErrorIs(t, err, ErrMalformedBinary)
}

func TestNewImage_RejectsTruncatedImage(t *testing.T) {
	bin := elftest.NewBuilder().
		AddSegment([]byte("payload")).
		AddSection(".rodata", []byte("data")).
		Bytes()

	// Chopping off the section headers leaves the tables pointing past EOF.
	_, err := NewImage(bin[:len(bin)-70])
	assert.ErrorIs(t, err, ErrMalformedBinary)
}

func TestNewImage_EmptySegmentKeepsTableSlot(t *testing.T) {
	bin := elftest.NewBuilder().
		AddSegment(nil).
		AddSegment([]byte("payload")).
		Bytes()

	img, err := NewImage(bin)

	require.NoError(t, err)
	seg, ok := img.Segment(0)
	require.True(t, ok)
	assert.True(t, seg.Empty())

	seg, ok = img.Segment(1)
	require.True(t, ok)
	assert.Equal(t, "payload", string(seg.Bytes()))
}

func TestSectionNameMatchingIsLoose(t *testing.T) {
	bin := elftest.NewBuilder().
		AddSegment([]byte("payload")).
		AddSection(".rodata.comment", []byte("Linker: LLD")).
		AddSection(".dynstr", []byte("\x00abort\x00")).
		Bytes()

	img, err := NewImage(bin)
	require.NoError(t, err)

	sec, ok := img.SectionByName(".comment")
	require.True(t, ok)
	assert.Equal(t, ".rodata.comment", sec.Name)

	// ".dynstr" and ".shstrtab" both contain "str".
	assert.Len(t, img.SectionsByName("str"), 2)
}
