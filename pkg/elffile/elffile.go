// Package elffile loads ELF images into immutable, zero-copy section views.
package elffile

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedBinary is returned when the input is not a loadable ELF image:
// bad magic, unknown class, or a header/section table pointing outside the file.
var ErrMalformedBinary = errors.New("malformed binary")

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Section is a named offset+length window into the underlying image.
// It never copies the image bytes.
type Section struct {
	Name   string
	Offset uint64
	Length uint64

	img *Image
}

// Bytes returns the section contents as a sub-slice of the image.
// Callers must not mutate the returned slice.
func (s Section) Bytes() []byte {
	return s.img.data[s.Offset : s.Offset+s.Length]
}

func (s Section) Empty() bool { return s.Length == 0 }

// Image is the raw file content plus the parsed ELF metadata. It is immutable
// once constructed and lives for the duration of a single extraction run.
type Image struct {
	data     []byte
	entry    uint64
	sections []Section
	segments []Section
}

// NewImage parses raw file bytes as an ELF executable. Sections with no file
// presence (SHT_NOBITS) keep their table slot with zero length so that
// configured indices remain stable.
func NewImage(data []byte) (*Image, error) {
	if len(data) < len(elfMagic) || !bytes.Equal(data[:len(elfMagic)], elfMagic) {
		return nil, fmt.Errorf("%w: bad ELF magic", ErrMalformedBinary)
	}
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBinary, err)
	}
	defer f.Close()

	img := &Image{data: data, entry: f.Entry}

	for _, sec := range f.Sections {
		length := sec.FileSize
		if sec.Type == elf.SHT_NOBITS {
			length = 0
		}
		if sec.Offset+length > uint64(len(data)) || sec.Offset+length < sec.Offset {
			return nil, fmt.Errorf("%w: section %q exceeds image bounds", ErrMalformedBinary, sec.Name)
		}
		img.sections = append(img.sections, Section{
			Name:   sec.Name,
			Offset: sec.Offset,
			Length: length,
			img:    img,
		})
	}

	for _, prog := range f.Progs {
		if prog.Off+prog.Filesz > uint64(len(data)) || prog.Off+prog.Filesz < prog.Off {
			return nil, fmt.Errorf("%w: segment exceeds image bounds", ErrMalformedBinary)
		}
		img.segments = append(img.segments, Section{
			Offset: prog.Off,
			Length: prog.Filesz,
			img:    img,
		})
	}

	return img, nil
}

// Size returns the raw image length in bytes.
func (i *Image) Size() int { return len(i.data) }

// Entry returns the ELF entry point.
func (i *Image) Entry() uint64 { return i.entry }

// Sections returns the ordered section table.
func (i *Image) Sections() []Section { return i.sections }

// Segments returns views built from the ELF program headers, in table order.
func (i *Image) Segments() []Section { return i.segments }

// Segment resolves a program header index into its file-backed view.
func (i *Image) Segment(idx int) (Section, bool) {
	if idx < 0 || idx >= len(i.segments) {
		return Section{}, false
	}
	return i.segments[idx], true
}

// SectionByName returns the first section whose name contains the given
// substring. ELF name matching here is deliberately loose: sBPF toolchains
// emit variations like ".comment" vs ".rodata.comment".
func (i *Image) SectionByName(substr string) (Section, bool) {
	for _, s := range i.sections {
		if s.Name != "" && strings.Contains(s.Name, substr) {
			return s, true
		}
	}
	return Section{}, false
}

// SectionsByName returns all sections whose names contain the substring.
func (i *Image) SectionsByName(substr string) []Section {
	var out []Section
	for _, s := range i.sections {
		if s.Name != "" && strings.Contains(s.Name, substr) {
			out = append(out, s)
		}
	}
	return out
}
