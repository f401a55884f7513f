// Package elftest builds minimal, valid ELF64 images for tests.
package elftest

import "encoding/binary"

const (
	ehSize = 64
	phSize = 56
	shSize = 64

	emBPF = 247
)

type section struct {
	name string
	data []byte
}

// Builder assembles a little-endian ELF64 image with an arbitrary number of
// loadable segments and named sections. Segment payloads become PT_LOAD
// program headers in insertion order, so tests can address them with the
// same indices the extraction config uses.
type Builder struct {
	segments [][]byte
	sections []section
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) AddSegment(data []byte) *Builder {
	b.segments = append(b.segments, data)
	return b
}

func (b *Builder) AddSection(name string, data []byte) *Builder {
	b.sections = append(b.sections, section{name: name, data: data})
	return b
}

// Bytes lays the image out as: ELF header, program headers, segment payloads,
// section payloads, .shstrtab, section headers.
func (b *Builder) Bytes() []byte {
	le := binary.LittleEndian

	// String table for section names: leading NUL, then each name, then ".shstrtab".
	shstrtab := []byte{0}
	nameOff := make([]uint32, len(b.sections))
	for i, s := range b.sections {
		nameOff[i] = uint32(len(shstrtab))
		shstrtab = append(shstrtab, s.name...)
		shstrtab = append(shstrtab, 0)
	}
	shstrtabNameOff := uint32(len(shstrtab))
	shstrtab = append(shstrtab, ".shstrtab"...)
	shstrtab = append(shstrtab, 0)

	phOff := uint64(ehSize)
	dataOff := phOff + uint64(len(b.segments)*phSize)

	segOff := make([]uint64, len(b.segments))
	off := dataOff
	for i, seg := range b.segments {
		segOff[i] = off
		off += uint64(len(seg))
	}
	secOff := make([]uint64, len(b.sections))
	for i, s := range b.sections {
		secOff[i] = off
		off += uint64(len(s.data))
	}
	shstrtabOff := off
	off += uint64(len(shstrtab))
	shOff := off

	shNum := 1 + len(b.sections) + 1 // NULL + named + .shstrtab

	img := make([]byte, 0, int(shOff)+shNum*shSize)

	// ELF header.
	ehdr := make([]byte, ehSize)
	copy(ehdr, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	le.PutUint16(ehdr[16:], 3)     // ET_DYN
	le.PutUint16(ehdr[18:], emBPF) // e_machine
	le.PutUint32(ehdr[20:], 1)     // e_version
	if len(segOff) > 0 {
		le.PutUint64(ehdr[24:], segOff[0]) // e_entry
	}
	le.PutUint64(ehdr[32:], phOff)
	le.PutUint64(ehdr[40:], shOff)
	le.PutUint16(ehdr[52:], ehSize)
	le.PutUint16(ehdr[54:], phSize)
	le.PutUint16(ehdr[56:], uint16(len(b.segments)))
	le.PutUint16(ehdr[58:], shSize)
	le.PutUint16(ehdr[60:], uint16(shNum))
	le.PutUint16(ehdr[62:], uint16(shNum-1)) // e_shstrndx
	img = append(img, ehdr...)

	// Program headers.
	for i, seg := range b.segments {
		phdr := make([]byte, phSize)
		le.PutUint32(phdr[0:], 1) // PT_LOAD
		le.PutUint32(phdr[4:], 5) // R+X
		le.PutUint64(phdr[8:], segOff[i])
		le.PutUint64(phdr[16:], segOff[i]) // p_vaddr
		le.PutUint64(phdr[24:], segOff[i]) // p_paddr
		le.PutUint64(phdr[32:], uint64(len(seg)))
		le.PutUint64(phdr[40:], uint64(len(seg)))
		le.PutUint64(phdr[48:], 8)
		img = append(img, phdr...)
	}

	for _, seg := range b.segments {
		img = append(img, seg...)
	}
	for _, s := range b.sections {
		img = append(img, s.data...)
	}
	img = append(img, shstrtab...)

	// NULL section header.
	img = append(img, make([]byte, shSize)...)

	for i, s := range b.sections {
		shdr := make([]byte, shSize)
		le.PutUint32(shdr[0:], nameOff[i])
		le.PutUint32(shdr[4:], 1) // SHT_PROGBITS
		le.PutUint64(shdr[24:], secOff[i])
		le.PutUint64(shdr[32:], uint64(len(s.data)))
		le.PutUint64(shdr[48:], 1) // sh_addralign
		img = append(img, shdr...)
	}

	shdr := make([]byte, shSize)
	le.PutUint32(shdr[0:], shstrtabNameOff)
	le.PutUint32(shdr[4:], 3) // SHT_STRTAB
	le.PutUint64(shdr[24:], shstrtabOff)
	le.PutUint64(shdr[32:], uint64(len(shstrtab)))
	le.PutUint64(shdr[48:], 1)
	img = append(img, shdr...)

	return img
}
