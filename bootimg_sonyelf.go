package bootpatch

import (
	"bytes"
	"encoding/binary"
)

// Sony ELF wraps a boot image's payloads as named ELF32 segments. Program
// headers carry no name field in the ELF32 spec, so segment identity is
// recovered the standard ELF way: each PT_LOAD segment has a matching
// section header whose sh_name indexes into a trailing .shstrtab, and
// this codec keys off that section name ("kernel", "ramdisk", "ipl",
// "rpm", "appsbl") rather than position, per §4.4.
const (
	elfMagic    = "\x7fELF"
	elfClass32  = 1
	elfDataLSB  = 1
	elfVersion1 = 1

	elfTypeExec = 2
	elfMachARM  = 40

	elfPTLoad     = 1
	elfSHTNull    = 0
	elfSHTProgbit = 1
	elfSHTStrtab  = 3

	elf32HeaderSize        = 52
	elf32ProgramHeaderSize = 32
	elf32SectionHeaderSize = 40

	sonyElfSegmentAlign = 4
)

var sonySinMagic = []byte("SIN!")

var sonySegmentOrder = []string{"kernel", "ramdisk", "ipl", "rpm", "appsbl"}

type elf32Header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elf32ProgramHeader struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

type elf32SectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	Addralign uint32
	Entsize   uint32
}

func parseELF32Header(buf []byte) (*elf32Header, error) {
	if len(buf) < elf32HeaderSize {
		return nil, NewError(CodeBootImageParseError, "truncated elf header", nil)
	}
	var h elf32Header
	if err := binary.Read(bytes.NewReader(buf[:elf32HeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, NewError(CodeBootImageParseError, "elf header decode", err)
	}
	return &h, nil
}

func elfSectionTable(buf []byte, hdr *elf32Header) ([]elf32SectionHeader, []byte, error) {
	if hdr.Shnum == 0 {
		return nil, nil, NewError(CodeBootImageParseError, "sony elf: no section headers", nil)
	}
	end := uint64(hdr.Shoff) + uint64(hdr.Shnum)*uint64(hdr.Shentsize)
	if end > uint64(len(buf)) {
		return nil, nil, NewError(CodeBootImageParseError, "sony elf: section header table exceeds buffer", nil)
	}
	sections := make([]elf32SectionHeader, hdr.Shnum)
	for i := range sections {
		off := uint64(hdr.Shoff) + uint64(i)*uint64(hdr.Shentsize)
		r := bytes.NewReader(buf[off : off+elf32SectionHeaderSize])
		if err := binary.Read(r, binary.LittleEndian, &sections[i]); err != nil {
			return nil, nil, NewError(CodeBootImageParseError, "sony elf: section header decode", err)
		}
	}
	if int(hdr.Shstrndx) >= len(sections) {
		return nil, nil, NewError(CodeBootImageParseError, "sony elf: shstrndx out of range", nil)
	}
	strtabSec := sections[hdr.Shstrndx]
	if uint64(strtabSec.Offset)+uint64(strtabSec.Size) > uint64(len(buf)) {
		return nil, nil, NewError(CodeBootImageParseError, "sony elf: shstrtab exceeds buffer", nil)
	}
	strtab := buf[strtabSec.Offset : strtabSec.Offset+strtabSec.Size]
	return sections, strtab, nil
}

func isSonySegmentName(name string) bool {
	for _, n := range sonySegmentOrder {
		if n == name {
			return true
		}
	}
	return false
}

// sonyELFSegments locates every named kernel/ramdisk/ipl/rpm/appsbl
// section and returns its raw bytes keyed by name.
func sonyELFSegments(buf []byte) (map[string][]byte, *elf32Header, error) {
	hdr, err := parseELF32Header(buf)
	if err != nil {
		return nil, nil, err
	}
	sections, strtab, err := elfSectionTable(buf, hdr)
	if err != nil {
		return nil, nil, err
	}
	segs := make(map[string][]byte)
	for _, sec := range sections {
		name := cstring(strtab[min64(sec.Name, uint32(len(strtab))):])
		if !isSonySegmentName(name) {
			continue
		}
		if uint64(sec.Offset)+uint64(sec.Size) > uint64(len(buf)) {
			return nil, nil, NewError(CodeBootImageParseError, "sony elf: segment section exceeds buffer", nil)
		}
		segs[name] = buf[sec.Offset : sec.Offset+sec.Size]
	}
	return segs, hdr, nil
}

func min64(a uint32, b uint32) uint32 {
	if a > b {
		return b
	}
	return a
}

func isSonyELFImage(buf []byte) bool {
	if len(buf) < elf32HeaderSize || !bytes.Equal(buf[:4], []byte(elfMagic)) || buf[4] != elfClass32 {
		return false
	}
	segs, _, err := sonyELFSegments(buf)
	if err != nil {
		return false
	}
	_, hasKernel := segs["kernel"]
	_, hasRamdisk := segs["ramdisk"]
	return hasKernel && hasRamdisk
}

// sonyELFTrailer returns the optional "SIN!" signature trailer appended
// after the ELF body, verbatim, or nil if absent.
func sonyELFTrailer(buf []byte) []byte {
	idx := bytes.LastIndex(buf, sonySinMagic)
	if idx < 0 {
		return nil
	}
	return buf[idx:]
}

// decodeSonyELF decodes an ELF32-wrapped boot image, per §4.4: extracts
// each named segment into its IR payload field and records the entry
// point as EntrypointAddr.
func decodeSonyELF(buf []byte) (*BootImageIR, error) {
	segs, hdr, err := sonyELFSegments(buf)
	if err != nil {
		return nil, err
	}
	kernel, ok := segs["kernel"]
	if !ok {
		return nil, NewError(CodeBootImageParseError, "sony elf: missing kernel segment", nil)
	}
	ramdiskRaw, ok := segs["ramdisk"]
	if !ok {
		return nil, NewError(CodeBootImageParseError, "sony elf: missing ramdisk segment", nil)
	}
	ramdisk, comp, err := decodeRamdiskPayload(ramdiskRaw)
	if err != nil {
		return nil, err
	}

	ir := &BootImageIR{
		Kernel:             NewBinBufCopy(kernel),
		Ramdisk:            NewBinBufCopy(ramdisk),
		RamdiskCompression: comp,
		EntrypointAddr:     hdr.Entry,
		HdrKernelSize:      uint32(len(kernel)),
		HdrRamdiskSize:     uint32(len(ramdiskRaw)),
		SourceType:         FormatSonyELF,
		TargetType:         FormatSonyELF,
	}
	if ipl, ok := segs["ipl"]; ok {
		ir.Ipl = NewBinBufCopy(ipl)
	}
	if rpm, ok := segs["rpm"]; ok {
		ir.Rpm = NewBinBufCopy(rpm)
	}
	if appsbl, ok := segs["appsbl"]; ok {
		ir.Appsbl = NewBinBufCopy(appsbl)
	}
	if trailer := sonyELFTrailer(buf); len(trailer) > 0 {
		ir.SonySinHdr = NewBinBufCopy(trailer)
	}
	return ir, nil
}

type sonyElfSegment struct {
	name string
	data []byte
	addr uint32
}

// encodeSonyELF rebuilds an ELF32 wrapper around the IR's populated
// segments: fresh program headers (one PT_LOAD per segment, page-word
// aligned), a section header per segment for name recovery on the next
// decode, entry point = EntrypointAddr, and no padding between segments
// beyond alignment, per §4.4.
func encodeSonyELF(ir *BootImageIR) ([]byte, error) {
	ramdisk, err := encodeRamdiskPayload(ir.Ramdisk.Bytes(), ir.RamdiskCompression)
	if err != nil {
		return nil, err
	}

	segs := []sonyElfSegment{
		{"kernel", ir.Kernel.Bytes(), ir.KernelAddr},
		{"ramdisk", ramdisk, ir.RamdiskAddr},
	}
	if ir.Ipl.Size() > 0 {
		segs = append(segs, sonyElfSegment{"ipl", ir.Ipl.Bytes(), ir.IplAddr})
	}
	if ir.Rpm.Size() > 0 {
		segs = append(segs, sonyElfSegment{"rpm", ir.Rpm.Bytes(), ir.RpmAddr})
	}
	if ir.Appsbl.Size() > 0 {
		segs = append(segs, sonyElfSegment{"appsbl", ir.Appsbl.Bytes(), ir.AppsblAddr})
	}

	phoff := uint32(elf32HeaderSize)
	dataOff := uint64(phoff) + uint64(len(segs))*elf32ProgramHeaderSize

	offsets := make([]uint32, len(segs))
	var body bytes.Buffer
	pos := dataOff
	for i, s := range segs {
		aligned := alignUp(pos, sonyElfSegmentAlign)
		if aligned > pos {
			body.Write(make([]byte, aligned-pos))
			pos = aligned
		}
		offsets[i] = uint32(pos)
		body.Write(s.data)
		pos += uint64(len(s.data))
	}

	nameOffsets := make([]uint32, len(segs))
	shstrtab := []byte{0}
	for i, s := range segs {
		nameOffsets[i] = uint32(len(shstrtab))
		shstrtab = append(shstrtab, append([]byte(s.name), 0)...)
	}
	shstrtabNameOffset := uint32(len(shstrtab))
	shstrtab = append(shstrtab, append([]byte(".shstrtab"), 0)...)

	shstrtabOffset := uint32(pos)
	body.Write(shstrtab)
	pos += uint64(len(shstrtab))

	shoff := alignUp(pos, 4)
	if shoff > pos {
		body.Write(make([]byte, shoff-pos))
		pos = shoff
	}

	sections := make([]elf32SectionHeader, 0, len(segs)+2)
	sections = append(sections, elf32SectionHeader{Type: elfSHTNull})
	for i, s := range segs {
		sections = append(sections, elf32SectionHeader{
			Name:      nameOffsets[i],
			Type:      elfSHTProgbit,
			Addr:      s.addr,
			Offset:    offsets[i],
			Size:      uint32(len(s.data)),
			Addralign: sonyElfSegmentAlign,
		})
	}
	sections = append(sections, elf32SectionHeader{
		Name:      shstrtabNameOffset,
		Type:      elfSHTStrtab,
		Offset:    shstrtabOffset,
		Size:      uint32(len(shstrtab)),
		Addralign: 1,
	})

	progHeaders := make([]elf32ProgramHeader, len(segs))
	for i, s := range segs {
		progHeaders[i] = elf32ProgramHeader{
			Type:   elfPTLoad,
			Offset: offsets[i],
			Vaddr:  s.addr,
			Paddr:  s.addr,
			Filesz: uint32(len(s.data)),
			Memsz:  uint32(len(s.data)),
			Flags:  5,
			Align:  sonyElfSegmentAlign,
		}
	}

	var hdr elf32Header
	copy(hdr.Ident[:], elfMagic)
	hdr.Ident[4] = elfClass32
	hdr.Ident[5] = elfDataLSB
	hdr.Ident[6] = elfVersion1
	hdr.Type = elfTypeExec
	hdr.Machine = elfMachARM
	hdr.Version = elfVersion1
	hdr.Entry = ir.EntrypointAddr
	hdr.Phoff = phoff
	hdr.Shoff = uint32(shoff)
	hdr.Ehsize = elf32HeaderSize
	hdr.Phentsize = elf32ProgramHeaderSize
	hdr.Phnum = uint16(len(segs))
	hdr.Shentsize = elf32SectionHeaderSize
	hdr.Shnum = uint16(len(sections))
	hdr.Shstrndx = uint16(len(sections) - 1)

	out := new(bytes.Buffer)
	binary.Write(out, binary.LittleEndian, &hdr)
	for _, ph := range progHeaders {
		binary.Write(out, binary.LittleEndian, &ph)
	}
	out.Write(body.Bytes())
	for _, sh := range sections {
		binary.Write(out, binary.LittleEndian, &sh)
	}
	if ir.SonySinHdr.Size() > 0 {
		out.Write(ir.SonySinHdr.Bytes())
	}
	return out.Bytes(), nil
}
