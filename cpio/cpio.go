// Package cpio implements an in-memory editor for the "new ASCII" CPIO
// archive format (magic "070701") used for Android ramdisks, generalized
// from the teacher's cpio/cpio.go (which mixed this format logic with a
// Magisk-specific CLI). This package keeps only the archive data model
// and the load/contents/set_contents/remove/enumerate/serialize
// operations; ramdisk content edits (fstab verity patching, etc.) live
// in the transform package as collaborators over this archive.
package cpio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrParse, ErrEntryMissing and ErrAlloc are the three failure kinds
// named in §4.1 ("CpioParseError", "CpioEntryMissing", "CpioAllocError").
var (
	ErrParse        = errors.New("cpio: parse error")
	ErrEntryMissing = errors.New("cpio: entry missing")
	ErrAlloc        = errors.New("cpio: allocation error")
)

const trailerName = "TRAILER!!!"

// Entry is one archive member: the newc header fields the spec names
// (mode, uid, gid, mtime, nlink, dev major/minor, rdev major/minor) plus
// its content. Name is carried alongside rather than as a map key so
// Enumerate can hand out self-contained values.
type Entry struct {
	Name      string
	Mode      uint32
	Uid       uint32
	Gid       uint32
	Mtime     uint32
	Nlink     uint32
	DevMajor  uint32
	DevMinor  uint32
	RDevMajor uint32
	RDevMinor uint32
	Content   []byte
}

func (e Entry) clone() Entry {
	e.Content = bytes.Clone(e.Content)
	return e
}

// Archive is the loaded, editable in-memory CPIO archive. Entries are
// held in a map keyed by normalized name plus an explicit ordering slice
// (mirroring the teacher's Entries/Keys pair), since archive member
// order is observable in the serialized output.
type Archive struct {
	entries map[string]Entry
	order   []string
}

// New returns an empty archive.
func New() *Archive {
	return &Archive{entries: make(map[string]Entry)}
}

type newcHeader struct {
	Magic     [6]byte
	Ino       [8]byte
	Mode      [8]byte
	Uid       [8]byte
	Gid       [8]byte
	Nlink     [8]byte
	Mtime     [8]byte
	Filesize  [8]byte
	Devmajor  [8]byte
	Devminor  [8]byte
	Rdevmajor [8]byte
	Rdevminor [8]byte
	Namesize  [8]byte
	Check     [8]byte
}

const newcHeaderSize = 110 // 6 + 13*8

func hexField(x [8]byte) (uint32, error) {
	v, err := strconv.ParseUint(string(x[:]), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad hex field %q: %v", ErrParse, string(x[:]), err)
	}
	return uint32(v), nil
}

func align4(x uint64) uint64 {
	return (x + 3) &^ 3
}

// normalizeName strips a leading "/" the way the teacher's norm_path
// does, so "/init" and "init" address the same archive member.
func normalizeName(name string) string {
	return strings.TrimLeft(name, "/")
}

// Load parses data sequentially per §4.1: fails on short read, bad
// magic, non-hex fields, a name that never terminates, or a missing
// trailer.
func Load(data []byte) (*Archive, error) {
	a := New()
	pos := uint64(0)
	sawTrailer := false

	for pos < uint64(len(data)) {
		if pos+newcHeaderSize > uint64(len(data)) {
			return nil, fmt.Errorf("%w: truncated header at offset %d", ErrParse, pos)
		}
		var hdr newcHeader
		r := bytes.NewReader(data[pos : pos+newcHeaderSize])
		if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if !bytes.Equal(hdr.Magic[:], []byte("070701")) {
			return nil, fmt.Errorf("%w: bad magic %q", ErrParse, string(hdr.Magic[:]))
		}
		pos += newcHeaderSize

		nameSize, err := hexField(hdr.Namesize)
		if err != nil {
			return nil, err
		}
		if pos+uint64(nameSize) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: name not NUL-terminated within buffer", ErrParse)
		}
		raw := data[pos : pos+uint64(nameSize)]
		nul := bytes.IndexByte(raw, 0)
		if nul < 0 {
			return nil, fmt.Errorf("%w: name not NUL-terminated", ErrParse)
		}
		name := string(raw[:nul])
		pos += uint64(nameSize)
		pos = align4(pos)

		if name == trailerName {
			sawTrailer = true
			break
		}
		if name == "." || name == ".." {
			continue
		}

		mode, err := hexField(hdr.Mode)
		if err != nil {
			return nil, err
		}
		uid, err := hexField(hdr.Uid)
		if err != nil {
			return nil, err
		}
		gid, err := hexField(hdr.Gid)
		if err != nil {
			return nil, err
		}
		nlink, err := hexField(hdr.Nlink)
		if err != nil {
			return nil, err
		}
		mtime, err := hexField(hdr.Mtime)
		if err != nil {
			return nil, err
		}
		filesize, err := hexField(hdr.Filesize)
		if err != nil {
			return nil, err
		}
		devmajor, err := hexField(hdr.Devmajor)
		if err != nil {
			return nil, err
		}
		devminor, err := hexField(hdr.Devminor)
		if err != nil {
			return nil, err
		}
		rdevmajor, err := hexField(hdr.Rdevmajor)
		if err != nil {
			return nil, err
		}
		rdevminor, err := hexField(hdr.Rdevminor)
		if err != nil {
			return nil, err
		}

		if pos+uint64(filesize) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: content exceeds buffer for %q", ErrParse, name)
		}
		content := bytes.Clone(data[pos : pos+uint64(filesize)])
		pos += uint64(filesize)
		pos = align4(pos)

		a.addEntry(Entry{
			Name:      name,
			Mode:      mode,
			Uid:       uid,
			Gid:       gid,
			Mtime:     mtime,
			Nlink:     nlink,
			DevMajor:  devmajor,
			DevMinor:  devminor,
			RDevMajor: rdevmajor,
			RDevMinor: rdevminor,
			Content:   content,
		})
	}

	if !sawTrailer {
		return nil, fmt.Errorf("%w: missing TRAILER!!! entry", ErrParse)
	}
	return a, nil
}

func (a *Archive) addEntry(e Entry) {
	name := normalizeName(e.Name)
	e.Name = name
	if _, exists := a.entries[name]; !exists {
		a.order = append(a.order, name)
	}
	a.entries[name] = e
}

// Contents returns a borrow of name's content, or ok=false if absent.
func (a *Archive) Contents(name string) (content []byte, ok bool) {
	e, exists := a.entries[normalizeName(name)]
	if !exists {
		return nil, false
	}
	return e.Content, true
}

// Entry returns a copy of the full entry (metadata + content) for name.
func (a *Archive) Entry(name string) (Entry, bool) {
	e, exists := a.entries[normalizeName(name)]
	if !exists {
		return Entry{}, false
	}
	return e.clone(), true
}

// SetContents replaces name's content if present, keeping its existing
// metadata; otherwise appends a new entry with the default metadata
// named in §4.1: mode=0100644, uid/gid=0, mtime=0, nlink=1.
func (a *Archive) SetContents(name string, data []byte) {
	norm := normalizeName(name)
	if e, exists := a.entries[norm]; exists {
		e.Content = data
		a.entries[norm] = e
		return
	}
	a.addEntry(Entry{
		Name:    norm,
		Mode:    0100644,
		Uid:     0,
		Gid:     0,
		Mtime:   0,
		Nlink:   1,
		Content: data,
	})
}

// Remove deletes name's entry, reporting whether it existed.
func (a *Archive) Remove(name string) bool {
	norm := normalizeName(name)
	if _, exists := a.entries[norm]; !exists {
		return false
	}
	delete(a.entries, norm)
	for i, k := range a.order {
		if k == norm {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return true
}

// Enumerate returns every entry in current archive order.
func (a *Archive) Enumerate() []Entry {
	out := make([]Entry, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.entries[name].clone())
	}
	return out
}

// Len reports how many entries (excluding the trailer) the archive holds.
func (a *Archive) Len() int {
	return len(a.order)
}

// SortKeys reorders the archive's entries lexicographically, matching
// the teacher's sort-after-insert behavior for commands that build up a
// new tree (add/mkdir/ln); callers that need a specific serialized order
// should call this before Serialize.
func (a *Archive) SortKeys() {
	sort.Strings(a.order)
}

// Serialize emits the archive's entries in current order followed by the
// trailer, per §4.1: inode numbers are reassigned sequentially from
// 300000 to avoid clashes, and the checksum field is always "00000000".
func (a *Archive) Serialize() []byte {
	var out bytes.Buffer
	inode := uint32(300000)
	for _, name := range a.order {
		e := a.entries[name]
		writeNewcEntry(&out, name, e.Mode, e.Uid, e.Gid, e.Nlink, e.Mtime,
			e.DevMajor, e.DevMinor, e.RDevMajor, e.RDevMinor, inode, e.Content)
		inode++
	}
	writeNewcEntry(&out, trailerName, 0, 0, 0, 1, 0, 0, 0, 0, 0, inode, nil)
	return out.Bytes()
}

func writeNewcEntry(out *bytes.Buffer, name string, mode, uid, gid, nlink, mtime, devmajor, devminor, rdevmajor, rdevminor, inode uint32, content []byte) {
	header := fmt.Sprintf(
		"070701%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x",
		inode, mode, uid, gid, nlink, mtime, len(content),
		devmajor, devminor, rdevmajor, rdevminor, len(name)+1, 0,
	)
	out.WriteString(header)
	out.WriteString(name)
	out.WriteByte(0)
	pos := uint64(out.Len())
	padZeros(out, pos)
	out.Write(content)
	padZeros(out, uint64(out.Len()))
}

func padZeros(out *bytes.Buffer, pos uint64) {
	pad := align4(pos) - pos
	if pad > 0 {
		out.Write(make([]byte, pad))
	}
}
