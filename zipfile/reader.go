// Package zipfile implements component C1, the bounded-buffer ZIP
// reader: EOCD discovery within a capped scan window, a fixed-capacity
// central directory, and streamed Stored/DEFLATE extraction into a
// caller-owned writer with online CRC32 verification.
//
// No pack dependency exposes this level of control over the scan
// window, the central-directory entry cap, or the scratch-buffer-driven
// inflate loop, so this package is hand-rolled on top of
// compress/flate, hash/crc32 and encoding/binary — see DESIGN.md.
package zipfile

import (
	"compress/flate"
	"encoding/binary"
	"hash/crc32"
	"io"

	"epubcore/common"
	"epubcore/epuberr"
	"epubcore/limits"
)

const (
	sigEOCD         = 0x06054b50
	sigZip64Locator = 0x07064b50
	sigCentralDir   = 0x02014b50
	sigLocalFile    = 0x04034b50

	eocdFixedLen   = 22
	centralFixedLen = 46
	localFixedLen   = 30
)

// Entry is one central-directory record. Name borrows from the Reader's
// single backing name arena; it is valid for the Reader's lifetime.
type Entry struct {
	Name             string
	LocalHeaderOffset int64
	CompressedSize   uint32
	UncompressedSize uint32
	Method           common.EntryMethod
	CRC32            uint32
}

// Reader is an opened archive: a parsed EOCD, a bounded central
// directory, and the byte source entries are streamed from.
type Reader struct {
	src     ByteSource
	entries []Entry
	arena   string
	lim     limits.ZipLimits
}

// Open locates the EOCD within lim.MaxEOCDScanBytes of the end of src,
// rejects ZIP64 archives, and parses the central directory up to
// lim.MaxCentralDirEntries entries.
func Open(src ByteSource, lim limits.ZipLimits) (*Reader, error) {
	size := src.Size()
	scanLen := int64(lim.MaxEOCDScanBytes)
	if scanLen > size {
		scanLen = size
	}
	if scanLen < eocdFixedLen {
		return nil, epuberr.New(epuberr.ZipFormat, "archive too small for EOCD record")
	}

	buf := make([]byte, scanLen)
	if _, err := readFullAt(src, buf, size-scanLen); err != nil {
		return nil, epuberr.Wrap(epuberr.Io, err)
	}

	eocdPos := findEOCD(buf)
	if eocdPos < 0 {
		return nil, epuberr.New(epuberr.ZipFormat, "end of central directory record not found")
	}

	if eocdPos >= 4 {
		if binary.LittleEndian.Uint32(buf[eocdPos-4:eocdPos]) == sigZip64Locator {
			return nil, epuberr.Unsup("zip64")
		}
	}

	totalEntries := int(binary.LittleEndian.Uint16(buf[eocdPos+10 : eocdPos+12]))
	cdSize := int64(binary.LittleEndian.Uint32(buf[eocdPos+12 : eocdPos+16]))
	cdOffset := int64(binary.LittleEndian.Uint32(buf[eocdPos+16 : eocdPos+20]))

	if cdSize == 0xFFFFFFFF || cdOffset == 0xFFFFFFFF || totalEntries == 0xFFFF {
		return nil, epuberr.Unsup("zip64")
	}
	if totalEntries > lim.MaxCentralDirEntries {
		return nil, epuberr.Limit("zip.max_central_dir_entries")
	}

	cdBuf := make([]byte, cdSize)
	if cdSize > 0 {
		if _, err := readFullAt(src, cdBuf, cdOffset); err != nil {
			return nil, epuberr.Wrap(epuberr.Io, err)
		}
	}

	entries, arena, err := parseCentralDirectory(cdBuf, totalEntries, lim.MaxCentralDirEntries)
	if err != nil {
		return nil, err
	}

	return &Reader{src: src, entries: entries, arena: arena, lim: lim}, nil
}

// findEOCD scans buf backwards for the EOCD signature, returning the
// offset within buf, or -1 if not found.
func findEOCD(buf []byte) int {
	for i := len(buf) - eocdFixedLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:i+4]) == sigEOCD {
			return i
		}
	}
	return -1
}

// parseCentralDirectory walks buf once, accumulating every file name
// into a single backing array so each Entry.Name ends up a window into
// one string arena rather than its own heap allocation.
func parseCentralDirectory(buf []byte, totalEntries, cap int) ([]Entry, string, error) {
	type rawEntry struct {
		entry        Entry
		nameStart    int
		nameEnd      int
	}
	raw := make([]rawEntry, 0, min(totalEntries, cap))

	pos := 0
	for i := 0; i < totalEntries; i++ {
		if len(raw) >= cap {
			return nil, "", epuberr.Limit("zip.max_central_dir_entries")
		}
		if pos+centralFixedLen > len(buf) {
			return nil, "", epuberr.New(epuberr.ZipFormat, "truncated central directory record")
		}
		if binary.LittleEndian.Uint32(buf[pos:pos+4]) != sigCentralDir {
			return nil, "", epuberr.New(epuberr.ZipFormat, "bad central directory signature")
		}
		method := binary.LittleEndian.Uint16(buf[pos+10 : pos+12])
		crc := binary.LittleEndian.Uint32(buf[pos+16 : pos+20])
		compSize := binary.LittleEndian.Uint32(buf[pos+20 : pos+24])
		uncompSize := binary.LittleEndian.Uint32(buf[pos+24 : pos+28])
		nameLen := int(binary.LittleEndian.Uint16(buf[pos+28 : pos+30]))
		extraLen := int(binary.LittleEndian.Uint16(buf[pos+30 : pos+32]))
		commentLen := int(binary.LittleEndian.Uint16(buf[pos+32 : pos+34]))
		localOffset := int64(binary.LittleEndian.Uint32(buf[pos+42 : pos+46]))

		if compSize == 0xFFFFFFFF || uncompSize == 0xFFFFFFFF || localOffset == 0xFFFFFFFF {
			return nil, "", epuberr.Unsup("zip64")
		}

		nameStart := pos + centralFixedLen
		nameEnd := nameStart + nameLen
		if nameEnd > len(buf) {
			return nil, "", epuberr.New(epuberr.ZipFormat, "truncated file name")
		}

		raw = append(raw, rawEntry{
			entry: Entry{
				LocalHeaderOffset: localOffset,
				CompressedSize:    compSize,
				UncompressedSize:  uncompSize,
				Method:            common.EntryMethod(method),
				CRC32:             crc,
			},
			nameStart: nameStart,
			nameEnd:   nameEnd,
		})

		pos = nameEnd + extraLen + commentLen
	}

	var arena []byte
	bounds := make([][2]int, len(raw))
	for i, r := range raw {
		start := len(arena)
		arena = append(arena, buf[r.nameStart:r.nameEnd]...)
		bounds[i] = [2]int{start, len(arena)}
	}

	arenaStr := string(arena)
	entries := make([]Entry, len(raw))
	for i, r := range raw {
		entries[i] = r.entry
		entries[i].Name = arenaStr[bounds[i][0]:bounds[i][1]]
	}
	return entries, arenaStr, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Entries returns the parsed central directory (collecting API). The
// slice is bounded by MaxCentralDirEntries and owned by the Reader; do
// not retain it past the Reader's lifetime if the caller later reopens
// the same Reader value (it never does today, but mutation is not
// supported).
func (r *Reader) Entries() []Entry { return r.entries }

// EachEntry is the streaming API: visit is called once per entry in
// central-directory order. Returning cont=false stops the walk without
// error.
func (r *Reader) EachEntry(visit func(Entry) (cont bool, err error)) error {
	for _, e := range r.entries {
		cont, err := visit(e)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// Find returns the entry named name, if present.
func (r *Reader) Find(name string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// ReadEntryInto streams entry's decompressed content into w, verifying
// CRC32 online and enforcing maxBytes. scratch supplies the chunk buffer
// used for every intermediate copy and the local-header buffer; the
// inflate state, the CRC32 hasher and the entry's section reader are
// allocated on each call. Returns FileTooLarge if decompressed output would exceed
// maxBytes — w may already hold a prefix in that case.
func (r *Reader) ReadEntryInto(name string, w io.Writer, maxBytes int64, scratch *Scratch) error {
	entry, ok := r.Find(name)
	if !ok {
		return epuberr.WrapAt(epuberr.MissingResource, name, 0, nil)
	}
	return r.readEntryInto(entry, w, maxBytes, scratch)
}

func (r *Reader) readEntryInto(entry Entry, w io.Writer, maxBytes int64, scratch *Scratch) error {
	if !entry.Method.Supported() {
		return epuberr.Unsup("compression method " + entry.Method.String())
	}

	header := scratch.header[:]
	if _, err := readFullAt(r.src, header, entry.LocalHeaderOffset); err != nil {
		return epuberr.WrapAt(epuberr.Io, entry.Name, entry.LocalHeaderOffset, err)
	}
	if binary.LittleEndian.Uint32(header[0:4]) != sigLocalFile {
		return epuberr.WrapAt(epuberr.ZipFormat, entry.Name, entry.LocalHeaderOffset, nil)
	}
	nameLen := int(binary.LittleEndian.Uint16(header[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(header[28:30]))

	dataOffset := entry.LocalHeaderOffset + localFixedLen + int64(nameLen) + int64(extraLen)
	src := &offsetReader{bs: r.src, pos: dataOffset, end: dataOffset + int64(entry.CompressedSize)}

	var out io.Reader
	switch entry.Method {
	case common.MethodStored:
		out = src
	case common.MethodDeflate:
		out = flate.NewReader(src)
	}

	crc := crc32.NewIEEE()
	var total int64
	for {
		n, rerr := out.Read(scratch.Read)
		if n > 0 {
			chunk := scratch.Read[:n]
			if total+int64(n) > maxBytes {
				fit := int(maxBytes - total)
				if fit > 0 {
					if _, werr := w.Write(chunk[:fit]); werr != nil {
						return epuberr.WrapAt(epuberr.Io, entry.Name, total, werr)
					}
				}
				total += int64(n)
				return epuberr.WrapAt(epuberr.FileTooLarge, entry.Name, total, nil)
			}
			total += int64(n)
			crc.Write(chunk)
			if _, werr := w.Write(chunk); werr != nil {
				return epuberr.WrapAt(epuberr.Io, entry.Name, total, werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return epuberr.WrapAt(epuberr.Io, entry.Name, total, rerr)
		}
	}

	if crc.Sum32() != entry.CRC32 {
		return epuberr.WrapAt(epuberr.CrcMismatch, entry.Name, total, nil)
	}
	return nil
}

// offsetReader sequentially reads a bounded [pos, end) window of a
// ByteSource, satisfying io.Reader without copying the whole window up
// front.
type offsetReader struct {
	bs  ByteSource
	pos int64
	end int64
}

func (o *offsetReader) Read(p []byte) (int, error) {
	if o.pos >= o.end {
		return 0, io.EOF
	}
	remaining := o.end - o.pos
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := o.bs.ReadAt(p, o.pos)
	o.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// readFullAt reads exactly len(buf) bytes at off, treating a short read
// that still fills buf as success (ReadAt's io.EOF-on-last-read
// convention).
func readFullAt(src ByteSource, buf []byte, off int64) (int, error) {
	n, err := src.ReadAt(buf, off)
	if n == len(buf) {
		return n, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}
