package zipfile

import (
	"archive/zip"
	"bytes"
	"testing"

	"epubcore/limits"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("Write(%s): %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestOpenAndEntries(t *testing.T) {
	data := buildZip(t, map[string]string{
		"mimetype":         "application/epub+zip",
		"OEBPS/chapter.xhtml": "<p>Hi.</p>",
	})

	r, err := Open(NewSliceSource(data), limits.Embedded().Zip)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if len(r.Entries()) != 2 {
		t.Fatalf("Entries() = %d, want 2", len(r.Entries()))
	}
	if _, ok := r.Find("mimetype"); !ok {
		t.Error("Find(mimetype) not found")
	}
	if _, ok := r.Find("missing"); ok {
		t.Error("Find(missing) unexpectedly found")
	}
}

func TestReadEntryIntoRoundTrip(t *testing.T) {
	content := "<p>Hi.</p>"
	data := buildZip(t, map[string]string{"chapter.xhtml": content})

	r, err := Open(NewSliceSource(data), limits.Embedded().Zip)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	var out bytes.Buffer
	scratch := NewScratch(limits.Embedded().Chunk.ReadChunkBytes)
	if err := r.ReadEntryInto("chapter.xhtml", &out, 1<<20, scratch); err != nil {
		t.Fatalf("ReadEntryInto() error = %v", err)
	}
	if out.String() != content {
		t.Errorf("ReadEntryInto() content = %q, want %q", out.String(), content)
	}
}

func TestReadEntryIntoMissing(t *testing.T) {
	data := buildZip(t, map[string]string{"a.txt": "a"})
	r, err := Open(NewSliceSource(data), limits.Embedded().Zip)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	scratch := NewScratch(256)
	var out bytes.Buffer
	err = r.ReadEntryInto("missing.txt", &out, 1024, scratch)
	if err == nil {
		t.Fatal("ReadEntryInto(missing) = nil error, want error")
	}
}

func TestReadEntryIntoFileTooLarge(t *testing.T) {
	data := buildZip(t, map[string]string{"a.txt": "0123456789"})
	r, err := Open(NewSliceSource(data), limits.Embedded().Zip)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	scratch := NewScratch(256)
	var out bytes.Buffer
	err = r.ReadEntryInto("a.txt", &out, 4, scratch)
	if err == nil {
		t.Fatal("ReadEntryInto() = nil error, want FileTooLarge")
	}
}

func TestReadEntryIntoCRCMismatch(t *testing.T) {
	data := buildZip(t, map[string]string{"a.txt": "0123456789"})

	// Flip a byte inside the compressed data region to corrupt the CRC
	// check without touching the central directory's recorded CRC32.
	r, err := Open(NewSliceSource(data), limits.Embedded().Zip)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	entry, ok := r.Find("a.txt")
	if !ok {
		t.Fatal("entry not found")
	}

	corrupted := append([]byte(nil), data...)
	dataStart := entry.LocalHeaderOffset + localFixedLen + int64(len("a.txt"))
	corrupted[dataStart] ^= 0xFF

	r2, err := Open(NewSliceSource(corrupted), limits.Embedded().Zip)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	scratch := NewScratch(256)
	var out bytes.Buffer
	err = r2.ReadEntryInto("a.txt", &out, 1024, scratch)
	if err == nil {
		t.Fatal("ReadEntryInto() = nil error, want CrcMismatch")
	}
}

func TestOpenRejectsTooManyEntries(t *testing.T) {
	files := make(map[string]string, 3)
	files["a"] = "a"
	files["b"] = "b"
	files["c"] = "c"
	data := buildZip(t, files)

	lim := limits.Embedded().Zip
	lim.MaxCentralDirEntries = 2
	_, err := Open(NewSliceSource(data), lim)
	if err == nil {
		t.Fatal("Open() = nil error, want LimitExceeded")
	}
}

func TestOpenRejectsNotAZip(t *testing.T) {
	_, err := Open(NewSliceSource([]byte("not a zip file at all")), limits.Embedded().Zip)
	if err == nil {
		t.Fatal("Open() = nil error, want ZipFormat error")
	}
}

func TestEachEntryStopsEarly(t *testing.T) {
	data := buildZip(t, map[string]string{"a": "1", "b": "2", "c": "3"})
	r, err := Open(NewSliceSource(data), limits.Embedded().Zip)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	var visited int
	err = r.EachEntry(func(e Entry) (bool, error) {
		visited++
		return visited < 2, nil
	})
	if err != nil {
		t.Fatalf("EachEntry() error = %v", err)
	}
	if visited != 2 {
		t.Errorf("visited = %d, want 2", visited)
	}
}
