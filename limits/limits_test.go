package limits

import "testing"

func TestEmbeddedSmallerThanDesktop(t *testing.T) {
	e, d := Embedded(), Desktop()

	if e.Zip.MaxEOCDScanBytes > d.Zip.MaxEOCDScanBytes {
		t.Errorf("embedded MaxEOCDScanBytes = %d, want <= desktop %d", e.Zip.MaxEOCDScanBytes, d.Zip.MaxEOCDScanBytes)
	}
	if e.Zip.MaxCentralDirEntries > d.Zip.MaxCentralDirEntries {
		t.Errorf("embedded MaxCentralDirEntries = %d, want <= desktop %d", e.Zip.MaxCentralDirEntries, d.Zip.MaxCentralDirEntries)
	}
	if e.Chunk.ReadChunkBytes > d.Chunk.ReadChunkBytes {
		t.Errorf("embedded ReadChunkBytes = %d, want <= desktop %d", e.Chunk.ReadChunkBytes, d.Chunk.ReadChunkBytes)
	}
	if e.Nav.MaxNavBytes > d.Nav.MaxNavBytes {
		t.Errorf("embedded MaxNavBytes = %d, want <= desktop %d", e.Nav.MaxNavBytes, d.Nav.MaxNavBytes)
	}
	if e.Tokenize.MaxTokens > d.Tokenize.MaxTokens {
		t.Errorf("embedded MaxTokens = %d, want <= desktop %d", e.Tokenize.MaxTokens, d.Tokenize.MaxTokens)
	}
	if e.Style.MaxCSSBytes > d.Style.MaxCSSBytes {
		t.Errorf("embedded MaxCSSBytes = %d, want <= desktop %d", e.Style.MaxCSSBytes, d.Style.MaxCSSBytes)
	}
	if e.Font.MaxFonts > d.Font.MaxFonts {
		t.Errorf("embedded MaxFonts = %d, want <= desktop %d", e.Font.MaxFonts, d.Font.MaxFonts)
	}
	if e.Image.MaxImages > d.Image.MaxImages {
		t.Errorf("embedded MaxImages = %d, want <= desktop %d", e.Image.MaxImages, d.Image.MaxImages)
	}
	if e.Budget.WordBufferCapacity > d.Budget.WordBufferCapacity {
		t.Errorf("embedded WordBufferCapacity = %d, want <= desktop %d", e.Budget.WordBufferCapacity, d.Budget.WordBufferCapacity)
	}
}

func TestPresetsValidate(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		if err := Embedded().Validate(); err != nil {
			t.Errorf("Embedded().Validate() = %v, want nil", err)
		}
	})
	t.Run("desktop", func(t *testing.T) {
		if err := Desktop().Validate(); err != nil {
			t.Errorf("Desktop().Validate() = %v, want nil", err)
		}
	})
}

func TestValidateAggregatesViolations(t *testing.T) {
	p := Embedded()
	p.Zip.MaxEOCDScanBytes = 0
	p.Zip.MaxCentralDirEntries = 0
	p.Tokenize.MaxTokens = 0
	p.Font.MaxFonts = 0

	err := p.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want aggregated error")
	}

	msg := err.Error()
	for _, want := range []string{
		"zip.max_eocd_scan_bytes",
		"zip.max_central_dir_entries",
		"tokenize.max_tokens",
		"font.max_fonts",
	} {
		if !containsSubstring(msg, want) {
			t.Errorf("Validate() error = %q, want it to mention %q", msg, want)
		}
	}
}

func TestValidateSingleViolation(t *testing.T) {
	p := Desktop()
	p.Chunk.ReadChunkBytes = 0

	err := p.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	if !containsSubstring(err.Error(), "chunk.read_chunk_bytes") {
		t.Errorf("Validate() error = %q, want it to mention chunk.read_chunk_bytes", err.Error())
	}
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
