// Package limits collects every bound the core enforces (section 5 and
// section 9's MemoryPolicy), each with an Embedded() preset sized for a
// ~230KB-heap device and a Desktop() preset sized for a host with a
// virtual-memory system. All fields are YAML-overridable, following
// config/cfg.go's validated-struct-with-defaults shape, so a caller can
// load a tuned profile instead of picking a preset verbatim.
package limits

import (
	"go.uber.org/multierr"

	"epubcore/epuberr"
)

// ZipLimits bounds archive enumeration and EOCD discovery (component
// C1).
type ZipLimits struct {
	MaxEOCDScanBytes     int `yaml:"max_eocd_scan_bytes" validate:"min=1024"`
	MaxCentralDirEntries int `yaml:"max_central_dir_entries" validate:"min=1"`
}

func (ZipLimits) Embedded() ZipLimits {
	return ZipLimits{MaxEOCDScanBytes: 64 * 1024, MaxCentralDirEntries: 256}
}

func (ZipLimits) Desktop() ZipLimits {
	return ZipLimits{MaxEOCDScanBytes: 256 * 1024, MaxCentralDirEntries: 8192}
}

// ChunkLimits sizes the caller-owned scratch buffers used for streamed
// I/O. ReadChunkBytes is "scratch.read.len()" from spec section 4.1.
type ChunkLimits struct {
	ReadChunkBytes int `yaml:"read_chunk_bytes" validate:"min=256"`
}

func (ChunkLimits) Embedded() ChunkLimits { return ChunkLimits{ReadChunkBytes: 4 * 1024} }
func (ChunkLimits) Desktop() ChunkLimits  { return ChunkLimits{ReadChunkBytes: 16 * 1024} }

// PackageLimits bounds OPF/container parsing (component C2).
type PackageLimits struct {
	MaxElementStack  int `yaml:"max_element_stack" validate:"min=1"`
	MaxManifestItems int `yaml:"max_manifest_items" validate:"min=1"`
	MaxSpineItems    int `yaml:"max_spine_items" validate:"min=1"`
}

func (PackageLimits) Embedded() PackageLimits {
	return PackageLimits{MaxElementStack: 32, MaxManifestItems: 1024, MaxSpineItems: 128}
}

func (PackageLimits) Desktop() PackageLimits {
	return PackageLimits{MaxElementStack: 32, MaxManifestItems: 4096, MaxSpineItems: 256}
}

// NavLimits bounds navigation document parsing (component C3).
type NavLimits struct {
	MaxNavBytes   int `yaml:"max_nav_bytes" validate:"min=1024"`
	MaxNavDepth   int `yaml:"max_nav_depth" validate:"min=1"`
	MaxNavEntries int `yaml:"max_nav_entries" validate:"min=1"`
}

func (NavLimits) Embedded() NavLimits {
	return NavLimits{MaxNavBytes: 128 * 1024, MaxNavDepth: 16, MaxNavEntries: 1024}
}

func (NavLimits) Desktop() NavLimits {
	return NavLimits{MaxNavBytes: 2 * 1024 * 1024, MaxNavDepth: 16, MaxNavEntries: 4096}
}

// TokenizeLimits bounds the XHTML tokenizer (component C5).
type TokenizeLimits struct {
	MaxTextBytes int `yaml:"max_text_bytes" validate:"min=64"`
	MaxTokens    int `yaml:"max_tokens" validate:"min=1"`
	MaxNesting   int `yaml:"max_nesting" validate:"min=1"`
}

func (TokenizeLimits) Embedded() TokenizeLimits {
	return TokenizeLimits{MaxTextBytes: 16 * 1024, MaxTokens: 20_000, MaxNesting: 128}
}

func (TokenizeLimits) Desktop() TokenizeLimits {
	return TokenizeLimits{MaxTextBytes: 64 * 1024, MaxTokens: 100_000, MaxNesting: 256}
}

// StyleLimits bounds the CSS cascade (component C6).
type StyleLimits struct {
	MaxSelectors int `yaml:"max_selectors" validate:"min=1"`
	MaxCSSBytes  int `yaml:"max_css_bytes" validate:"min=1024"`
	MaxNesting   int `yaml:"max_nesting" validate:"min=1"`
}

func (StyleLimits) Embedded() StyleLimits {
	return StyleLimits{MaxSelectors: 512, MaxCSSBytes: 64 * 1024, MaxNesting: 32}
}

func (StyleLimits) Desktop() StyleLimits {
	return StyleLimits{MaxSelectors: 4096, MaxCSSBytes: 512 * 1024, MaxNesting: 32}
}

// FontLimits sizes the font_id intern table (component C6). Only
// Validate reads it: style.New bounds its FontTable at a fixed 64
// entries.
type FontLimits struct {
	MaxFonts int `yaml:"max_fonts" validate:"min=1"`
}

func (FontLimits) Embedded() FontLimits { return FontLimits{MaxFonts: 16} }
func (FontLimits) Desktop() FontLimits  { return FontLimits{MaxFonts: 64} }

// ImageRegistryLimits sizes an image registry: how many distinct image
// references may have intrinsic dimensions tracked, and how many header
// bytes may be peeked to discover them (no pixel decode, see
// SPEC_FULL.md section B). No package reads these values;
// token.ImageIntrinsicSize takes whatever bytes it is given.
type ImageRegistryLimits struct {
	MaxImages         int `yaml:"max_images" validate:"min=1"`
	MaxHeaderPeekBytes int `yaml:"max_header_peek_bytes" validate:"min=16"`
}

func (ImageRegistryLimits) Embedded() ImageRegistryLimits {
	return ImageRegistryLimits{MaxImages: 64, MaxHeaderPeekBytes: 256}
}

func (ImageRegistryLimits) Desktop() ImageRegistryLimits {
	return ImageRegistryLimits{MaxImages: 2048, MaxHeaderPeekBytes: 4096}
}

// MemoryBudget sizes reusable word and command buffers (section 9's
// "Iterator materialization" note: a bounded word buffer instead of
// collect-then-loop). Only Validate reads it; layout grows its line and
// command slices as needed.
type MemoryBudget struct {
	WordBufferCapacity    int `yaml:"word_buffer_capacity" validate:"min=8"`
	CommandBufferCapacity int `yaml:"command_buffer_capacity" validate:"min=8"`
}

func (MemoryBudget) Embedded() MemoryBudget {
	return MemoryBudget{WordBufferCapacity: 64, CommandBufferCapacity: 128}
}

func (MemoryBudget) Desktop() MemoryBudget {
	return MemoryBudget{WordBufferCapacity: 128, CommandBufferCapacity: 512}
}

// Policy is the full MemoryPolicy bundle threaded through the book
// handle (section 5).
type Policy struct {
	Zip      ZipLimits           `yaml:"zip"`
	Chunk    ChunkLimits         `yaml:"chunk"`
	Package  PackageLimits       `yaml:"package"`
	Nav      NavLimits           `yaml:"nav"`
	Tokenize TokenizeLimits      `yaml:"tokenize"`
	Style    StyleLimits         `yaml:"style"`
	Font     FontLimits          `yaml:"font"`
	Image    ImageRegistryLimits `yaml:"image"`
	Budget   MemoryBudget        `yaml:"budget"`
}

// Embedded returns the preset sized for a ~230KB-heap device.
func Embedded() Policy {
	return Policy{
		Zip:      ZipLimits{}.Embedded(),
		Chunk:    ChunkLimits{}.Embedded(),
		Package:  PackageLimits{}.Embedded(),
		Nav:      NavLimits{}.Embedded(),
		Tokenize: TokenizeLimits{}.Embedded(),
		Style:    StyleLimits{}.Embedded(),
		Font:     FontLimits{}.Embedded(),
		Image:    ImageRegistryLimits{}.Embedded(),
		Budget:   MemoryBudget{}.Embedded(),
	}
}

// Desktop returns the preset sized for a desktop host.
func Desktop() Policy {
	return Policy{
		Zip:      ZipLimits{}.Desktop(),
		Chunk:    ChunkLimits{}.Desktop(),
		Package:  PackageLimits{}.Desktop(),
		Nav:      NavLimits{}.Desktop(),
		Tokenize: TokenizeLimits{}.Desktop(),
		Style:    StyleLimits{}.Desktop(),
		Font:     FontLimits{}.Desktop(),
		Image:    ImageRegistryLimits{}.Desktop(),
		Budget:   MemoryBudget{}.Desktop(),
	}
}

// Validate checks that the EOCD scan size, central-directory entry cap,
// read chunk size, package element stack, tokenizer token and nesting
// caps, style nesting cap, font cap and word buffer capacity are
// positive. It makes no cross-field comparisons and does not check the
// nav, image, manifest/spine, text-byte, selector or CSS-byte limits.
// It aggregates all violations with multierr instead of stopping at the
// first one, the
// way the teacher's config validation surfaces every bad field in one
// pass.
func (p Policy) Validate() error {
	var err error
	if p.Zip.MaxEOCDScanBytes <= 0 {
		err = multierr.Append(err, epuberr.Limit("zip.max_eocd_scan_bytes"))
	}
	if p.Zip.MaxCentralDirEntries <= 0 {
		err = multierr.Append(err, epuberr.Limit("zip.max_central_dir_entries"))
	}
	if p.Chunk.ReadChunkBytes <= 0 {
		err = multierr.Append(err, epuberr.Limit("chunk.read_chunk_bytes"))
	}
	if p.Package.MaxElementStack <= 0 {
		err = multierr.Append(err, epuberr.Limit("package.max_element_stack"))
	}
	if p.Tokenize.MaxTokens <= 0 {
		err = multierr.Append(err, epuberr.Limit("tokenize.max_tokens"))
	}
	if p.Tokenize.MaxNesting <= 0 {
		err = multierr.Append(err, epuberr.Limit("tokenize.max_nesting"))
	}
	if p.Style.MaxNesting <= 0 {
		err = multierr.Append(err, epuberr.Limit("style.max_nesting"))
	}
	if p.Font.MaxFonts <= 0 {
		err = multierr.Append(err, epuberr.Limit("font.max_fonts"))
	}
	if p.Budget.WordBufferCapacity <= 0 {
		err = multierr.Append(err, epuberr.Limit("budget.word_buffer_capacity"))
	}
	return err
}
