package config

import (
	"bytes"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"epubcore/common"
	"epubcore/limits"
)

type (
	// Viewport is the page content box, after margins (spec.md section 4.7).
	Viewport struct {
		WidthPx  int `yaml:"width_px" validate:"min=1"`
		HeightPx int `yaml:"height_px" validate:"min=1"`
	}

	// Margins are the inner page margins in px.
	Margins struct {
		LeftPx   int `yaml:"left_px" validate:"gte=0"`
		RightPx  int `yaml:"right_px" validate:"gte=0"`
		TopPx    int `yaml:"top_px" validate:"gte=0"`
		BottomPx int `yaml:"bottom_px" validate:"gte=0"`
	}

	// PageChromeConfig controls the header/footer/progress commands the
	// layout engine emits around page content.
	PageChromeConfig struct {
		Header          string `yaml:"header,omitempty"`
		Footer          string `yaml:"footer,omitempty"`
		ProgressEnabled bool   `yaml:"progress_enabled"`
	}

	// LayoutConfig is the full knob set the LayoutEngine takes, per
	// spec.md section 4.7's input table.
	LayoutConfig struct {
		Viewport               Viewport                `yaml:"viewport"`
		Margins                Margins                 `yaml:"margins"`
		ParagraphGapPx         int                     `yaml:"paragraph_gap_px" validate:"gte=0"`
		HeadingGapBeforePx     int                     `yaml:"heading_gap_before_px" validate:"gte=0"`
		HeadingGapAfterPx      int                     `yaml:"heading_gap_after_px" validate:"gte=0"`
		ListIndentPx           int                     `yaml:"list_indent_px" validate:"gte=0"`
		FirstLineIndentPx      int                     `yaml:"first_line_indent_px" validate:"gte=0"`
		JustifyMode            common.JustifyMode      `yaml:"justify_mode" validate:"gte=0,lte=2"`
		JustifyMaxSpaceStretch float64                 `yaml:"justify_max_space_stretch" validate:"gte=0"`
		WidowOrphanClamp       int                     `yaml:"widow_orphan_clamp" validate:"gte=0,lte=8"`
		SoftHyphenPolicy       common.SoftHyphenPolicy `yaml:"soft_hyphen_policy" validate:"gte=0,lte=1"`
		PageChrome             PageChromeConfig        `yaml:"page_chrome"`
	}

	// OpenConfig is the argument to opening a book: which MemoryPolicy
	// preset to enforce and whether the navigation document is parsed
	// eagerly or lazily (spec.md section 6's external interfaces table).
	OpenConfig struct {
		Limits         limits.Policy `yaml:"limits"`
		LazyNavigation bool          `yaml:"lazy_navigation"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Open      OpenConfig     `yaml:"open"`
		Layout    LayoutConfig   `yaml:"layout"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// DefaultLayout returns the layout defaults used when a caller doesn't
// override them: a 600x800 content box with margins and spacing sized
// for an e-reader page, no justification, and a widow/orphan clamp of
// two lines on either side of a break.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		Viewport:               Viewport{WidthPx: 600, HeightPx: 800},
		Margins:                Margins{LeftPx: 24, RightPx: 24, TopPx: 24, BottomPx: 24},
		ParagraphGapPx:         8,
		HeadingGapBeforePx:     16,
		HeadingGapAfterPx:      8,
		ListIndentPx:           24,
		FirstLineIndentPx:      0,
		JustifyMode:            common.JustifyNone,
		JustifyMaxSpaceStretch: 0.5,
		WidowOrphanClamp:       2,
		SoftHyphenPolicy:       common.SoftHyphenRespect,
		PageChrome:             PageChromeConfig{ProgressEnabled: true},
	}
}

// DefaultOpen returns the embedded() MemoryPolicy preset with eager
// navigation parsing.
func DefaultOpen() OpenConfig {
	return OpenConfig{Limits: limits.Embedded(), LazyNavigation: false}
}

// Default returns a fully populated Config: every field has a sane
// value without reading anything from disk, the way spec.md section 6
// requires ("all fields have defaults").
func Default() *Config {
	return &Config{
		Version: 1,
		Open:    DefaultOpen(),
		Layout:  DefaultLayout(),
		Logging: LoggingConfig{
			ConsoleLogger: LoggerConfig{Level: "normal"},
			FileLogger:    LoggerConfig{Level: "none"},
		},
	}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration failed validation: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given
// path, superimposing its values on top of Default() to provide sane
// defaults, and performs validation. An empty path returns Default()
// unchanged (after sanitize/validate).
func LoadConfiguration(path string) (*Config, error) {
	cfg := Default()
	if len(path) == 0 {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize default configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("default configuration failed validation: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, true)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare returns the default configuration serialized as YAML, for a
// caller that wants to dump a starting-point config file.
func Prepare() ([]byte, error) {
	return Dump(Default())
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
