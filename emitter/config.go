package emitter

import (
	"os"

	"github.com/goccy/go-yaml"
)

// TrailingWhitespace controls how trailing whitespace on emitted lines
// is handled.
type TrailingWhitespace string

const (
	TrailingWhitespaceStrip    TrailingWhitespace = "strip"
	TrailingWhitespacePreserve TrailingWhitespace = "preserve"
)

// Config controls canonical emission.
type Config struct {
	IndentNormalize     bool               `yaml:"indent_normalize"`
	BlankLineNormalize  bool               `yaml:"blank_line_normalize"`
	TrailingWhitespace  TrailingWhitespace `yaml:"trailing_whitespace"`
	KeySorting          bool               `yaml:"key_sorting"`
	StripComments       bool               `yaml:"strip_comments"`
}

// DefaultConfig returns the emitter's default options.
func DefaultConfig() *Config {
	return &Config{
		IndentNormalize:    true,
		BlankLineNormalize: false,
		TrailingWhitespace: TrailingWhitespaceStrip,
		KeySorting:         false,
		StripComments:      false,
	}
}

// LoadConfig loads emitter configuration from a YAML file under an
// `emit:` key, falling back to defaults for any field left unset and
// for a missing file entirely.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Emit Config `yaml:"emit"`
	}
	wrapper.Emit = *DefaultConfig()
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	config := wrapper.Emit
	return &config, nil
}
