package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dhcgn/mail-extract/charset"
	"github.com/dhcgn/mail-extract/thread"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules holds the tunable heuristics. They are data so they can be changed
// without touching code.
type Rules struct {
	Separators SeparatorRules `yaml:"separators"`
	Encodings  []string       `yaml:"encodings"`
	Detection  DetectionRules `yaml:"detection"`
	Mojibake   MojibakeRules  `yaml:"mojibake"`
}

type SeparatorRules struct {
	Version int      `yaml:"version"`
	List    []string `yaml:"list"`
}

type DetectionRules struct {
	Enabled       bool    `yaml:"enabled"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type MojibakeRules struct {
	ScanLimit          int      `yaml:"scan_limit"`
	CodePointThreshold int      `yaml:"code_point_threshold"`
	Markers            []string `yaml:"markers"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() (Rules, error) {
	var rules Rules
	if err := decodeRules(defaultRules, &rules); err != nil {
		return Rules{}, fmt.Errorf("embedded rules: %w", err)
	}
	return rules, nil
}

// LoadRules returns the embedded rules overlaid with the file at path.
// Keys missing from the file keep their default. An empty path returns the
// defaults.
func LoadRules(path string) (Rules, error) {
	rules, err := DefaultRules()
	if err != nil {
		return Rules{}, err
	}
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	if err := decodeRules(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if err := rules.validate(); err != nil {
		return Rules{}, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

func decodeRules(data []byte, rules *Rules) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(rules)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (r Rules) validate() error {
	if r.Separators.Version != thread.SeparatorsVersion {
		return fmt.Errorf("unsupported separators version %d (want %d)", r.Separators.Version, thread.SeparatorsVersion)
	}
	if len(r.Separators.List) == 0 {
		return fmt.Errorf("separators list is empty")
	}
	if r.Detection.MinConfidence < 0 || r.Detection.MinConfidence > 1 {
		return fmt.Errorf("detection min_confidence must be within [0, 1], got %v", r.Detection.MinConfidence)
	}
	if r.Mojibake.ScanLimit < 0 || r.Mojibake.CodePointThreshold < 0 {
		return fmt.Errorf("mojibake limits must not be negative")
	}
	return nil
}

// CharsetOptions converts the rules into resolver options. encodings, when
// non-empty, replaces the rule list.
func (r Rules) CharsetOptions(encodings []string, detect bool) charset.Options {
	opts := charset.Options{
		Encodings:     r.Encodings,
		MinConfidence: r.Detection.MinConfidence,
		Mojibake: charset.MojibakeRules{
			ScanLimit:          r.Mojibake.ScanLimit,
			CodePointThreshold: rune(r.Mojibake.CodePointThreshold),
			Markers:            r.Mojibake.Markers,
		},
	}
	if len(encodings) > 0 {
		opts.Encodings = encodings
	}
	if detect || r.Detection.Enabled {
		opts.Detector = charset.ChardetDetector{}
	}
	return opts
}
