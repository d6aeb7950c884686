package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MAIL_EXTRACT_WORKERS.
const EnvPrefix = "MAIL_EXTRACT"

const DefaultOutputDir = "./parsed_emails"

var ErrInputRequired = errors.New("an input file or folder is required")

// Config captures all command-line options required to run the extractor.
type Config struct {
	Input         string
	InputIsDir    bool
	OutputDir     string
	Workers       int
	Recursive     bool
	RulesPath     string
	Rules         Rules
	Encodings     []string
	Detect        bool
	WriteBodies   bool
	Force         bool
	DryRun        bool
	StateDir      string
	LogLevel      string
	LogDir        string
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	defaultStateDir, err := defaultStateDir()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", DefaultOutputDir, "Base directory for extracted attachments")
	flags.IntP("workers", "w", 4, "Number of files processed in parallel")
	flags.BoolP("recursive", "r", false, "Descend into subfolders when the input is a folder")
	flags.String("rules", "", "YAML file overriding separators, encodings and mojibake rules")
	flags.StringSlice("encodings", nil, "Fallback charset priority list (replaces the rules list)")
	flags.Bool("detect", false, "Enable statistical charset detection before the fallback list")
	flags.Bool("write-bodies", false, "Write each segment's text to body.txt")
	flags.Bool("force", false, "Process files even if they were extracted before")
	flags.Bool("dry-run", false, "Parse and split without writing anything")
	flags.String("state-dir", defaultStateDir, "Directory for the processed-files state")
	flags.StringArray("include-header", nil, "Regex allow-list applied to decoded headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to decoded bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to decoded headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to decoded bodies (mutually exclusive with include flags)")

	RegisterLogFlags(cmd)
	return nil
}

// RegisterLogFlags adds the logging flags shared by all commands.
func RegisterLogFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Also write logs to a timestamped file in this directory")
}

// NewViper binds cmd's flags and the MAIL_EXTRACT_* environment. A set flag
// wins over the environment, which wins over the flag default.
func NewViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	return v, nil
}

// LoadConfig converts the parsed Cobra flags and positional input into a
// Config struct with validation.
func LoadConfig(cmd *cobra.Command, args []string) (Config, error) {
	v, err := NewViper(cmd)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		OutputDir:     v.GetString("output"),
		Workers:       v.GetInt("workers"),
		Recursive:     v.GetBool("recursive"),
		RulesPath:     v.GetString("rules"),
		Encodings:     cleanList(v.GetStringSlice("encodings")),
		Detect:        v.GetBool("detect"),
		WriteBodies:   v.GetBool("write-bodies"),
		Force:         v.GetBool("force"),
		DryRun:        v.GetBool("dry-run"),
		StateDir:      v.GetString("state-dir"),
		LogLevel:      NormalizeLogLevel(v.GetString("log-level")),
		LogDir:        v.GetString("log-dir"),
		IncludeHeader: v.GetStringSlice("include-header"),
		IncludeBody:   v.GetStringSlice("include-body"),
		ExcludeHeader: v.GetStringSlice("exclude-header"),
		ExcludeBody:   v.GetStringSlice("exclude-body"),
	}

	if len(args) > 0 {
		cfg.Input = args[0]
	} else {
		cfg.Input = v.GetString("input")
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	cfg.OutputDir = filepath.Clean(cfg.OutputDir)

	if cfg.StateDir == "" {
		cfg.StateDir, err = defaultStateDir()
		if err != nil {
			return Config{}, err
		}
	}
	cfg.StateDir = filepath.Clean(cfg.StateDir)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	info, err := os.Stat(cfg.Input)
	if err != nil {
		return Config{}, fmt.Errorf("input: %w", err)
	}
	cfg.InputIsDir = info.IsDir()

	cfg.Rules, err = LoadRules(cfg.RulesPath)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// NormalizeLogLevel lower-cases level and maps "warning" to "warn".
func NormalizeLogLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return "warn"
	}
	return level
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Input) == "" {
		return ErrInputRequired
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("--workers must be positive")
	}
	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mail-extract", "state"), nil
}
